package business

import (
	"github.com/gofiber/fiber/v2"
)

type BusinessController struct {
	Service BusinessService
}

func NewBusinessController(service BusinessService) *BusinessController {
	return &BusinessController{
		Service: service,
	}
}

// CreateBusiness godoc
func (ctrl *BusinessController) CreateBusiness(c *fiber.Ctx) error {
	var biz Business
	if err := c.BodyParser(&biz); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.CreateBusiness(c.Context(), &biz); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Business created successfully",
		"data":    biz,
	})
}

// GetBusiness godoc
func (ctrl *BusinessController) GetBusiness(c *fiber.Ctx) error {
	id := c.Params("id")

	biz, err := ctrl.Service.GetBusiness(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(biz)
}

// UpdateBusiness godoc
func (ctrl *BusinessController) UpdateBusiness(c *fiber.Ctx) error {
	id := c.Params("id")

	var updates map[string]interface{}
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.UpdateBusiness(c.Context(), id, updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Business updated successfully",
	})
}

// ConnectListing godoc
func (ctrl *BusinessController) ConnectListing(c *fiber.Ctx) error {
	id := c.Params("id")

	var body struct {
		LocationRef string `json:"location_ref"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.ConnectListing(c.Context(), id, body.LocationRef); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Listing connected successfully",
	})
}

// DisconnectListing godoc
func (ctrl *BusinessController) DisconnectListing(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := ctrl.Service.DisconnectListing(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Listing disconnected",
	})
}
