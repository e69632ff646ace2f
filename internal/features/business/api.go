package business

import (
	"go-marketplace/internal/common/api"
	"go-marketplace/internal/config"
	"go-marketplace/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type BusinessApi struct {
	controller *BusinessController
	config     *config.Config
}

func NewBusinessApi(controller *BusinessController, config *config.Config) api.Route {
	return &BusinessApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all business routes
func (h *BusinessApi) Setup(app *fiber.App) {
	group := app.Group("/api/businesses", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/", h.controller.CreateBusiness)
	group.Get("/:id", h.controller.GetBusiness)
	group.Put("/:id", h.controller.UpdateBusiness)
	group.Post("/:id/listing/connect", h.controller.ConnectListing)
	group.Post("/:id/listing/disconnect", h.controller.DisconnectListing)
}
