package automation

import (
	"go-marketplace/internal/common/api"
	"go-marketplace/internal/config"
	"go-marketplace/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AutomationApi struct {
	controller *AutomationController
	config     *config.Config
}

func NewAutomationApi(controller *AutomationController, config *config.Config) api.Route {
	return &AutomationApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all automation routes
func (h *AutomationApi) Setup(app *fiber.App) {
	group := app.Group("/api/automation", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/", h.controller.CreateRule)
	group.Get("/", h.controller.ListRules)
	group.Get("/:id", h.controller.GetRule)
	group.Put("/:id", h.controller.UpdateRule)
	group.Delete("/:id", h.controller.DeleteRule)
	group.Post("/:id/enable", h.controller.EnableRule)
}
