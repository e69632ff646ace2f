package webhook

import (
	"go-marketplace/internal/common/api"
	"go-marketplace/internal/config"
	"go-marketplace/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller *WebhookController
	config     *config.Config
}

func NewWebhookApi(controller *WebhookController, config *config.Config) api.Route {
	return &WebhookApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all webhook routes
func (h *WebhookApi) Setup(app *fiber.App) {
	group := app.Group("/api/webhooks", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/", h.controller.CreateWebhook)
	group.Get("/", h.controller.ListWebhooks)
	group.Get("/:id", h.controller.GetWebhook)
	group.Put("/:id", h.controller.UpdateWebhook)
	group.Delete("/:id", h.controller.DeleteWebhook)
	group.Get("/:id/deliveries", h.controller.ListDeliveries)
}
