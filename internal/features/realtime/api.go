package realtime

import (
	"go-marketplace/internal/common/api"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type RealtimeApi struct {
	Controller *RealtimeController
}

func NewRealtimeApi(controller *RealtimeController) api.Route {
	return &RealtimeApi{
		Controller: controller,
	}
}

func (h *RealtimeApi) Setup(app *fiber.App) {
	app.Use("/api/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/ws/:businessId", websocket.New(h.Controller.HandleConnection))
}
