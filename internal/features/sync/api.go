package sync

import (
	"go-marketplace/internal/common/api"
	"go-marketplace/internal/config"
	"go-marketplace/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) api.Route {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all sync routes
func (h *SyncApi) Setup(app *fiber.App) {
	group := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/settings", h.controller.SaveSettings)
	group.Get("/settings/:businessId", h.controller.GetSettings)

	group.Post("/:businessId/start", h.controller.StartSync)
	group.Get("/sessions", h.controller.GetActiveSessions)
	group.Get("/sessions/:sessionId", h.controller.GetSyncStatus)
	group.Post("/sessions/:sessionId/cancel", h.controller.CancelSync)
	group.Post("/sessions/:sessionId/resume", h.controller.ResumeSync)
	group.Post("/sessions/:sessionId/retry", h.controller.RetrySession)

	group.Get("/:businessId/history", h.controller.GetSyncHistory)
	group.Get("/:businessId/report", h.controller.GetSyncReport)
	group.Get("/:businessId/report/export", h.controller.ExportSyncReport)

	group.Get("/breakers", h.controller.GetBreakerMetrics)
}
