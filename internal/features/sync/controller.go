package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service   SyncService
	Scheduler *AutoSyncScheduler
	Webhooks  SyncWebhookRegistrar
}

// SyncWebhookRegistrar keeps the per-business webhook subscription in
// step with the sync configuration.
type SyncWebhookRegistrar interface {
	EnsureSyncWebhook(businessID, url string, enabled bool) error
}

func NewSyncController(service SyncService, scheduler *AutoSyncScheduler, webhooks SyncWebhookRegistrar) *SyncController {
	return &SyncController{
		Service:   service,
		Scheduler: scheduler,
		Webhooks:  webhooks,
	}
}

// SaveSettings godoc
func (ctrl *SyncController) SaveSettings(c *fiber.Ctx) error {
	var cfg SyncConfiguration
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.SaveSettings(c.Context(), &cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := ctrl.Scheduler.Apply(&cfg); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("settings saved but scheduling failed: %v", err),
		})
	}
	if err := ctrl.Webhooks.EnsureSyncWebhook(cfg.BusinessID, cfg.WebhookURL, cfg.WebhookEnabled); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("settings saved but webhook registration failed: %v", err),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Sync settings saved successfully",
		"data":    cfg,
	})
}

// GetSettings godoc
func (ctrl *SyncController) GetSettings(c *fiber.Ctx) error {
	businessID := c.Params("businessId")

	cfg, err := ctrl.Service.GetSettings(c.Context(), businessID)
	if errors.Is(err, ErrConfigNotFound) {
		return c.JSON(DefaultConfiguration(businessID))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(cfg)
}

// StartSync godoc
func (ctrl *SyncController) StartSync(c *fiber.Ctx) error {
	businessID := c.Params("businessId")

	var opts StartOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	view, err := ctrl.Service.StartSync(c.Context(), businessID, opts)
	switch {
	case errors.Is(err, ErrNotConnected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, ErrSyncInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		body := fiber.Map{"error": err.Error()}
		if view != nil {
			body["data"] = view
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	return c.JSON(fiber.Map{
		"message": "Sync completed",
		"data":    view,
	})
}

// GetActiveSessions godoc
func (ctrl *SyncController) GetActiveSessions(c *fiber.Ctx) error {
	return c.JSON(ctrl.Service.GetActiveSessions())
}

// GetSyncStatus godoc
func (ctrl *SyncController) GetSyncStatus(c *fiber.Ctx) error {
	view, err := ctrl.Service.GetSyncStatus(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(view)
}

// CancelSync godoc
func (ctrl *SyncController) CancelSync(c *fiber.Ctx) error {
	err := ctrl.Service.CancelSync(c.Context(), c.Params("sessionId"))
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Sync session cancelled",
	})
}

// ResumeSync godoc
func (ctrl *SyncController) ResumeSync(c *fiber.Ctx) error {
	view, err := ctrl.Service.ResumeSync(c.Context(), c.Params("sessionId"))
	return ctrl.sessionActionResponse(c, view, err, "Sync session resumed")
}

// RetrySession godoc
func (ctrl *SyncController) RetrySession(c *fiber.Ctx) error {
	view, err := ctrl.Service.RetrySession(c.Context(), c.Params("sessionId"))
	return ctrl.sessionActionResponse(c, view, err, "Sync session retried")
}

func (ctrl *SyncController) sessionActionResponse(c *fiber.Ctx, view *SessionView, err error, message string) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		body := fiber.Map{"error": err.Error()}
		if view != nil {
			body["data"] = view
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	return c.JSON(fiber.Map{
		"message": message,
		"data":    view,
	})
}

// GetSyncHistory godoc
func (ctrl *SyncController) GetSyncHistory(c *fiber.Ctx) error {
	businessID := c.Params("businessId")

	q := HistoryQuery{
		Limit:  int64(c.QueryInt("limit", 20)),
		Offset: int64(c.QueryInt("offset", 0)),
	}
	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid start time, expected RFC3339",
			})
		}
		q.Start = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid end time, expected RFC3339",
			})
		}
		q.End = t
	}

	records, err := ctrl.Service.GetSyncHistory(c.Context(), businessID, q)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data":  records,
		"count": len(records),
	})
}

// GetSyncReport godoc
func (ctrl *SyncController) GetSyncReport(c *fiber.Ctx) error {
	businessID := c.Params("businessId")

	start, end, err := parseReportRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	report, err := ctrl.Service.GenerateSyncReport(c.Context(), businessID, start, end)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}

// ExportSyncReport godoc
func (ctrl *SyncController) ExportSyncReport(c *fiber.Ctx) error {
	businessID := c.Params("businessId")

	start, end, err := parseReportRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	data, err := ctrl.Service.ExportSyncReport(c.Context(), businessID, start, end)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	filename := fmt.Sprintf("sync-report-%s-%s.xlsx", businessID, time.Now().Format("20060102"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Send(data)
}

func parseReportRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	var start, end time.Time
	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, fmt.Errorf("invalid start time, expected RFC3339")
		}
		start = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, fmt.Errorf("invalid end time, expected RFC3339")
		}
		end = t
	}
	return start, end, nil
}

// GetBreakerMetrics godoc
func (ctrl *SyncController) GetBreakerMetrics(c *fiber.Ctx) error {
	return c.JSON(ctrl.Service.BreakerMetrics())
}
