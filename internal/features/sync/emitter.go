package sync

import (
	"context"
	"time"

	common_models "go-marketplace/internal/common/models"

	"go.uber.org/zap"
)

// RealtimePublisher pushes an event to websocket subscribers of one business.
type RealtimePublisher interface {
	PublishToBusiness(businessID string, event common_models.EventPayload)
}

// WebhookTrigger delivers an event to the webhooks registered for a
// business. Fire-and-forget: implementations must never block the sync.
type WebhookTrigger interface {
	Trigger(ctx context.Context, businessID string, event common_models.EventPayload)
}

// RuleRunner evaluates automation rules against an event.
type RuleRunner interface {
	OnSyncEvent(ctx context.Context, event common_models.EventPayload)
}

// EventEmitter fans session lifecycle events out to the realtime hub, the
// webhook dispatcher and automation rules. Fan-out failures are logged and
// never fail the sync itself.
type EventEmitter struct {
	realtime RealtimePublisher
	webhooks WebhookTrigger
	rules    RuleRunner
	logger   *zap.Logger
}

func NewEventEmitter(realtime RealtimePublisher, webhooks WebhookTrigger, rules RuleRunner, logger *zap.Logger) *EventEmitter {
	return &EventEmitter{
		realtime: realtime,
		webhooks: webhooks,
		rules:    rules,
		logger:   logger,
	}
}

func (e *EventEmitter) Emit(ctx context.Context, event string, businessID, sessionID string, data any) {
	payload := common_models.EventPayload{
		Event:      event,
		BusinessID: businessID,
		SessionID:  sessionID,
		Data:       data,
		Timestamp:  time.Now(),
	}

	if e.realtime != nil {
		e.realtime.PublishToBusiness(businessID, payload)
	}
	if e.webhooks != nil {
		e.webhooks.Trigger(ctx, businessID, payload)
	}
	if e.rules != nil {
		e.rules.OnSyncEvent(ctx, payload)
	}

	e.logger.Debug("sync event emitted",
		zap.String("event", event),
		zap.String("business_id", businessID),
		zap.String("session_id", sessionID))
}
