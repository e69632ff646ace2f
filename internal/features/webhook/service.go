package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-marketplace/internal/common/models"

	"go.uber.org/zap"
)

// syncEvents is what a settings-managed webhook subscribes to.
var syncEvents = []string{
	models.EventSyncStarted,
	models.EventSyncProgress,
	models.EventSyncCompleted,
	models.EventSyncFailed,
	models.EventDataChanged,
}

type WebhookService interface {
	CreateWebhook(ctx context.Context, webhook *Webhook) error
	ListWebhooks(ctx context.Context, businessID string) ([]Webhook, error)
	GetWebhook(ctx context.Context, id string) (*Webhook, error)
	UpdateWebhook(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteWebhook(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, webhookID string) ([]DeliveryLog, error)

	Trigger(ctx context.Context, businessID string, event models.EventPayload)
	EnsureSyncWebhook(businessID, url string, enabled bool) error
}

type WebhookServiceImpl struct {
	Repo       WebhookRepository
	Deliveries DeliveryLogRepository
	HttpClient *http.Client
	Logger     *zap.Logger
}

func NewWebhookService(repo WebhookRepository, deliveries DeliveryLogRepository, logger *zap.Logger) WebhookService {
	return &WebhookServiceImpl{
		Repo:       repo,
		Deliveries: deliveries,
		Logger:     logger,
		HttpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WebhookServiceImpl) CreateWebhook(ctx context.Context, webhook *Webhook) error {
	if webhook.URL == "" {
		return fmt.Errorf("webhook url is required")
	}
	if len(webhook.Events) == 0 {
		return fmt.Errorf("at least one event is required")
	}
	webhook.Managed = false
	return s.Repo.Create(ctx, webhook)
}

func (s *WebhookServiceImpl) ListWebhooks(ctx context.Context, businessID string) ([]Webhook, error) {
	return s.Repo.List(ctx, businessID)
}

func (s *WebhookServiceImpl) GetWebhook(ctx context.Context, id string) (*Webhook, error) {
	return s.Repo.Get(ctx, id)
}

func (s *WebhookServiceImpl) UpdateWebhook(ctx context.Context, id string, updates map[string]interface{}) error {
	existing, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Managed {
		return fmt.Errorf("managed webhooks are updated through sync settings")
	}
	return s.Repo.Update(ctx, id, updates)
}

func (s *WebhookServiceImpl) DeleteWebhook(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

func (s *WebhookServiceImpl) ListDeliveries(ctx context.Context, webhookID string) ([]DeliveryLog, error) {
	return s.Deliveries.ListByWebhookID(ctx, webhookID)
}

// EnsureSyncWebhook creates, repoints or deactivates the single
// settings-managed webhook for a business.
func (s *WebhookServiceImpl) EnsureSyncWebhook(businessID, url string, enabled bool) error {
	ctx := context.Background()

	existing, err := s.Repo.GetManaged(ctx, businessID)
	if err != nil {
		return err
	}

	if !enabled {
		if existing != nil && existing.IsActive {
			return s.Repo.Update(ctx, existing.ID.Hex(), map[string]interface{}{"is_active": false})
		}
		return nil
	}

	if existing == nil {
		return s.Repo.Create(ctx, &Webhook{
			BusinessID:  businessID,
			URL:         url,
			Events:      syncEvents,
			Managed:     true,
			Description: "Managed by sync settings",
		})
	}

	return s.Repo.Update(ctx, existing.ID.Hex(), map[string]interface{}{
		"url":       url,
		"is_active": true,
		"events":    syncEvents,
	})
}

// Trigger delivers the event to every matching webhook. Deliveries run in
// the background; failures are logged, never surfaced to the caller.
func (s *WebhookServiceImpl) Trigger(ctx context.Context, businessID string, event models.EventPayload) {
	webhooks, err := s.Repo.ListByEvent(ctx, businessID, event.Event)
	if err != nil {
		s.Logger.Error("failed to load webhooks for event",
			zap.String("event", event.Event),
			zap.String("business_id", businessID),
			zap.Error(err))
		return
	}

	for _, wh := range webhooks {
		go s.deliver(wh, event)
	}
}

func (s *WebhookServiceImpl) deliver(wh Webhook, event models.EventPayload) {
	body, err := json.Marshal(event)
	if err != nil {
		s.Logger.Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	entry := &DeliveryLog{
		BusinessID: wh.BusinessID,
		WebhookID:  wh.ID,
		URL:        wh.URL,
		Event:      event.Event,
		Request:    event,
	}
	start := time.Now()

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(body))
	if err != nil {
		s.recordDelivery(entry, start, 0, err.Error(), false)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Go-Marketplace-Webhook")
	req.Header.Set("X-Marketplace-Event", event.Event)
	req.Header.Set("X-Marketplace-Delivery", fmt.Sprintf("%d", time.Now().UnixNano()))

	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}

	if wh.Secret != "" {
		mac := hmac.New(sha256.New, []byte(wh.Secret))
		mac.Write(body)
		signature := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Marketplace-Signature", "sha256="+signature)
	}

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		s.recordDelivery(entry, start, 0, err.Error(), false)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	s.recordDelivery(entry, start, resp.StatusCode, string(respBody), success)
}

func (s *WebhookServiceImpl) recordDelivery(entry *DeliveryLog, start time.Time, status int, response string, success bool) {
	entry.StatusCode = status
	entry.Response = response
	entry.Success = success
	entry.Duration = time.Since(start).Milliseconds()

	if err := s.Deliveries.Create(context.Background(), entry); err != nil {
		s.Logger.Warn("failed to record webhook delivery", zap.Error(err))
	}
	if !success {
		s.Logger.Warn("webhook delivery failed",
			zap.String("url", entry.URL),
			zap.String("event", entry.Event),
			zap.Int("status", status))
	}
}
