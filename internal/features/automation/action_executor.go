package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-marketplace/internal/common/models"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"
)

// ActionExecutor runs the actions of a fired rule.
type ActionExecutor interface {
	ExecuteActions(ctx context.Context, actions []RuleAction, event models.EventPayload, doc map[string]interface{}) error
	ExecuteAction(ctx context.Context, action RuleAction, event models.EventPayload, doc map[string]interface{}) error
}

type ActionExecutorImpl struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewActionExecutor(logger *zap.Logger) ActionExecutor {
	return &ActionExecutorImpl{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (e *ActionExecutorImpl) ExecuteActions(ctx context.Context, actions []RuleAction, event models.EventPayload, doc map[string]interface{}) error {
	for i, action := range actions {
		if err := e.ExecuteAction(ctx, action, event, doc); err != nil {
			e.logger.Warn("automation action failed",
				zap.Int("index", i),
				zap.String("type", string(action.Type)),
				zap.Error(err))
		}
	}
	return nil
}

func (e *ActionExecutorImpl) ExecuteAction(ctx context.Context, action RuleAction, event models.EventPayload, doc map[string]interface{}) error {
	switch action.Type {
	case ActionWebhook:
		return e.executeWebhook(ctx, action.Config, event, doc)
	case ActionRunScript:
		return e.executeRunScript(action.Config, event, doc)
	default:
		return fmt.Errorf("unsupported action type: %s", action.Type)
	}
}

func (e *ActionExecutorImpl) executeWebhook(ctx context.Context, config map[string]interface{}, event models.EventPayload, doc map[string]interface{}) error {
	url, _ := config["url"].(string)
	method, _ := config["method"].(string)

	if url == "" {
		return fmt.Errorf("webhook URL is required")
	}
	url = replacePlaceholders(url, doc)
	if method == "" {
		method = http.MethodPost
	}

	payload := map[string]interface{}{
		"event":       event.Event,
		"business_id": event.BusinessID,
		"session_id":  event.SessionID,
		"data":        event.Data,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if headers, ok := config["headers"].(map[string]interface{}); ok {
		for key, value := range headers {
			req.Header.Set(key, fmt.Sprintf("%v", value))
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	e.logger.Debug("automation webhook sent",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))
	return nil
}

func (e *ActionExecutorImpl) executeRunScript(config map[string]interface{}, event models.EventPayload, doc map[string]interface{}) error {
	scriptContent, _ := config["script"].(string)
	if scriptContent == "" {
		return fmt.Errorf("script content is required")
	}

	script := tengo.NewScript([]byte(scriptContent))

	script.Add("event_name", event.Event)
	script.Add("business_id", event.BusinessID)
	script.Add("session_id", event.SessionID)
	script.Add("event", doc)

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("failed to compile script: %w", err)
	}
	if err := compiled.Run(); err != nil {
		return fmt.Errorf("failed to run script: %w", err)
	}

	e.logger.Debug("automation script executed", zap.String("event", event.Event))
	return nil
}

// replacePlaceholders substitutes {{field}} tokens with top-level payload
// values.
func replacePlaceholders(text string, doc map[string]interface{}) string {
	for key, value := range doc {
		placeholder := fmt.Sprintf("{{%s}}", key)
		text = strings.ReplaceAll(text, placeholder, fmt.Sprintf("%v", value))
	}
	return text
}
