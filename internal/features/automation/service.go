package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go-marketplace/internal/common/models"
	"go-marketplace/internal/features/sync"

	"go.uber.org/zap"
)

type AutomationService interface {
	CreateRule(ctx context.Context, rule *AutomationRule) error
	GetRule(ctx context.Context, id string) (*AutomationRule, error)
	ListRules(ctx context.Context, businessID string) ([]AutomationRule, error)
	UpdateRule(ctx context.Context, rule *AutomationRule) error
	DeleteRule(ctx context.Context, id string) error
	EnableRule(ctx context.Context, id string, active bool) error

	// OnSyncEvent evaluates every active rule for the event's business.
	OnSyncEvent(ctx context.Context, event models.EventPayload)
}

type AutomationServiceImpl struct {
	Repo           AutomationRepository
	ActionExecutor ActionExecutor
	Logger         *zap.Logger
}

func NewAutomationService(repo AutomationRepository, actionExecutor ActionExecutor, logger *zap.Logger) AutomationService {
	return &AutomationServiceImpl{
		Repo:           repo,
		ActionExecutor: actionExecutor,
		Logger:         logger,
	}
}

func (s *AutomationServiceImpl) CreateRule(ctx context.Context, rule *AutomationRule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if rule.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	for _, action := range rule.Actions {
		switch action.Type {
		case ActionWebhook, ActionRunScript:
		default:
			return fmt.Errorf("unsupported action type: %s", action.Type)
		}
	}
	return s.Repo.Create(ctx, rule)
}

func (s *AutomationServiceImpl) GetRule(ctx context.Context, id string) (*AutomationRule, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *AutomationServiceImpl) ListRules(ctx context.Context, businessID string) ([]AutomationRule, error) {
	return s.Repo.ListByBusiness(ctx, businessID)
}

func (s *AutomationServiceImpl) UpdateRule(ctx context.Context, rule *AutomationRule) error {
	return s.Repo.Update(ctx, rule)
}

func (s *AutomationServiceImpl) DeleteRule(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

func (s *AutomationServiceImpl) EnableRule(ctx context.Context, id string, active bool) error {
	return s.Repo.Enable(ctx, id, active)
}

func (s *AutomationServiceImpl) OnSyncEvent(ctx context.Context, event models.EventPayload) {
	rules, err := s.Repo.ListByEvent(ctx, event.BusinessID, event.Event)
	if err != nil {
		s.Logger.Error("failed to load automation rules",
			zap.String("event", event.Event),
			zap.String("business_id", event.BusinessID),
			zap.Error(err))
		return
	}
	if len(rules) == 0 {
		return
	}

	doc, err := eventDocument(event)
	if err != nil {
		s.Logger.Error("failed to decode event payload", zap.Error(err))
		return
	}

	for _, rule := range rules {
		if !s.evaluateConditions(rule.Conditions, doc) {
			continue
		}
		if err := s.ActionExecutor.ExecuteActions(ctx, rule.Actions, event, doc); err != nil {
			s.Logger.Warn("automation rule execution failed",
				zap.String("rule", rule.Name),
				zap.Error(err))
		}
	}
}

// eventDocument flattens the payload into a map so conditions can address
// fields by dotted path.
func eventDocument(event models.EventPayload) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *AutomationServiceImpl) evaluateConditions(conditions []RuleCondition, doc map[string]any) bool {
	for _, cond := range conditions {
		val, ok := sync.ExtractPath(doc, cond.Field)
		if !ok {
			return false
		}

		match := false
		switch cond.Operator {
		case OperatorEquals:
			match = fmt.Sprintf("%v", val) == fmt.Sprintf("%v", cond.Value)
		case OperatorNotEquals:
			match = fmt.Sprintf("%v", val) != fmt.Sprintf("%v", cond.Value)
		case OperatorContains:
			match = strings.Contains(fmt.Sprintf("%v", val), fmt.Sprintf("%v", cond.Value))
		case OperatorGreaterThan:
			a, aok := toFloat(val)
			b, bok := toFloat(cond.Value)
			match = aok && bok && a > b
		case OperatorLessThan:
			a, aok := toFloat(val)
			b, bok := toFloat(cond.Value)
			match = aok && bok && a < b
		default:
			match = false
		}

		if !match {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
