package automation

import (
	"testing"
	"time"

	"go-marketplace/internal/common/models"
)

func TestEvaluateConditions(t *testing.T) {
	svc := &AutomationServiceImpl{}

	doc, err := eventDocument(models.EventPayload{
		Event:      models.EventSyncCompleted,
		BusinessID: "biz1",
		SessionID:  "sess1",
		Data: map[string]any{
			"status": "completed",
			"progress": map[string]any{
				"failed": 50,
			},
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("eventDocument: %v", err)
	}

	tests := []struct {
		name       string
		conditions []RuleCondition
		want       bool
	}{
		{
			name: "no conditions always match",
			want: true,
		},
		{
			name: "equals on top-level field",
			conditions: []RuleCondition{
				{Field: "event", Operator: OperatorEquals, Value: "sync.completed"},
			},
			want: true,
		},
		{
			name: "equals on nested data field",
			conditions: []RuleCondition{
				{Field: "data.status", Operator: OperatorEquals, Value: "completed"},
			},
			want: true,
		},
		{
			name: "not equals",
			conditions: []RuleCondition{
				{Field: "data.status", Operator: OperatorNotEquals, Value: "failed"},
			},
			want: true,
		},
		{
			name: "contains",
			conditions: []RuleCondition{
				{Field: "event", Operator: OperatorContains, Value: "sync."},
			},
			want: true,
		},
		{
			name: "numeric greater than",
			conditions: []RuleCondition{
				{Field: "data.progress.failed", Operator: OperatorGreaterThan, Value: 10},
			},
			want: true,
		},
		{
			name: "numeric less than fails",
			conditions: []RuleCondition{
				{Field: "data.progress.failed", Operator: OperatorLessThan, Value: 10},
			},
			want: false,
		},
		{
			name: "missing field never matches",
			conditions: []RuleCondition{
				{Field: "data.nope", Operator: OperatorEquals, Value: "x"},
			},
			want: false,
		},
		{
			name: "all conditions must hold",
			conditions: []RuleCondition{
				{Field: "business_id", Operator: OperatorEquals, Value: "biz1"},
				{Field: "data.status", Operator: OperatorEquals, Value: "failed"},
			},
			want: false,
		},
		{
			name: "unknown operator never matches",
			conditions: []RuleCondition{
				{Field: "event", Operator: ValidationOperator("matches"), Value: "sync.completed"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.evaluateConditions(tt.conditions, doc); got != tt.want {
				t.Errorf("evaluateConditions() = %v, want %v", got, tt.want)
			}
		})
	}
}
