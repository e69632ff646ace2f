package automation

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ValidationOperator string

const (
	OperatorEquals      ValidationOperator = "equals"
	OperatorNotEquals   ValidationOperator = "not_equals"
	OperatorContains    ValidationOperator = "contains"
	OperatorGreaterThan ValidationOperator = "gt"
	OperatorLessThan    ValidationOperator = "lt"
)

type ActionType string

const (
	ActionWebhook   ActionType = "webhook"
	ActionRunScript ActionType = "run_script"
)

// RuleCondition matches one field of the event payload. Field is a dotted
// path into the payload document.
type RuleCondition struct {
	Field    string             `json:"field" bson:"field"`
	Operator ValidationOperator `json:"operator" bson:"operator"`
	Value    interface{}        `json:"value" bson:"value"`
}

type RuleAction struct {
	Type   ActionType             `json:"type" bson:"type"`
	Config map[string]interface{} `json:"config" bson:"config"`
}

// AutomationRule fires its actions when a matching event is emitted for
// the business.
type AutomationRule struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BusinessID string             `json:"business_id" bson:"business_id"`
	Name       string             `json:"name" bson:"name"`
	EventType  string             `json:"event_type" bson:"event_type"`
	Active     bool               `json:"active" bson:"active"`
	Conditions []RuleCondition    `json:"conditions" bson:"conditions"`
	Actions    []RuleAction       `json:"actions" bson:"actions"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}
