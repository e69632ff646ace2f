package webhook

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Webhook is a URL subscription for a business's events
type Webhook struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BusinessID  string             `json:"business_id" bson:"business_id"`
	URL         string             `json:"url" bson:"url"`
	Secret      string             `json:"secret,omitempty" bson:"secret,omitempty"` // For HMAC signature
	Events      []string           `json:"events" bson:"events"`
	Headers     map[string]string  `json:"headers,omitempty" bson:"headers,omitempty"` // Custom headers to send
	IsActive    bool               `json:"is_active" bson:"is_active"`
	Managed     bool               `json:"managed" bson:"managed"` // Owned by the sync settings, not user-editable
	Description string             `json:"description,omitempty" bson:"description,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DeliveryLog records a single delivery attempt
type DeliveryLog struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BusinessID string             `json:"business_id" bson:"business_id"`
	WebhookID  primitive.ObjectID `json:"webhook_id" bson:"webhook_id"`
	URL        string             `json:"url" bson:"url"`
	Event      string             `json:"event" bson:"event"`
	Request    any                `json:"request" bson:"request"`
	Response   string             `json:"response,omitempty" bson:"response,omitempty"` // Body or error message
	StatusCode int                `json:"status_code" bson:"status_code"`
	Success    bool               `json:"success" bson:"success"`
	Duration   int64              `json:"duration" bson:"duration"` // Duration in milliseconds
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
