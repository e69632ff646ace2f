package models

import (
	"time"
)

// Sync lifecycle event names shared by the emitter, webhook dispatcher,
// realtime hub and automation rules.
const (
	EventSyncStarted   = "sync.started"
	EventSyncProgress  = "sync.progress"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
	EventDataChanged   = "data.changed"
)

// EventPayload is the envelope broadcast for every sync lifecycle event.
// Data carries a status/progress/changes snapshot taken at emission time.
type EventPayload struct {
	Event      string         `json:"event"`
	BusinessID string         `json:"business_id"`
	SessionID  string         `json:"session_id,omitempty"`
	Data       interface{}    `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Log is the Mongo document written by the async zap sink.
type Log struct {
	Message      string    `bson:"message" json:"message"`
	BusinessId   string    `bson:"business_id,omitempty" json:"business_id,omitempty"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
