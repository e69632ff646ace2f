package sync

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Strategy string

const (
	StrategyFull        Strategy = "full"
	StrategyIncremental Strategy = "incremental"
	StrategySelective   Strategy = "selective"
	StrategyContinuous  Strategy = "continuous"
)

type ConflictStrategy string

const (
	ConflictLocalWins  ConflictStrategy = "local_wins"
	ConflictRemoteWins ConflictStrategy = "remote_wins"
	ConflictMerge      ConflictStrategy = "merge"
	ConflictManual     ConflictStrategy = "manual"
	ConflictNewestWins ConflictStrategy = "newest_wins"
)

type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
	StatusPaused     SessionStatus = "paused"
)

type DataCategory string

const (
	CategoryBusinessInfo DataCategory = "business_info"
	CategoryReviews      DataCategory = "reviews"
	CategoryPosts        DataCategory = "posts"
	CategoryPhotos       DataCategory = "photos"
	CategoryInsights     DataCategory = "insights"
)

// CategoryWeights are the pre-allocated progress shares per category.
// They are workload estimates, not hard item counts.
var CategoryWeights = map[DataCategory]int{
	CategoryBusinessInfo: 5,
	CategoryReviews:      50,
	CategoryPosts:        20,
	CategoryPhotos:       30,
	CategoryInsights:     10,
}

// AllCategories returns every category in a stable order.
func AllCategories() []DataCategory {
	return []DataCategory{
		CategoryBusinessInfo,
		CategoryReviews,
		CategoryPosts,
		CategoryPhotos,
		CategoryInsights,
	}
}

type RetryPolicy struct {
	Enabled     bool `json:"enabled" bson:"enabled"`
	MaxAttempts int  `json:"max_attempts" bson:"max_attempts"`
}

// SyncConfiguration is the per-business sync setup. It is read once when a
// session starts; edits apply from the next session on.
type SyncConfiguration struct {
	ID         primitive.ObjectID    `json:"id" bson:"_id,omitempty"`
	BusinessID string                `json:"business_id" bson:"business_id"`
	Strategy   Strategy              `json:"strategy" bson:"strategy"`
	AutoSync   bool                  `json:"auto_sync" bson:"auto_sync"`
	// SyncIntervalMinutes drives both auto-sync scheduling and the
	// continuous-strategy tick.
	SyncIntervalMinutes int                   `json:"sync_interval_minutes" bson:"sync_interval_minutes"`
	ConflictStrategy    ConflictStrategy      `json:"conflict_strategy" bson:"conflict_strategy"`
	Categories          map[DataCategory]bool `json:"categories" bson:"categories"`
	WebhookEnabled      bool                  `json:"webhook_enabled" bson:"webhook_enabled"`
	WebhookURL          string                `json:"webhook_url,omitempty" bson:"webhook_url,omitempty"`
	Retry               RetryPolicy           `json:"retry" bson:"retry"`
	CreatedAt           time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at" bson:"updated_at"`
}

// DefaultConfiguration is used when a business never configured sync.
func DefaultConfiguration(businessID string) *SyncConfiguration {
	categories := make(map[DataCategory]bool, len(CategoryWeights))
	for _, cat := range AllCategories() {
		categories[cat] = true
	}
	return &SyncConfiguration{
		BusinessID:          businessID,
		Strategy:            StrategyIncremental,
		SyncIntervalMinutes: 60,
		ConflictStrategy:    ConflictRemoteWins,
		Categories:          categories,
		Retry:               RetryPolicy{Enabled: true, MaxAttempts: 3},
	}
}

func (c *SyncConfiguration) Validate() error {
	if c.BusinessID == "" {
		return fmt.Errorf("business_id is required")
	}
	switch c.Strategy {
	case StrategyFull, StrategyIncremental, StrategySelective, StrategyContinuous:
	default:
		return fmt.Errorf("unknown sync strategy: %q", c.Strategy)
	}
	switch c.ConflictStrategy {
	case ConflictLocalWins, ConflictRemoteWins, ConflictMerge, ConflictManual, ConflictNewestWins:
	default:
		return fmt.Errorf("unknown conflict strategy: %q", c.ConflictStrategy)
	}
	if c.AutoSync && c.SyncIntervalMinutes < 5 {
		return fmt.Errorf("auto-sync interval must be at least 5 minutes")
	}
	if c.WebhookEnabled && c.WebhookURL == "" {
		return fmt.Errorf("webhook_url is required when webhooks are enabled")
	}
	if c.Retry.Enabled && c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	for cat := range c.Categories {
		if _, ok := CategoryWeights[cat]; !ok {
			return fmt.Errorf("unknown data category: %q", cat)
		}
	}
	return nil
}

// EnabledCategories returns the enabled categories in stable order.
func (c *SyncConfiguration) EnabledCategories() []DataCategory {
	var out []DataCategory
	for _, cat := range AllCategories() {
		if c.Categories[cat] {
			out = append(out, cat)
		}
	}
	return out
}

type Progress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Percentage float64 `json:"percentage"`
}

type SyncStatistics struct {
	ItemsProcessed int   `json:"items_processed"`
	ItemsCreated   int   `json:"items_created"`
	ItemsUpdated   int   `json:"items_updated"`
	ItemsDeleted   int   `json:"items_deleted"`
	ItemsFailed    int   `json:"items_failed"`
	APICalls       int   `json:"api_calls"`
	DurationMs     int64 `json:"duration_ms"`
}

// DataChange records one applied field or category update. Append-only.
type DataChange struct {
	Field     string    `json:"field" bson:"field"`
	OldValue  any       `json:"old_value,omitempty" bson:"old_value,omitempty"`
	NewValue  any       `json:"new_value,omitempty" bson:"new_value,omitempty"`
	Source    string    `json:"source" bson:"source"` // local | remote
	Action    string    `json:"action" bson:"action"` // create | update | delete
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// DataConflict is produced when local and remote disagree on a field.
type DataConflict struct {
	Field         string           `json:"field" bson:"field"`
	LocalValue    any              `json:"local_value,omitempty" bson:"local_value,omitempty"`
	RemoteValue   any              `json:"remote_value,omitempty" bson:"remote_value,omitempty"`
	Strategy      ConflictStrategy `json:"strategy" bson:"strategy"`
	Resolved      bool             `json:"resolved" bson:"resolved"`
	SelectedValue any              `json:"selected_value,omitempty" bson:"selected_value,omitempty"`
	Details       []string         `json:"details,omitempty" bson:"details,omitempty"`
}

type SyncError struct {
	Code      string       `json:"code" bson:"code"`
	Message   string       `json:"message" bson:"message"`
	Category  DataCategory `json:"category,omitempty" bson:"category,omitempty"`
	Retryable bool         `json:"retryable" bson:"retryable"`
	Timestamp time.Time    `json:"timestamp" bson:"timestamp"`
}

// HistoryRecord is the persisted trace of one terminal session.
type HistoryRecord struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BusinessID     string             `json:"business_id" bson:"business_id"`
	SessionID      string             `json:"session_id" bson:"session_id"`
	Strategy       Strategy           `json:"strategy" bson:"strategy"`
	Status         SessionStatus      `json:"status" bson:"status"`
	StartTime      time.Time          `json:"start_time" bson:"start_time"`
	EndTime        time.Time          `json:"end_time" bson:"end_time"`
	DurationMs     int64              `json:"duration_ms" bson:"duration_ms"`
	ItemsProcessed int                `json:"items_processed" bson:"items_processed"`
	ItemsCreated   int                `json:"items_created" bson:"items_created"`
	ItemsUpdated   int                `json:"items_updated" bson:"items_updated"`
	ItemsFailed    int                `json:"items_failed" bson:"items_failed"`
	APICalls       int                `json:"api_calls" bson:"api_calls"`
	Categories     []DataCategory     `json:"categories" bson:"categories"`
	Errors         []SyncError        `json:"errors,omitempty" bson:"errors,omitempty"`
	Warnings       []string           `json:"warnings,omitempty" bson:"warnings,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

type HistoryQuery struct {
	Limit  int64
	Offset int64
	Start  time.Time
	End    time.Time
}

// Report is the aggregate health view derived from history.
type Report struct {
	BusinessID         string         `json:"business_id"`
	RangeStart         time.Time      `json:"range_start"`
	RangeEnd           time.Time      `json:"range_end"`
	TotalRuns          int            `json:"total_runs"`
	SuccessfulRuns     int            `json:"successful_runs"`
	FailedRuns         int            `json:"failed_runs"`
	AverageDurationMs  int64          `json:"average_duration_ms"`
	MostSyncedCategory DataCategory   `json:"most_synced_category,omitempty"`
	RecentErrors       []SyncError    `json:"recent_errors,omitempty"`
	Recommendations    []string       `json:"recommendations,omitempty"`
	CategoryCounts     map[string]int `json:"category_counts,omitempty"`
}
