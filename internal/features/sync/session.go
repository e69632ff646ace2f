package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one synchronization run. Category sub-syncs mutate it
// concurrently, so every mutation goes through a method holding the lock
// and readers take a SessionView snapshot.
type Session struct {
	mu sync.Mutex

	id         string
	businessID string
	strategy   Strategy
	status     SessionStatus
	startTime  time.Time
	endTime    *time.Time

	progress  Progress
	changes   map[DataCategory][]DataChange
	conflicts []DataConflict
	errors    []SyncError
	warnings  []string
	stats     SyncStatistics

	lastPassEnd time.Time

	// cancelContinuous tears down the continuous-sync ticker, when one runs.
	cancelContinuous context.CancelFunc
}

// SessionView is an immutable snapshot of a session, safe to marshal.
type SessionView struct {
	ID         string                        `json:"session_id"`
	BusinessID string                        `json:"business_id"`
	Strategy   Strategy                      `json:"strategy"`
	Status     SessionStatus                 `json:"status"`
	StartTime  time.Time                     `json:"start_time"`
	EndTime    *time.Time                    `json:"end_time,omitempty"`
	Progress   Progress                      `json:"progress"`
	Changes    map[DataCategory][]DataChange `json:"changes,omitempty"`
	Conflicts  []DataConflict                `json:"conflicts,omitempty"`
	Errors     []SyncError                   `json:"errors,omitempty"`
	Warnings   []string                      `json:"warnings,omitempty"`
	Stats      SyncStatistics                `json:"stats"`
}

func newSession(businessID string, strategy Strategy) *Session {
	return &Session{
		id:         uuid.NewString(),
		businessID: businessID,
		strategy:   strategy,
		status:     StatusInProgress,
		startTime:  time.Now(),
		changes:    map[DataCategory][]DataChange{},
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) BusinessID() string { return s.businessID }
func (s *Session) Strategy() Strategy { return s.strategy }

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := make(map[DataCategory][]DataChange, len(s.changes))
	for cat, list := range s.changes {
		changes[cat] = append([]DataChange(nil), list...)
	}

	var end *time.Time
	if s.endTime != nil {
		t := *s.endTime
		end = &t
	}

	return SessionView{
		ID:         s.id,
		BusinessID: s.businessID,
		Strategy:   s.strategy,
		Status:     s.status,
		StartTime:  s.startTime,
		EndTime:    end,
		Progress:   s.progress,
		Changes:    changes,
		Conflicts:  append([]DataConflict(nil), s.conflicts...),
		Errors:     append([]SyncError(nil), s.errors...),
		Warnings:   append([]string(nil), s.warnings...),
		Stats:      s.stats,
	}
}

func (s *Session) addTotal(weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Total += weight
	s.recomputePercentage()
}

func (s *Session) markCategoryDone(weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Completed += weight
	s.recomputePercentage()
}

func (s *Session) markCategoryFailed(weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Failed += weight
	s.stats.ItemsFailed++
	s.recomputePercentage()
}

// recomputePercentage must be called with the lock held.
func (s *Session) recomputePercentage() {
	if s.progress.Total == 0 {
		s.progress.Percentage = 0
		return
	}
	s.progress.Percentage = float64(s.progress.Completed) / float64(s.progress.Total) * 100
}

func (s *Session) addChange(cat DataCategory, change DataChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes[cat] = append(s.changes[cat], change)
}

func (s *Session) addConflicts(conflicts []DataConflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = append(s.conflicts, conflicts...)
}

func (s *Session) addError(err SyncError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *Session) addWarning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

func (s *Session) hasRetryableError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.errors {
		if e.Retryable {
			return true
		}
	}
	return false
}

func (s *Session) updateStats(fn func(st *SyncStatistics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

func (s *Session) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return
	}
	now := time.Now()
	s.status = StatusCompleted
	s.endTime = &now
	s.stats.DurationMs = now.Sub(s.startTime).Milliseconds()
}

func (s *Session) fail(err SyncError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.status = StatusFailed
	s.endTime = &now
	s.stats.DurationMs = now.Sub(s.startTime).Milliseconds()
	s.errors = append(s.errors, err)
}

func (s *Session) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return false
	}
	now := time.Now()
	s.status = StatusPaused
	s.endTime = &now
	s.stats.DurationMs = now.Sub(s.startTime).Milliseconds()
	if s.cancelContinuous != nil {
		s.cancelContinuous()
		s.cancelContinuous = nil
	}
	return true
}

// resetForRetry rewinds a failed or paused session so it can run again
// in place. Counters and errors are cleared, the id is kept.
func (s *Session) resetForRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusInProgress
	s.endTime = nil
	s.progress = Progress{}
	s.errors = nil
	s.warnings = nil
	s.changes = map[DataCategory][]DataChange{}
	s.conflicts = nil
	s.stats = SyncStatistics{}
	s.startTime = time.Now()
}

func (s *Session) setCancelContinuous(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelContinuous = cancel
}

func (s *Session) markPassEnd(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPassEnd = t
}

func (s *Session) passEnd() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPassEnd
}

// SessionRegistry is the in-memory session store, one per service
// instance. Sessions are evicted explicitly, not persisted.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: map[string]*Session{},
	}
}

func (r *SessionRegistry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// ActiveForBusiness returns the in_progress session for a business, if any.
func (r *SessionRegistry) ActiveForBusiness(businessID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.BusinessID() == businessID && s.Status() == StatusInProgress {
			return s, true
		}
	}
	return nil, false
}

func (r *SessionRegistry) Active() []SessionView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []SessionView
	for _, s := range r.sessions {
		if s.Status() == StatusInProgress {
			out = append(out, s.View())
		}
	}
	return out
}
