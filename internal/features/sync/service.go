package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	syncpkg "sync"
	"time"

	common_models "go-marketplace/internal/common/models"
	"go-marketplace/internal/config"
	"go-marketplace/internal/features/business"
	"go-marketplace/internal/features/listing"
	"go-marketplace/pkg/breaker"
	"go-marketplace/pkg/retry"

	"go.uber.org/zap"
)

var (
	ErrSyncInProgress    = errors.New("sync already in progress for this business")
	ErrNotConnected      = errors.New("business is not connected to the listing provider")
	ErrSessionNotFound   = errors.New("sync session not found")
	ErrInvalidTransition = errors.New("operation not valid for the session's current status")
)

// StartOptions are the caller-supplied overrides for one run.
type StartOptions struct {
	Type       Strategy       `json:"type,omitempty"`
	Categories []DataCategory `json:"categories,omitempty"`
	Force      bool           `json:"force,omitempty"`
}

type SyncService interface {
	SaveSettings(ctx context.Context, cfg *SyncConfiguration) error
	GetSettings(ctx context.Context, businessID string) (*SyncConfiguration, error)

	StartSync(ctx context.Context, businessID string, opts StartOptions) (*SessionView, error)
	GetSyncStatus(sessionID string) (*SessionView, error)
	GetActiveSessions() []SessionView
	CancelSync(ctx context.Context, sessionID string) error
	ResumeSync(ctx context.Context, sessionID string) (*SessionView, error)
	RetrySession(ctx context.Context, sessionID string) (*SessionView, error)

	GetSyncHistory(ctx context.Context, businessID string, q HistoryQuery) ([]HistoryRecord, error)
	GenerateSyncReport(ctx context.Context, businessID string, start, end time.Time) (*Report, error)
	ExportSyncReport(ctx context.Context, businessID string, start, end time.Time) ([]byte, error)

	BreakerMetrics() map[string]breaker.Metrics
}

// breakerSet holds one circuit per remote operation, keyed by what the
// operation returns.
type breakerSet struct {
	location *breaker.Breaker[*listing.Snapshot]
	reviews  *breaker.Breaker[*listing.ReviewPage]
	posts    *breaker.Breaker[*listing.PostPage]
	insights *breaker.Breaker[*listing.Insights]
}

func newBreakerSet(cfg *config.Config, logger *zap.Logger) *breakerSet {
	opts := breaker.Options{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          time.Duration(cfg.SyncBreakerTimeout) * time.Second,
		Logger:           logger,
	}
	return &breakerSet{
		location: breaker.New[*listing.Snapshot]("listing.location", opts),
		reviews:  breaker.New[*listing.ReviewPage]("listing.reviews", opts),
		posts:    breaker.New[*listing.PostPage]("listing.posts", opts),
		insights: breaker.New[*listing.Insights]("listing.insights", opts),
	}
}

type SyncServiceImpl struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *SessionRegistry
	configs    ConfigRepository
	history    HistoryRepository
	businesses business.BusinessRepository
	client     listing.Client
	emitter    *EventEmitter
	breakers   *breakerSet
}

func NewSyncService(
	cfg *config.Config,
	logger *zap.Logger,
	registry *SessionRegistry,
	configs ConfigRepository,
	history HistoryRepository,
	businesses business.BusinessRepository,
	client listing.Client,
	emitter *EventEmitter,
) SyncService {
	return &SyncServiceImpl{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		configs:    configs,
		history:    history,
		businesses: businesses,
		client:     client,
		emitter:    emitter,
		breakers:   newBreakerSet(cfg, logger),
	}
}

func (s *SyncServiceImpl) SaveSettings(ctx context.Context, cfg *SyncConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.configs.Upsert(ctx, cfg)
}

func (s *SyncServiceImpl) GetSettings(ctx context.Context, businessID string) (*SyncConfiguration, error) {
	return s.configs.GetByBusiness(ctx, businessID)
}

// effectiveConfig returns the stored configuration or the hard-coded
// default when the business never configured sync.
func (s *SyncServiceImpl) effectiveConfig(ctx context.Context, businessID string) (*SyncConfiguration, error) {
	cfg, err := s.configs.GetByBusiness(ctx, businessID)
	if errors.Is(err, ErrConfigNotFound) {
		return DefaultConfiguration(businessID), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SyncServiceImpl) StartSync(ctx context.Context, businessID string, opts StartOptions) (*SessionView, error) {
	biz, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("business not found: %w", err)
	}
	if !biz.Listing.Connected || biz.Listing.LocationRef == "" {
		return nil, ErrNotConnected
	}

	if _, active := s.registry.ActiveForBusiness(businessID); active && !opts.Force {
		return nil, ErrSyncInProgress
	}

	cfg, err := s.effectiveConfig(ctx, businessID)
	if err != nil {
		return nil, err
	}

	strategy := cfg.Strategy
	if opts.Type != "" {
		strategy = opts.Type
	}
	switch strategy {
	case StrategyFull, StrategyIncremental, StrategySelective, StrategyContinuous:
	default:
		return nil, fmt.Errorf("unknown sync strategy: %q", strategy)
	}

	session := newSession(businessID, strategy)
	s.registry.Register(session)
	s.emitter.Emit(ctx, common_models.EventSyncStarted, businessID, session.ID(), session.View())

	s.logger.Info("sync session started",
		zap.String("business_id", businessID),
		zap.String("session_id", session.ID()),
		zap.String("strategy", string(strategy)))

	if err := s.runWithRetry(ctx, session, cfg, biz, strategy, opts); err != nil {
		view := session.View()
		return &view, err
	}

	s.finalize(ctx, session, biz)
	view := session.View()
	return &view, nil
}

// runWithRetry dispatches the session and, when the configuration allows
// it and a recorded error is retryable, re-runs the whole dispatch with
// exponential backoff before giving up.
func (s *SyncServiceImpl) runWithRetry(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, strategy Strategy, opts StartOptions) error {
	dispatchErr := s.dispatch(ctx, session, cfg, biz, strategy, opts)
	if dispatchErr == nil {
		return nil
	}
	s.failSession(ctx, session, dispatchErr)

	if cfg.Retry.Enabled && session.hasRetryableError() {
		maxAttempts := cfg.Retry.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = s.cfg.SyncMaxRetries
		}

		backoff := 1 * time.Second
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			s.logger.Info("retrying failed sync session",
				zap.String("session_id", session.ID()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2

			session.resetForRetry()
			dispatchErr = s.dispatch(ctx, session, cfg, biz, strategy, opts)
			if dispatchErr == nil {
				return nil
			}
			s.failSession(ctx, session, dispatchErr)
		}
	}

	s.appendHistory(ctx, session)
	return dispatchErr
}

func (s *SyncServiceImpl) failSession(ctx context.Context, session *Session, err error) {
	session.fail(SyncError{
		Code:      "SESSION_FAILED",
		Message:   err.Error(),
		Retryable: retry.IsRetryable(err),
		Timestamp: time.Now(),
	})
	s.emitter.Emit(ctx, common_models.EventSyncFailed, session.BusinessID(), session.ID(), session.View())
	s.logger.Error("sync session failed",
		zap.String("session_id", session.ID()),
		zap.String("business_id", session.BusinessID()),
		zap.Error(err))
}

// finalize stamps the terminal state of a successful dispatch. Continuous
// sessions stay in_progress while their recurring check runs.
func (s *SyncServiceImpl) finalize(ctx context.Context, session *Session, biz *business.Business) {
	now := time.Now()

	if session.Strategy() == StrategyContinuous {
		if err := s.businesses.SetLastSynced(ctx, biz.ID.Hex(), now); err != nil {
			s.logger.Warn("failed to stamp last sync time", zap.Error(err))
		}
		s.appendHistory(ctx, session)
		s.emitter.Emit(ctx, common_models.EventSyncProgress, session.BusinessID(), session.ID(), session.View())
		return
	}

	session.complete()
	if session.Status() != StatusCompleted {
		// Cancelled mid-run: results were discarded, nothing to stamp.
		return
	}

	if err := s.businesses.SetLastSynced(ctx, biz.ID.Hex(), now); err != nil {
		s.logger.Warn("failed to stamp last sync time", zap.Error(err))
	}
	s.appendHistory(ctx, session)
	s.emitter.Emit(ctx, common_models.EventSyncCompleted, session.BusinessID(), session.ID(), session.View())

	s.logger.Info("sync session completed",
		zap.String("session_id", session.ID()),
		zap.String("business_id", session.BusinessID()))
}

func (s *SyncServiceImpl) appendHistory(ctx context.Context, session *Session) {
	view := session.View()

	end := time.Now()
	if view.EndTime != nil {
		end = *view.EndTime
	}

	categories := make([]DataCategory, 0, len(view.Changes))
	for cat := range view.Changes {
		categories = append(categories, cat)
	}

	errs := view.Errors
	if len(errs) > 10 {
		errs = errs[len(errs)-10:]
	}

	record := &HistoryRecord{
		BusinessID:     view.BusinessID,
		SessionID:      view.ID,
		Strategy:       view.Strategy,
		Status:         completedOrFailed(view.Status),
		StartTime:      view.StartTime,
		EndTime:        end,
		DurationMs:     view.Stats.DurationMs,
		ItemsProcessed: view.Stats.ItemsProcessed,
		ItemsCreated:   view.Stats.ItemsCreated,
		ItemsUpdated:   view.Stats.ItemsUpdated,
		ItemsFailed:    view.Stats.ItemsFailed,
		APICalls:       view.Stats.APICalls,
		Categories:     categories,
		Errors:         errs,
		Warnings:       view.Warnings,
	}

	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.history.Append(ctx, record)
	}, retry.StorageOptions(s.logger))
	if err != nil {
		s.logger.Error("failed to persist sync history", zap.Error(err))
	}
}

// History records only know terminal outcomes; an in_progress continuous
// pass is recorded as completed.
func completedOrFailed(status SessionStatus) SessionStatus {
	if status == StatusFailed {
		return StatusFailed
	}
	return StatusCompleted
}

func (s *SyncServiceImpl) dispatch(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, strategy Strategy, opts StartOptions) error {
	switch strategy {
	case StrategyFull:
		s.runCategories(ctx, session, cfg, biz, cfg.EnabledCategories(), opts.Force)
		return nil
	case StrategyIncremental:
		return s.runIncremental(ctx, session, cfg, biz, opts)
	case StrategySelective:
		return s.runSelective(ctx, session, cfg, biz, opts)
	case StrategyContinuous:
		return s.runContinuous(ctx, session, cfg, biz, opts)
	default:
		return fmt.Errorf("unknown sync strategy: %q", strategy)
	}
}

func (s *SyncServiceImpl) runSelective(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, opts StartOptions) error {
	enabled := map[DataCategory]bool{}
	for _, cat := range cfg.EnabledCategories() {
		enabled[cat] = true
	}

	var cats []DataCategory
	for _, cat := range opts.Categories {
		if enabled[cat] {
			cats = append(cats, cat)
		}
	}
	if len(cats) == 0 {
		return fmt.Errorf("no enabled data categories selected")
	}

	s.runCategories(ctx, session, cfg, biz, cats, opts.Force)
	return nil
}

func (s *SyncServiceImpl) runIncremental(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, opts StartOptions) error {
	var since time.Time
	last, err := s.history.LastSuccessful(ctx, biz.ID.Hex())
	if err != nil {
		return fmt.Errorf("load last sync: %w", err)
	}
	if last != nil {
		since = last.EndTime
	} else if biz.Listing.LastSyncedAt != nil {
		since = *biz.Listing.LastSyncedAt
	}

	// First sync ever: nothing to diff against, run everything.
	if since.IsZero() {
		s.runCategories(ctx, session, cfg, biz, cfg.EnabledCategories(), opts.Force)
		return nil
	}

	cats, err := s.detectChangedCategories(ctx, session, cfg, biz, since)
	if err != nil {
		return fmt.Errorf("location details unavailable: %w", err)
	}
	if len(cats) == 0 {
		session.addWarning("no remote changes detected since last sync")
		return nil
	}

	s.runCategories(ctx, session, cfg, biz, cats, opts.Force)
	return nil
}

func (s *SyncServiceImpl) runContinuous(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, opts StartOptions) error {
	s.runCategories(ctx, session, cfg, biz, cfg.EnabledCategories(), opts.Force)
	session.markPassEnd(time.Now())

	interval := time.Duration(cfg.SyncIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	// The recurring check is detached from the request context: it lives
	// until CancelSync tears it down.
	tickCtx, cancel := context.WithCancel(context.Background())
	session.setCancelContinuous(cancel)
	go s.continuousLoop(tickCtx, session, cfg, biz, interval)

	return nil
}

func (s *SyncServiceImpl) continuousLoop(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if session.Status() != StatusInProgress {
				return
			}

			since := session.passEnd()
			cats, err := s.detectChangedCategories(ctx, session, cfg, biz, since)
			if err != nil {
				session.addWarning(fmt.Sprintf("continuous check failed: %v", err))
				continue
			}
			if len(cats) > 0 {
				s.runCategories(ctx, session, cfg, biz, cats, false)
				s.emitter.Emit(ctx, common_models.EventSyncProgress, session.BusinessID(), session.ID(), session.View())
			}
			session.markPassEnd(time.Now())
		}
	}
}

// detectChangedCategories diffs remote state against a reference time and
// returns the enabled categories with newer remote data.
func (s *SyncServiceImpl) detectChangedCategories(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, since time.Time) ([]DataCategory, error) {
	snapshot, err := s.fetchLocation(ctx, session, biz.Listing.LocationRef)
	if err != nil {
		return nil, err
	}

	enabled := map[DataCategory]bool{}
	for _, cat := range cfg.EnabledCategories() {
		enabled[cat] = true
	}

	var cats []DataCategory
	if enabled[CategoryBusinessInfo] && snapshot.UpdateTime.After(since) {
		cats = append(cats, CategoryBusinessInfo)
	}
	if enabled[CategoryPhotos] {
		for _, photo := range snapshot.Photos {
			if photo.CreateTime.After(since) {
				cats = append(cats, CategoryPhotos)
				break
			}
		}
	}
	if enabled[CategoryReviews] {
		page, err := s.fetchReviews(ctx, session, biz.ID.Hex())
		if err != nil {
			// Let the sub-sync own the failure and its retries.
			cats = append(cats, CategoryReviews)
		} else {
			for _, review := range page.Reviews {
				if review.UpdateTime.After(since) {
					cats = append(cats, CategoryReviews)
					break
				}
			}
		}
	}
	if enabled[CategoryPosts] {
		page, err := s.fetchPosts(ctx, session, biz.ID.Hex())
		if err != nil {
			cats = append(cats, CategoryPosts)
		} else {
			for _, post := range page.Posts {
				if post.UpdateTime.After(since) {
					cats = append(cats, CategoryPosts)
					break
				}
			}
		}
	}
	if enabled[CategoryInsights] {
		// Insight metrics are date-ranged; newer data always exists.
		cats = append(cats, CategoryInsights)
	}

	return cats, nil
}

// runCategories fans the sub-syncs out and waits for all of them. Each
// sub-sync owns its slice of session state; a failing category never
// aborts its siblings.
func (s *SyncServiceImpl) runCategories(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, cats []DataCategory, force bool) {
	for _, cat := range cats {
		session.addTotal(CategoryWeights[cat])
	}

	var wg syncpkg.WaitGroup
	for _, cat := range cats {
		wg.Add(1)
		go func(cat DataCategory) {
			defer wg.Done()

			err := s.syncCategory(ctx, session, cfg, biz, cat, force)

			// Cancelled sessions discard in-flight results.
			if session.Status() != StatusInProgress {
				return
			}

			weight := CategoryWeights[cat]
			if err != nil {
				session.addError(SyncError{
					Code:      "CATEGORY_SYNC_FAILED",
					Message:   err.Error(),
					Category:  cat,
					Retryable: true,
					Timestamp: time.Now(),
				})
				session.addWarning(fmt.Sprintf("%s sync failed: %v", cat, err))
				session.markCategoryFailed(weight)
				s.logger.Warn("category sync failed",
					zap.String("session_id", session.ID()),
					zap.String("category", string(cat)),
					zap.Error(err))
			} else {
				session.markCategoryDone(weight)
			}

			s.emitter.Emit(ctx, common_models.EventSyncProgress, session.BusinessID(), session.ID(), session.View().Progress)
		}(cat)
	}
	wg.Wait()
}

func (s *SyncServiceImpl) syncCategory(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, cat DataCategory, force bool) error {
	switch cat {
	case CategoryBusinessInfo:
		return s.syncBusinessInfo(ctx, session, cfg, biz, force)
	case CategoryReviews:
		return s.syncReviews(ctx, session, biz)
	case CategoryPosts:
		return s.syncPosts(ctx, session, biz)
	case CategoryPhotos:
		return s.syncPhotos(ctx, session, biz)
	case CategoryInsights:
		return s.syncInsights(ctx, session, biz)
	default:
		return fmt.Errorf("unknown data category: %q", cat)
	}
}

func (s *SyncServiceImpl) syncBusinessInfo(ctx context.Context, session *Session, cfg *SyncConfiguration, biz *business.Business, force bool) error {
	snapshot, err := s.fetchLocation(ctx, session, biz.Listing.LocationRef)
	if err != nil {
		return err
	}

	remoteDoc, err := snapshot.Document()
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	localDoc, err := businessDocument(biz)
	if err != nil {
		return fmt.Errorf("decode business: %w", err)
	}

	resolver := NewResolver(cfg.ConflictStrategy, force, biz.UpdatedAt, snapshot.UpdateTime)
	res := resolver.Resolve(localDoc, remoteDoc, BusinessInfoMappings)

	session.addConflicts(res.Conflicts)
	for _, change := range res.Changes {
		session.addChange(CategoryBusinessInfo, change)
	}

	if len(res.Updates) > 0 {
		_, err = retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.businesses.Update(ctx, biz.ID.Hex(), res.Updates)
		}, retry.StorageOptions(s.logger))
		if err != nil {
			return fmt.Errorf("apply updates: %w", err)
		}
		if err := s.businesses.MergeDataSources(ctx, biz.ID.Hex(), res.Sources); err != nil {
			s.logger.Warn("failed to record data sources", zap.Error(err))
		}

		s.emitter.Emit(ctx, common_models.EventDataChanged, session.BusinessID(), session.ID(), res.Changes)
	}

	session.updateStats(func(st *SyncStatistics) {
		st.ItemsProcessed++
		st.ItemsUpdated += len(res.Updates)
	})
	return nil
}

func (s *SyncServiceImpl) syncReviews(ctx context.Context, session *Session, biz *business.Business) error {
	page, err := s.fetchReviews(ctx, session, biz.ID.Hex())
	if err != nil {
		return err
	}

	since := time.Time{}
	if biz.Listing.LastSyncedAt != nil {
		since = *biz.Listing.LastSyncedAt
	}

	var created, updated int
	for _, review := range page.Reviews {
		if review.CreateTime.After(since) {
			created++
		} else if review.UpdateTime.After(since) {
			updated++
		}
	}

	session.updateStats(func(st *SyncStatistics) {
		st.ItemsProcessed += len(page.Reviews)
		st.ItemsCreated += created
		st.ItemsUpdated += updated
	})
	session.addChange(CategoryReviews, DataChange{
		Field:     "reviews",
		NewValue:  page.Total,
		Source:    "remote",
		Action:    "update",
		Timestamp: time.Now(),
	})
	return nil
}

func (s *SyncServiceImpl) syncPosts(ctx context.Context, session *Session, biz *business.Business) error {
	page, err := s.fetchPosts(ctx, session, biz.ID.Hex())
	if err != nil {
		return err
	}

	since := time.Time{}
	if biz.Listing.LastSyncedAt != nil {
		since = *biz.Listing.LastSyncedAt
	}

	var created int
	for _, post := range page.Posts {
		if post.CreateTime.After(since) {
			created++
		}
	}

	session.updateStats(func(st *SyncStatistics) {
		st.ItemsProcessed += len(page.Posts)
		st.ItemsCreated += created
	})
	session.addChange(CategoryPosts, DataChange{
		Field:     "posts",
		NewValue:  page.Total,
		Source:    "remote",
		Action:    "update",
		Timestamp: time.Now(),
	})
	return nil
}

func (s *SyncServiceImpl) syncPhotos(ctx context.Context, session *Session, biz *business.Business) error {
	snapshot, err := s.fetchLocation(ctx, session, biz.Listing.LocationRef)
	if err != nil {
		return err
	}

	since := time.Time{}
	if biz.Listing.LastSyncedAt != nil {
		since = *biz.Listing.LastSyncedAt
	}

	var created int
	for _, photo := range snapshot.Photos {
		if photo.CreateTime.After(since) {
			created++
		}
	}

	session.updateStats(func(st *SyncStatistics) {
		st.ItemsProcessed += len(snapshot.Photos)
		st.ItemsCreated += created
	})
	session.addChange(CategoryPhotos, DataChange{
		Field:     "photos",
		NewValue:  len(snapshot.Photos),
		Source:    "remote",
		Action:    "update",
		Timestamp: time.Now(),
	})
	return nil
}

func (s *SyncServiceImpl) syncInsights(ctx context.Context, session *Session, biz *business.Business) error {
	dateRange := listing.DateRange{
		Start: time.Now().AddDate(0, 0, -30),
		End:   time.Now(),
	}

	insights, err := s.fetchInsights(ctx, session, biz.ID.Hex(), dateRange)
	if err != nil {
		return err
	}

	session.updateStats(func(st *SyncStatistics) {
		st.ItemsProcessed += len(insights.Metrics)
	})
	session.addChange(CategoryInsights, DataChange{
		Field:     "insights",
		NewValue:  insights.Metrics,
		Source:    "remote",
		Action:    "update",
		Timestamp: time.Now(),
	})
	return nil
}

// The remote fetches nest retry inside the breaker: when the circuit is
// open, no attempts are burned at all.

func (s *SyncServiceImpl) fetchLocation(ctx context.Context, session *Session, locationRef string) (*listing.Snapshot, error) {
	session.updateStats(func(st *SyncStatistics) { st.APICalls++ })
	return s.breakers.location.Execute(ctx, func(ctx context.Context) (*listing.Snapshot, error) {
		return retry.Do(ctx, func(ctx context.Context) (*listing.Snapshot, error) {
			return s.client.FetchLocationDetails(ctx, locationRef)
		}, retry.APIOptions(s.logger))
	})
}

func (s *SyncServiceImpl) fetchReviews(ctx context.Context, session *Session, businessID string) (*listing.ReviewPage, error) {
	session.updateStats(func(st *SyncStatistics) { st.APICalls++ })
	return s.breakers.reviews.Execute(ctx, func(ctx context.Context) (*listing.ReviewPage, error) {
		return retry.Do(ctx, func(ctx context.Context) (*listing.ReviewPage, error) {
			return s.client.FetchReviews(ctx, businessID)
		}, retry.APIOptions(s.logger))
	})
}

func (s *SyncServiceImpl) fetchPosts(ctx context.Context, session *Session, businessID string) (*listing.PostPage, error) {
	session.updateStats(func(st *SyncStatistics) { st.APICalls++ })
	return s.breakers.posts.Execute(ctx, func(ctx context.Context) (*listing.PostPage, error) {
		return retry.Do(ctx, func(ctx context.Context) (*listing.PostPage, error) {
			return s.client.FetchPosts(ctx, businessID)
		}, retry.APIOptions(s.logger))
	})
}

func (s *SyncServiceImpl) fetchInsights(ctx context.Context, session *Session, businessID string, dateRange listing.DateRange) (*listing.Insights, error) {
	session.updateStats(func(st *SyncStatistics) { st.APICalls++ })
	return s.breakers.insights.Execute(ctx, func(ctx context.Context) (*listing.Insights, error) {
		return retry.Do(ctx, func(ctx context.Context) (*listing.Insights, error) {
			return s.client.FetchInsights(ctx, businessID, dateRange)
		}, retry.APIOptions(s.logger))
	})
}

func (s *SyncServiceImpl) GetSyncStatus(sessionID string) (*SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	view := session.View()
	return &view, nil
}

func (s *SyncServiceImpl) GetActiveSessions() []SessionView {
	return s.registry.Active()
}

func (s *SyncServiceImpl) CancelSync(ctx context.Context, sessionID string) error {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if !session.pause() {
		return fmt.Errorf("%w: only in_progress sessions can be cancelled", ErrInvalidTransition)
	}

	s.emitter.Emit(ctx, common_models.EventSyncFailed, session.BusinessID(), session.ID(), session.View())
	s.logger.Info("sync session cancelled",
		zap.String("session_id", sessionID),
		zap.String("business_id", session.BusinessID()))
	return nil
}

func (s *SyncServiceImpl) ResumeSync(ctx context.Context, sessionID string) (*SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Status() != StatusPaused {
		return nil, fmt.Errorf("%w: only paused sessions can be resumed", ErrInvalidTransition)
	}

	biz, err := s.businesses.Get(ctx, session.BusinessID())
	if err != nil {
		return nil, fmt.Errorf("business not found: %w", err)
	}
	cfg, err := s.effectiveConfig(ctx, session.BusinessID())
	if err != nil {
		return nil, err
	}

	session.resetForRetry()
	s.emitter.Emit(ctx, common_models.EventSyncStarted, session.BusinessID(), session.ID(), session.View())

	// A resumed session always re-runs as a full sync.
	if err := s.runWithRetry(ctx, session, cfg, biz, StrategyFull, StartOptions{}); err != nil {
		view := session.View()
		return &view, err
	}

	s.finalize(ctx, session, biz)
	view := session.View()
	return &view, nil
}

func (s *SyncServiceImpl) RetrySession(ctx context.Context, sessionID string) (*SessionView, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Status() != StatusFailed {
		return nil, fmt.Errorf("%w: only failed sessions can be retried", ErrInvalidTransition)
	}

	biz, err := s.businesses.Get(ctx, session.BusinessID())
	if err != nil {
		return nil, fmt.Errorf("business not found: %w", err)
	}
	cfg, err := s.effectiveConfig(ctx, session.BusinessID())
	if err != nil {
		return nil, err
	}

	session.resetForRetry()
	s.emitter.Emit(ctx, common_models.EventSyncStarted, session.BusinessID(), session.ID(), session.View())

	if err := s.runWithRetry(ctx, session, cfg, biz, session.Strategy(), StartOptions{}); err != nil {
		view := session.View()
		return &view, err
	}

	s.finalize(ctx, session, biz)
	view := session.View()
	return &view, nil
}

func (s *SyncServiceImpl) GetSyncHistory(ctx context.Context, businessID string, q HistoryQuery) ([]HistoryRecord, error) {
	return s.history.List(ctx, businessID, q)
}

func (s *SyncServiceImpl) BreakerMetrics() map[string]breaker.Metrics {
	return map[string]breaker.Metrics{
		"listing.location": s.breakers.location.Metrics(),
		"listing.reviews":  s.breakers.reviews.Metrics(),
		"listing.posts":    s.breakers.posts.Metrics(),
		"listing.insights": s.breakers.insights.Metrics(),
	}
}

// businessDocument flattens the local entity into the JSON-like shape the
// resolver compares against the remote snapshot.
func businessDocument(biz *business.Business) (map[string]any, error) {
	raw, err := json.Marshal(biz)
	if err != nil {
		return nil, err
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, err
	}

	doc := map[string]any{}
	for _, field := range []string{"name", "category", "phone", "website", "description", "address", "hours"} {
		if v, ok := full[field]; ok {
			doc[field] = v
		}
	}
	return doc, nil
}
