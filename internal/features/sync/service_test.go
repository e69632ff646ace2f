package sync

import (
	"context"
	"errors"
	syncpkg "sync"
	"testing"
	"time"

	"go-marketplace/internal/config"
	"go-marketplace/internal/features/business"
	"go-marketplace/internal/features/listing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeBusinessRepo struct {
	mu         syncpkg.Mutex
	biz        *business.Business
	updates    []map[string]interface{}
	sources    []map[string]string
	lastSynced *time.Time
}

func (r *fakeBusinessRepo) Create(ctx context.Context, biz *business.Business) error { return nil }

func (r *fakeBusinessRepo) Get(ctx context.Context, id string) (*business.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.biz == nil || r.biz.ID.Hex() != id {
		return nil, errors.New("not found")
	}
	copied := *r.biz
	return &copied, nil
}

func (r *fakeBusinessRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, updates)
	return nil
}

func (r *fakeBusinessRepo) SetLastSynced(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSynced = &at
	return nil
}

func (r *fakeBusinessRepo) GetLastSyncTimestamp(ctx context.Context, id string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSynced, nil
}

func (r *fakeBusinessRepo) MergeDataSources(ctx context.Context, id string, sources map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, sources)
	return nil
}

type fakeConfigRepo struct {
	cfg *SyncConfiguration
}

func (r *fakeConfigRepo) Upsert(ctx context.Context, cfg *SyncConfiguration) error {
	r.cfg = cfg
	return nil
}

func (r *fakeConfigRepo) GetByBusiness(ctx context.Context, businessID string) (*SyncConfiguration, error) {
	if r.cfg == nil {
		return nil, ErrConfigNotFound
	}
	return r.cfg, nil
}

func (r *fakeConfigRepo) ListAutoSync(ctx context.Context) ([]SyncConfiguration, error) {
	if r.cfg == nil || !r.cfg.AutoSync {
		return nil, nil
	}
	return []SyncConfiguration{*r.cfg}, nil
}

type fakeHistoryRepo struct {
	mu      syncpkg.Mutex
	records []HistoryRecord
	last    *HistoryRecord
}

func (r *fakeHistoryRepo) Append(ctx context.Context, record *HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeHistoryRepo) List(ctx context.Context, businessID string, q HistoryQuery) ([]HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HistoryRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *fakeHistoryRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (r *fakeHistoryRepo) LastSuccessful(ctx context.Context, businessID string) (*HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, nil
}

func (r *fakeHistoryRepo) appended() []HistoryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HistoryRecord, len(r.records))
	copy(out, r.records)
	return out
}

type fakeClient struct {
	mu       syncpkg.Mutex
	snapshot *listing.Snapshot
	reviews  *listing.ReviewPage
	posts    *listing.PostPage
	insights *listing.Insights

	locationErr error
	reviewsErr  error
}

func (c *fakeClient) FetchLocationDetails(ctx context.Context, locationRef string) (*listing.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locationErr != nil {
		return nil, c.locationErr
	}
	return c.snapshot, nil
}

func (c *fakeClient) FetchReviews(ctx context.Context, businessID string) (*listing.ReviewPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reviewsErr != nil {
		return nil, c.reviewsErr
	}
	return c.reviews, nil
}

func (c *fakeClient) FetchPosts(ctx context.Context, businessID string) (*listing.PostPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posts, nil
}

func (c *fakeClient) FetchInsights(ctx context.Context, businessID string, dateRange listing.DateRange) (*listing.Insights, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insights, nil
}

func testBusiness() *business.Business {
	return &business.Business{
		ID:       primitive.NewObjectID(),
		Name:     "Ace Bakery",
		Category: "Bakery",
		Listing: business.ListingConnection{
			Connected:   true,
			LocationRef: "locations/123",
		},
		UpdatedAt: time.Now(),
	}
}

func testSnapshot() *listing.Snapshot {
	return &listing.Snapshot{
		LocationRef:     "locations/123",
		Name:            "Ace Bakery",
		PrimaryCategory: "Bakery",
		PrimaryPhone:    "+1 555 010 2030",
		WebsiteURL:      "https://acebakery.example.com",
		Photos: []listing.Photo{
			{ID: "p1", URL: "https://cdn.example.com/a.jpg", CreateTime: time.Now()},
		},
		UpdateTime: time.Now(),
	}
}

func newTestClient() *fakeClient {
	return &fakeClient{
		snapshot: testSnapshot(),
		reviews: &listing.ReviewPage{
			Reviews: []listing.Review{
				{ID: "r1", Reviewer: "Pat", Rating: 5, CreateTime: time.Now(), UpdateTime: time.Now()},
			},
			Total: 1,
		},
		posts: &listing.PostPage{
			Posts: []listing.Post{
				{ID: "po1", Summary: "Fresh croissants", CreateTime: time.Now(), UpdateTime: time.Now()},
			},
			Total: 1,
		},
		insights: &listing.Insights{
			Metrics: map[string]int64{"views": 120, "calls": 4},
		},
	}
}

type testEnv struct {
	service    *SyncServiceImpl
	businesses *fakeBusinessRepo
	configs    *fakeConfigRepo
	history    *fakeHistoryRepo
	client     *fakeClient
	registry   *SessionRegistry
}

func newTestEnv(biz *business.Business) *testEnv {
	env := &testEnv{
		businesses: &fakeBusinessRepo{biz: biz},
		configs:    &fakeConfigRepo{},
		history:    &fakeHistoryRepo{},
		client:     newTestClient(),
		registry:   NewSessionRegistry(),
	}

	cfg := &config.Config{SyncMaxRetries: 1, SyncBreakerTimeout: 30}
	logger := zap.NewNop()
	emitter := NewEventEmitter(nil, nil, nil, logger)

	env.service = &SyncServiceImpl{
		cfg:        cfg,
		logger:     logger,
		registry:   env.registry,
		configs:    env.configs,
		history:    env.history,
		businesses: env.businesses,
		client:     env.client,
		emitter:    emitter,
		breakers:   newBreakerSet(cfg, logger),
	}
	return env
}

func TestStartSyncFullCompletesAndRecordsHistory(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyFull})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	if view.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", view.Status, StatusCompleted)
	}
	if view.Progress.Total != 115 {
		t.Errorf("Progress.Total = %d, want 115 (sum of category weights)", view.Progress.Total)
	}
	if view.Progress.Completed != 115 {
		t.Errorf("Progress.Completed = %d, want 115", view.Progress.Completed)
	}
	if view.Progress.Percentage != 100 {
		t.Errorf("Percentage = %v, want 100", view.Progress.Percentage)
	}
	if view.Stats.APICalls == 0 {
		t.Error("expected remote API calls to be counted")
	}

	records := env.history.appended()
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	if records[0].Status != StatusCompleted {
		t.Errorf("history status = %q, want completed", records[0].Status)
	}
	if records[0].SessionID != view.ID {
		t.Error("history record should reference the session")
	}

	if env.businesses.lastSynced == nil {
		t.Error("successful sync should stamp the business's last sync time")
	}
}

func TestStartSyncRequiresConnectedListing(t *testing.T) {
	biz := testBusiness()
	biz.Listing.Connected = false
	env := newTestEnv(biz)

	_, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if len(env.history.appended()) != 0 {
		t.Error("no session should be recorded when the business is not connected")
	}
}

func TestStartSyncRejectsConcurrentSessions(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	running := newSession(biz.ID.Hex(), StrategyFull)
	env.registry.Register(running)

	_, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyFull})
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("err = %v, want ErrSyncInProgress", err)
	}

	// Force starts a second session alongside the running one.
	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyFull, Force: true})
	if err != nil {
		t.Fatalf("forced StartSync: %v", err)
	}
	if view.Status != StatusCompleted {
		t.Errorf("forced session status = %q, want completed", view.Status)
	}
}

func TestStartSyncPartialFailureCompletesWithWarnings(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)
	env.client.reviewsErr = errors.New("boom")

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyFull})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	if view.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed despite a failed category", view.Status)
	}
	if view.Progress.Failed != 50 {
		t.Errorf("Progress.Failed = %d, want the reviews weight 50", view.Progress.Failed)
	}
	if view.Progress.Completed != 65 {
		t.Errorf("Progress.Completed = %d, want 65", view.Progress.Completed)
	}
	if len(view.Warnings) == 0 {
		t.Error("expected a warning for the failed category")
	}

	found := false
	for _, e := range view.Errors {
		if e.Code == "CATEGORY_SYNC_FAILED" && e.Category == CategoryReviews {
			found = true
		}
	}
	if !found {
		t.Errorf("Errors = %v, want a CATEGORY_SYNC_FAILED entry for reviews", view.Errors)
	}
	if view.Stats.ItemsFailed != 1 {
		t.Errorf("ItemsFailed = %d, want 1", view.Stats.ItemsFailed)
	}
}

func TestStartSyncUnknownStrategy(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	_, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: Strategy("hourly")})
	if err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}

func TestStartSyncSelectiveFiltersDisabledCategories(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	cfg := DefaultConfiguration(biz.ID.Hex())
	cfg.Categories[CategoryInsights] = false
	env.configs.cfg = cfg

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{
		Type:       StrategySelective,
		Categories: []DataCategory{CategoryReviews, CategoryInsights},
	})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	if view.Progress.Total != 50 {
		t.Errorf("Progress.Total = %d, want only the reviews weight 50", view.Progress.Total)
	}
}

func TestStartSyncSelectiveRejectsEmptySelection(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	cfg := DefaultConfiguration(biz.ID.Hex())
	cfg.Categories[CategoryInsights] = false
	cfg.Retry.Enabled = false
	env.configs.cfg = cfg

	_, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{
		Type:       StrategySelective,
		Categories: []DataCategory{CategoryInsights},
	})
	if err == nil {
		t.Fatal("expected an error when every selected category is disabled")
	}
}

func TestStartSyncIncrementalSkipsWhenNothingChanged(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	// Everything remote predates the last successful sync.
	old := time.Now().Add(-2 * time.Hour)
	env.client.snapshot.UpdateTime = old
	env.client.snapshot.Photos[0].CreateTime = old
	env.client.reviews.Reviews[0].UpdateTime = old
	env.client.posts.Posts[0].UpdateTime = old

	cfg := DefaultConfiguration(biz.ID.Hex())
	cfg.Categories[CategoryInsights] = false
	env.configs.cfg = cfg
	env.history.last = &HistoryRecord{
		BusinessID: biz.ID.Hex(),
		Status:     StatusCompleted,
		EndTime:    time.Now().Add(-time.Hour),
	}

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyIncremental})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	if view.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", view.Status)
	}
	if view.Progress.Total != 0 {
		t.Errorf("Progress.Total = %d, want 0 when nothing changed", view.Progress.Total)
	}
	if len(view.Warnings) == 0 {
		t.Error("expected a no-changes warning")
	}
}

func TestStartSyncIncrementalFirstRunFallsBackToFull(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyIncremental})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	if view.Progress.Total != 115 {
		t.Errorf("Progress.Total = %d, want the full run total 115", view.Progress.Total)
	}
}

func TestStartSyncAppliesRemoteBusinessInfo(t *testing.T) {
	biz := testBusiness()
	biz.Phone = "" // absent locally, present remotely
	env := newTestEnv(biz)

	cfg := DefaultConfiguration(biz.ID.Hex())
	cfg.Categories = map[DataCategory]bool{CategoryBusinessInfo: true}
	env.configs.cfg = cfg

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyFull})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}
	if view.Status != StatusCompleted {
		t.Fatalf("Status = %q", view.Status)
	}

	env.businesses.mu.Lock()
	defer env.businesses.mu.Unlock()
	if len(env.businesses.updates) == 0 {
		t.Fatal("expected the remote phone number to be written")
	}
	if got := env.businesses.updates[0]["phone"]; got != "+1 555 010 2030" {
		t.Errorf("updates[phone] = %v", got)
	}
	if len(env.businesses.sources) == 0 || env.businesses.sources[0]["phone"] != "remote" {
		t.Error("expected the phone field to be attributed to the remote source")
	}
}

func TestCancelSyncTransitions(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	session := newSession(biz.ID.Hex(), StrategyFull)
	env.registry.Register(session)

	if err := env.service.CancelSync(context.Background(), session.ID()); err != nil {
		t.Fatalf("CancelSync: %v", err)
	}
	if session.Status() != StatusPaused {
		t.Errorf("Status = %q, want paused", session.Status())
	}

	err := env.service.CancelSync(context.Background(), session.ID())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second cancel err = %v, want ErrInvalidTransition", err)
	}

	err = env.service.CancelSync(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestResumeSyncRerunsPausedSession(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	session := newSession(biz.ID.Hex(), StrategyIncremental)
	env.registry.Register(session)
	if !session.pause() {
		t.Fatal("pause failed")
	}

	view, err := env.service.ResumeSync(context.Background(), session.ID())
	if err != nil {
		t.Fatalf("ResumeSync: %v", err)
	}
	if view.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", view.Status)
	}
	if view.Progress.Total != 115 {
		t.Errorf("Progress.Total = %d, resume should re-run a full pass", view.Progress.Total)
	}
}

func TestResumeSyncRequiresPausedStatus(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	session := newSession(biz.ID.Hex(), StrategyFull)
	env.registry.Register(session)

	_, err := env.service.ResumeSync(context.Background(), session.ID())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestRetrySessionRequiresFailedStatus(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	session := newSession(biz.ID.Hex(), StrategyFull)
	env.registry.Register(session)
	session.complete()

	_, err := env.service.RetrySession(context.Background(), session.ID())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestRetrySessionRerunsFailedSession(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	session := newSession(biz.ID.Hex(), StrategyFull)
	env.registry.Register(session)
	session.fail(SyncError{Code: "SESSION_FAILED", Message: "boom", Timestamp: time.Now()})

	view, err := env.service.RetrySession(context.Background(), session.ID())
	if err != nil {
		t.Fatalf("RetrySession: %v", err)
	}
	if view.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", view.Status)
	}
	if len(view.Errors) != 0 {
		t.Errorf("Errors = %v, retry should start from a clean slate", view.Errors)
	}
}

func TestGetSyncStatusUnknownSession(t *testing.T) {
	env := newTestEnv(testBusiness())

	_, err := env.service.GetSyncStatus("nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestBreakerMetricsCoversEveryFetch(t *testing.T) {
	env := newTestEnv(testBusiness())

	metrics := env.service.BreakerMetrics()
	for _, name := range []string{"listing.location", "listing.reviews", "listing.posts", "listing.insights"} {
		if _, ok := metrics[name]; !ok {
			t.Errorf("missing breaker metrics for %s", name)
		}
	}
}

func TestSaveSettingsValidates(t *testing.T) {
	env := newTestEnv(testBusiness())

	bad := DefaultConfiguration("biz1")
	bad.AutoSync = true
	bad.SyncIntervalMinutes = 1
	if err := env.service.SaveSettings(context.Background(), bad); err == nil {
		t.Error("expected a validation error for a sub-5-minute interval")
	}

	good := DefaultConfiguration("biz1")
	good.AutoSync = true
	good.SyncIntervalMinutes = 30
	if err := env.service.SaveSettings(context.Background(), good); err != nil {
		t.Errorf("SaveSettings: %v", err)
	}
	if env.configs.cfg == nil {
		t.Error("valid settings should be persisted")
	}
}

func TestSessionFailureRecordsHistory(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	cfg := DefaultConfiguration(biz.ID.Hex())
	cfg.Retry.Enabled = false
	cfg.Categories[CategoryInsights] = false
	env.configs.cfg = cfg

	// Detection needs location details; a missing location fails the session.
	env.client.locationErr = errors.New("status 404: location not found")
	env.history.last = &HistoryRecord{Status: StatusCompleted, EndTime: time.Now().Add(-time.Hour)}

	view, err := env.service.StartSync(context.Background(), biz.ID.Hex(), StartOptions{Type: StrategyIncremental})
	if err == nil {
		t.Fatal("expected the session to fail")
	}
	if view == nil || view.Status != StatusFailed {
		t.Fatalf("view = %+v, want failed status", view)
	}

	records := env.history.appended()
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	if records[0].Status != StatusFailed {
		t.Errorf("history status = %q, want failed", records[0].Status)
	}
}
