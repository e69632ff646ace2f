package sync

import (
	"context"
	"errors"
	"fmt"
	syncpkg "sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AutoSyncScheduler runs periodic syncs for every business whose
// configuration enables auto-sync. One cron entry per business.
type AutoSyncScheduler struct {
	logger  *zap.Logger
	configs ConfigRepository
	service SyncService

	cron *cron.Cron

	mu      syncpkg.Mutex
	entries map[string]cron.EntryID
}

func NewAutoSyncScheduler(logger *zap.Logger, configs ConfigRepository, service SyncService) *AutoSyncScheduler {
	return &AutoSyncScheduler{
		logger:  logger,
		configs: configs,
		service: service,
		cron:    cron.New(),
		entries: map[string]cron.EntryID{},
	}
}

// Start loads every auto-sync configuration and schedules them, then
// starts the cron runner.
func (s *AutoSyncScheduler) Start(ctx context.Context) error {
	configs, err := s.configs.ListAutoSync(ctx)
	if err != nil {
		return fmt.Errorf("load auto-sync configurations: %w", err)
	}

	for _, cfg := range configs {
		if err := s.Apply(&cfg); err != nil {
			s.logger.Warn("failed to schedule auto-sync",
				zap.String("business_id", cfg.BusinessID),
				zap.Error(err))
		}
	}

	s.cron.Start()
	s.logger.Info("auto-sync scheduler started", zap.Int("businesses", len(configs)))
	return nil
}

func (s *AutoSyncScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("auto-sync scheduler stopped")
}

// Apply installs or replaces the schedule for one business. Disabled or
// zero-interval configurations remove any existing entry.
func (s *AutoSyncScheduler) Apply(cfg *SyncConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[cfg.BusinessID]; ok {
		s.cron.Remove(id)
		delete(s.entries, cfg.BusinessID)
	}

	if !cfg.AutoSync || cfg.SyncIntervalMinutes <= 0 {
		return nil
	}

	businessID := cfg.BusinessID
	spec := fmt.Sprintf("@every %dm", cfg.SyncIntervalMinutes)
	id, err := s.cron.AddFunc(spec, func() { s.run(businessID) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.entries[businessID] = id

	s.logger.Info("auto-sync scheduled",
		zap.String("business_id", businessID),
		zap.Int("interval_minutes", cfg.SyncIntervalMinutes))
	return nil
}

func (s *AutoSyncScheduler) Remove(businessID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[businessID]; ok {
		s.cron.Remove(id)
		delete(s.entries, businessID)
	}
}

func (s *AutoSyncScheduler) run(businessID string) {
	ctx := context.Background()

	_, err := s.service.StartSync(ctx, businessID, StartOptions{Type: StrategyIncremental})
	switch {
	case err == nil:
		s.logger.Debug("auto-sync run finished", zap.String("business_id", businessID))
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Debug("auto-sync skipped, session already running",
			zap.String("business_id", businessID))
	default:
		s.logger.Warn("auto-sync run failed",
			zap.String("business_id", businessID),
			zap.Error(err))
	}
}
