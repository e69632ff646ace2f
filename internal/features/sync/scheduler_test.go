package sync

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func newTestScheduler(env *testEnv) *AutoSyncScheduler {
	return NewAutoSyncScheduler(zap.NewNop(), env.configs, env.service)
}

func TestSchedulerApplyInstallsReplacesAndRemoves(t *testing.T) {
	env := newTestEnv(testBusiness())
	scheduler := newTestScheduler(env)

	cfg := DefaultConfiguration("biz1")
	cfg.AutoSync = true
	cfg.SyncIntervalMinutes = 30

	if err := scheduler.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	first, ok := scheduler.entries["biz1"]
	if !ok {
		t.Fatal("expected a cron entry after enabling auto-sync")
	}

	// A changed interval replaces the existing entry.
	cfg.SyncIntervalMinutes = 60
	if err := scheduler.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second, ok := scheduler.entries["biz1"]
	if !ok {
		t.Fatal("entry dropped on reschedule")
	}
	if second == first {
		t.Error("rescheduling should install a fresh cron entry")
	}
	if len(scheduler.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(scheduler.entries))
	}

	// Disabling removes the entry entirely.
	cfg.AutoSync = false
	if err := scheduler.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(scheduler.entries) != 0 {
		t.Errorf("entries = %d, want 0 after disable", len(scheduler.entries))
	}
}

func TestSchedulerApplyIgnoresZeroInterval(t *testing.T) {
	env := newTestEnv(testBusiness())
	scheduler := newTestScheduler(env)

	cfg := DefaultConfiguration("biz1")
	cfg.AutoSync = true
	cfg.SyncIntervalMinutes = 0

	if err := scheduler.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(scheduler.entries) != 0 {
		t.Errorf("entries = %d, want 0 for a zero interval", len(scheduler.entries))
	}
}

func TestSchedulerStartSchedulesStoredConfigs(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)

	cfg := DefaultConfiguration(biz.ID.Hex())
	cfg.AutoSync = true
	cfg.SyncIntervalMinutes = 15
	env.configs.cfg = cfg

	scheduler := newTestScheduler(env)
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer scheduler.Stop()

	if _, ok := scheduler.entries[biz.ID.Hex()]; !ok {
		t.Error("expected the stored auto-sync configuration to be scheduled")
	}
	if len(scheduler.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(scheduler.entries))
	}
}

func TestSchedulerRunSkipsActiveSession(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)
	scheduler := newTestScheduler(env)

	running := newSession(biz.ID.Hex(), StrategyFull)
	env.registry.Register(running)

	scheduler.run(biz.ID.Hex())

	if running.Status() != StatusInProgress {
		t.Errorf("existing session status = %q, want untouched in_progress", running.Status())
	}
	if len(env.history.appended()) != 0 {
		t.Errorf("history records = %d, a skipped run should record nothing", len(env.history.appended()))
	}
}

func TestSchedulerRunStartsIncrementalSync(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)
	scheduler := newTestScheduler(env)

	scheduler.run(biz.ID.Hex())

	records := env.history.appended()
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	if records[0].Strategy != StrategyIncremental {
		t.Errorf("strategy = %q, scheduled runs are incremental", records[0].Strategy)
	}
}
