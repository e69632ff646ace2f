package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          20 * time.Millisecond,
	}
}

func failOp(ctx context.Context) (int, error) {
	return 0, errors.New("remote unavailable")
}

func okOp(v int) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) { return v, nil }
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Execute(ctx, failOp); err == nil {
			t.Fatal("expected failure")
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after 3 failures, got %s", b.State())
	}
}

func TestOpenBreakerFailsFastWithoutInvoking(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Execute(ctx, failOp)
	}

	invoked := false
	_, err := b.Execute(ctx, func(ctx context.Context) (int, error) {
		invoked = true
		return 1, nil
	})

	if invoked {
		t.Fatal("operation must not run while breaker is open")
	}
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestOpenBreakerServesCachedResult(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	if _, err := b.Execute(ctx, okOp(42)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		b.Execute(ctx, failOp)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}

	invoked := false
	got, err := b.Execute(ctx, func(ctx context.Context) (int, error) {
		invoked = true
		return 99, nil
	})
	if invoked {
		t.Fatal("operation must not run while breaker is open")
	}
	if err != nil || got != 42 {
		t.Fatalf("expected cached 42, got %d err %v", got, err)
	}
}

func TestHalfOpenProbeAfterTimeout(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Execute(ctx, failOp)
	}

	time.Sleep(30 * time.Millisecond)

	invoked := false
	if _, err := b.Execute(ctx, func(ctx context.Context) (int, error) {
		invoked = true
		return 7, nil
	}); err != nil {
		t.Fatal(err)
	}

	if !invoked {
		t.Fatal("probe call must invoke the operation after the timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after one probe success, got %s", b.State())
	}

	// Second consecutive success closes the circuit.
	if _, err := b.Execute(ctx, okOp(8)); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after success threshold, got %s", b.State())
	}

	m := b.Metrics()
	if m.Failures != 0 || m.Successes != 0 {
		t.Fatalf("expected counters reset on close, got failures=%d successes=%d", m.Failures, m.Successes)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Execute(ctx, failOp)
	}
	time.Sleep(30 * time.Millisecond)

	// Probe fails: straight back to OPEN.
	b.Execute(ctx, failOp)
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after failed probe, got %s", b.State())
	}
}

func TestSuccessResetsClosedFailureCount(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	b.Execute(ctx, failOp)
	b.Execute(ctx, failOp)
	b.Execute(ctx, okOp(1))
	b.Execute(ctx, failOp)
	b.Execute(ctx, failOp)

	if b.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not trip the breaker, got %s", b.State())
	}
}

func TestResetClearsStateAndCache(t *testing.T) {
	b := New[int]("listing", testOptions())
	ctx := context.Background()

	b.Execute(ctx, okOp(5))
	for i := 0; i < 3; i++ {
		b.Execute(ctx, failOp)
	}

	b.Reset()

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after reset, got %s", b.State())
	}
	if b.Metrics().HasLastKnown {
		t.Fatal("expected cached result dropped on reset")
	}
}

func TestOnStateChangeHook(t *testing.T) {
	var transitions []string
	opts := testOptions()
	opts.OnStateChange = func(from, to State) {
		transitions = append(transitions, string(from)+">"+string(to))
		panic("observer bug") // must never break the breaker itself
	}

	b := New[int]("listing", opts)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b.Execute(ctx, failOp)
	}

	if len(transitions) != 1 || transitions[0] != "CLOSED>OPEN" {
		t.Fatalf("expected single CLOSED>OPEN transition, got %v", transitions)
	}
	if b.State() != StateOpen {
		t.Fatalf("hook panic must not corrupt state, got %s", b.State())
	}
}
