package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastOptions(max int) Options {
	return Options{
		MaxAttempts:       max,
		InitialDelay:      1 * time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	opts := fastOptions(4)
	opts.ShouldRetry = func(err error) bool { return true }

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d failed", calls)
	}, opts)

	if calls != 4 {
		t.Fatalf("expected 4 invocations, got %d", calls)
	}
	if err == nil || err.Error() != "attempt 4 failed" {
		t.Fatalf("expected final error from attempt 4, got %v", err)
	}
}

func TestDoSucceedsMidway(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, fastOptions(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %q", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 invocations, got %d", calls)
	}
}

func TestDoNonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	opts := fastOptions(5)
	opts.ShouldRetry = func(err error) bool { return false }

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fatal")
	}, opts)

	if calls != 1 {
		t.Fatalf("expected 1 invocation, got %d", calls)
	}
	if err == nil || err.Error() != "fatal" {
		t.Fatalf("expected original error, got %v", err)
	}
}

func TestDoOnRetryPanicIsSwallowed(t *testing.T) {
	calls := 0
	opts := fastOptions(3)
	opts.OnRetry = func(err error, attempt int) {
		panic("hook gone wrong")
	}

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, opts)

	if calls != 3 {
		t.Fatalf("expected hook panic to be swallowed and all 3 attempts run, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected final error")
	}
}

func TestDoContextCancelsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := Options{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Hour,
		MaxDelay:          2 * time.Hour,
		BackoffMultiplier: 2,
	}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, func(ctx context.Context) (int, error) {
			return 0, errors.New("boom")
		}, opts)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout text", errors.New("request timeout"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"db connection lost", errors.New("connection lost: no reachable servers"), true},
		{"http 503", errors.New("remote returned status 503"), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"validation", errors.New("invalid field mapping"), false},
		{"not found", errors.New("business not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAPIOptionsRetriesDiscoveryErrors(t *testing.T) {
	opts := APIOptions(nil)
	if !opts.ShouldRetry(errors.New("oidc discovery document unavailable")) {
		t.Error("expected discovery error to be retryable")
	}
	if !opts.ShouldRetry(errors.New("issuer mismatch during token refresh")) {
		t.Error("expected issuer error to be retryable")
	}
	if opts.ShouldRetry(errors.New("permission denied")) {
		t.Error("permission denied should not be retryable")
	}
}
