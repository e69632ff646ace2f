package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options controls the retry loop. Zero values fall back to the defaults
// used by NewOptions.
type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// ShouldRetry decides whether an error is worth another attempt.
	// When nil, every error is retried until MaxAttempts is exhausted.
	ShouldRetry func(err error) bool

	// OnRetry is invoked before each backoff sleep. Panics inside the
	// callback are swallowed so a broken hook can never abort the loop.
	OnRetry func(err error, attempt int)

	Logger *zap.Logger
}

func NewOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Do invokes op up to opts.MaxAttempts times with exponential backoff
// between attempts. The context cancels the backoff sleep, not an attempt
// already in flight.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 1 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.BackoffMultiplier <= 0 {
		opts.BackoffMultiplier = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return zero, err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		invokeOnRetry(opts.OnRetry, err, attempt, logger)

		logger.Warn("operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		delay = time.Duration(float64(delay) * opts.BackoffMultiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return zero, lastErr
}

func invokeOnRetry(hook func(err error, attempt int), err error, attempt int, logger *zap.Logger) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("retry hook panicked", zap.Any("panic", r))
		}
	}()
	hook(err, attempt)
}

// IsRetryable classifies transient failures: network timeouts and resets,
// HTTP 5xx responses and dropped database connections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"connection lost",
		"connection closed",
		"econnreset",
		"etimedout",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// StorageOptions tunes the loop for local persistence calls.
func StorageOptions(logger *zap.Logger) Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
		ShouldRetry:       IsRetryable,
		Logger:            logger,
	}
}

// APIOptions tunes the loop for external API calls. Discovery and issuer
// errors from the provider's auth layer are transient in practice.
func APIOptions(logger *zap.Logger) Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		ShouldRetry: func(err error) bool {
			if IsRetryable(err) {
				return true
			}
			msg := strings.ToLower(err.Error())
			return strings.Contains(msg, "discovery") || strings.Contains(msg, "issuer")
		},
		Logger: logger,
	}
}
