package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned when the breaker is open and no cached result exists.
var ErrOpen = errors.New("circuit breaker is open")

// Options configures a Breaker.
type Options struct {
	// FailureThreshold consecutive failures while CLOSED trip the breaker.
	FailureThreshold int
	// SuccessThreshold consecutive successes while HALF_OPEN close it again.
	SuccessThreshold int
	// Timeout is how long the breaker stays OPEN before the next call is
	// allowed through as a probe.
	Timeout time.Duration

	// OnStateChange is notified of every transition. Panics are swallowed.
	OnStateChange func(from, to State)

	Logger *zap.Logger
}

func NewOptions() Options {
	return Options{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// Metrics is a point-in-time snapshot of breaker counters.
type Metrics struct {
	State        State      `json:"state"`
	Failures     int        `json:"failures"`
	Successes    int        `json:"successes"`
	FailureRate  float64    `json:"failure_rate"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	TotalCalls   int64      `json:"total_calls"`
	TotalFailed  int64      `json:"total_failed"`
	HasLastKnown bool       `json:"has_last_known"`
}

// Breaker protects a single remote operation. While OPEN it serves the last
// successful result as a stale fallback; callers that need freshness must
// check State first.
type Breaker[T any] struct {
	name string
	opts Options
	log  *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	totalCalls  int64
	totalFailed int64
	lastFailure *time.Time
	lastSuccess *time.Time

	lastResult    T
	hasLastResult bool
}

func New[T any](name string, opts Options) *Breaker[T] {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker[T]{
		name:  name,
		opts:  opts,
		log:   logger.With(zap.String("breaker", name)),
		state: StateClosed,
	}
}

// Execute runs op through the breaker.
func (b *Breaker[T]) Execute(ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	b.mu.Lock()

	if b.state == StateOpen {
		if b.lastFailure != nil && time.Since(*b.lastFailure) >= b.opts.Timeout {
			b.transition(StateHalfOpen)
		} else if b.hasLastResult {
			cached := b.lastResult
			b.mu.Unlock()
			b.log.Warn("circuit open, serving last known result")
			return cached, nil
		} else {
			var zero T
			b.mu.Unlock()
			return zero, fmt.Errorf("%w: %s", ErrOpen, b.name)
		}
	}

	b.totalCalls++
	b.mu.Unlock()

	result, err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.recordFailure()
		var zero T
		return zero, err
	}

	b.recordSuccess(result)
	return result, nil
}

func (b *Breaker[T]) recordFailure() {
	now := time.Now()
	b.lastFailure = &now
	b.totalFailed++
	b.failures++

	switch b.state {
	case StateHalfOpen:
		// A failed probe re-opens immediately.
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.opts.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker[T]) recordSuccess(result T) {
	now := time.Now()
	b.lastSuccess = &now
	b.lastResult = result
	b.hasLastResult = true

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.opts.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

// transition must be called with the mutex held.
func (b *Breaker[T]) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateClosed:
		b.failures = 0
		b.successes = 0
	case StateHalfOpen:
		b.successes = 0
	}

	b.log.Info("circuit state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if b.opts.OnStateChange != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Warn("state change hook panicked", zap.Any("panic", r))
				}
			}()
			b.opts.OnStateChange(from, to)
		}()
	}
}

func (b *Breaker[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker[T]) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := 0.0
	if b.totalCalls > 0 {
		rate = float64(b.totalFailed) / float64(b.totalCalls)
	}
	return Metrics{
		State:        b.state,
		Failures:     b.failures,
		Successes:    b.successes,
		FailureRate:  rate,
		LastFailure:  b.lastFailure,
		LastSuccess:  b.lastSuccess,
		TotalCalls:   b.totalCalls,
		TotalFailed:  b.totalFailed,
		HasLastKnown: b.hasLastResult,
	}
}

// Reset forces the breaker back to CLOSED and drops the cached result.
func (b *Breaker[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(StateClosed)
	b.failures = 0
	b.successes = 0
	var zero T
	b.lastResult = zero
	b.hasLastResult = false
}
