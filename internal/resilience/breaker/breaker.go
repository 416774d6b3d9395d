// Package breaker implements a per-dependency circuit breaker state machine
// for external service calls. It prevents cascading failures by failing fast
// once a dependency is judged unhealthy.
package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediacast/internal/observability/metrics"
	"mediacast/internal/pkg/clock"
)

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	// This is the normal operating state.
	StateClosed State = iota

	// StateOpen indicates the circuit is open due to excessive failures.
	// Calls fail fast with *OpenError without invoking the operation.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery.
	// Operations are invoked; successes accumulate toward closing.
	StateHalfOpen
)

// String returns a string representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OpenError is the synthetic error returned when a call is rejected because
// the circuit is open. The wrapped operation was never invoked.
type OpenError struct {
	// Dependency is the name of the guarded dependency.
	Dependency string

	// NextAttempt is the earliest time a half-open probe will be allowed.
	NextAttempt time.Time
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s until %s", e.Dependency, e.NextAttempt.Format(time.RFC3339))
}

// Operation is an asynchronous, fallible call to an external dependency.
type Operation func(ctx context.Context) (any, error)

// Stats is an immutable snapshot of a breaker's state.
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	RequestCount    int
	LastFailureTime time.Time
	LastSuccessTime time.Time
	NextAttemptTime time.Time
}

// Breaker is a circuit breaker guarding a single named dependency.
//
// State transitions:
//   - Closed → Open: requestCount >= MinRequests and the number of failures
//     inside the monitoring window reaches FailureThreshold
//   - Open → HalfOpen: OpenDuration has elapsed since the circuit opened
//   - HalfOpen → Closed: SuccessThreshold consecutive successes
//   - HalfOpen → Open: any single failure
//
// All state is guarded by a mutex; concurrent callers cannot double-count
// or race conflicting transitions.
type Breaker struct {
	name  string
	cfg   Config
	clock clock.Clock

	mu           sync.Mutex
	state        State
	failures     []time.Time // failure timestamps inside the monitoring window
	successCount int
	requestCount int
	lastFailure  time.Time
	lastSuccess  time.Time
	nextAttempt  time.Time
}

// New creates a new circuit breaker for the named dependency.
// Zero-valued config fields fall back to DefaultConfig values.
func New(name string, cfg Config, clk clock.Clock) *Breaker {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	b := &Breaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		clock: clk,
		state: StateClosed,
	}
	metrics.BreakerState.WithLabelValues(name).Set(float64(StateClosed))
	return b
}

// Name returns the name of the guarded dependency.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs the given operation through the circuit breaker.
//
// If the circuit is open and the open duration has not elapsed, Execute
// fails immediately with *OpenError and the operation is never invoked.
// If the open duration has elapsed, the circuit moves to half-open and the
// operation runs as a probe.
func (b *Breaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	v, err := op(ctx)
	if err != nil {
		b.onFailure()
		return nil, err
	}
	b.onSuccess()
	return v, nil
}

// beforeCall checks whether the call may proceed, performing the
// Open → HalfOpen transition when the open duration has elapsed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	now := b.clock.Now()
	if now.Before(b.nextAttempt) {
		metrics.BreakerRejectionsTotal.WithLabelValues(b.name).Inc()
		return &OpenError{Dependency: b.name, NextAttempt: b.nextAttempt}
	}

	// Open duration elapsed: allow a probe. Only the caller holding the
	// lock performs the transition, so concurrent callers cannot both
	// move the circuit to half-open.
	b.transition(StateHalfOpen)
	b.successCount = 0
	return nil
}

// onSuccess records a successful call.
func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requestCount++
	b.successCount++
	b.lastSuccess = b.clock.Now()

	if b.state == StateHalfOpen && b.successCount >= b.cfg.SuccessThreshold {
		b.transition(StateClosed)
		b.clear()
	}
}

// onFailure records a failed call and trips the circuit when thresholds
// are crossed.
func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.requestCount++
	b.failures = append(b.failures, now)
	b.pruneLocked(now)
	b.lastFailure = now

	switch b.state {
	case StateClosed:
		if b.requestCount >= b.cfg.MinRequests && len(b.failures) >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
			b.nextAttempt = now.Add(b.cfg.OpenDuration)
		}
	case StateHalfOpen:
		// A single half-open failure reopens the circuit.
		b.transition(StateOpen)
		b.nextAttempt = now.Add(b.cfg.OpenDuration)
	}
}

// pruneLocked drops failure timestamps older than the monitoring window.
// Callers must hold b.mu.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringWindow)
	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept
}

// transition moves the breaker to the given state, emitting a log line and
// metrics. Callers must hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	metrics.BreakerState.WithLabelValues(b.name).Set(float64(to))
	metrics.BreakerTransitionsTotal.WithLabelValues(b.name, from.String(), to.String()).Inc()

	slog.Warn("circuit breaker state changed",
		slog.String("dependency", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failure_count", len(b.failures)),
		slog.Int("request_count", b.requestCount))
}

// clear zeroes all counters and the failure window. Callers must hold b.mu.
func (b *Breaker) clear() {
	b.failures = nil
	b.successCount = 0
	b.requestCount = 0
	b.lastFailure = time.Time{}
	b.lastSuccess = time.Time{}
	b.nextAttempt = time.Time{}
}

// Stats returns an immutable snapshot of the breaker's state. Stale failure
// timestamps are pruned before the failure count is taken, so FailureCount
// always equals the number of failures inside the monitoring window.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(b.clock.Now())
	return Stats{
		State:           b.state,
		FailureCount:    len(b.failures),
		SuccessCount:    b.successCount,
		RequestCount:    b.requestCount,
		LastFailureTime: b.lastFailure,
		LastSuccessTime: b.lastSuccess,
		NextAttemptTime: b.nextAttempt,
	}
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to the initial closed state with all
// counters zeroed. Useful for tests and manual intervention.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(StateClosed)
	b.clear()
}
