// Package timeout imposes a deadline on dependency operations.
//
// Cancellation is advisory only: the operation receives a context carrying
// the deadline so cooperative implementations can stop early, but a
// non-cooperative operation keeps running after the timeout is reported.
// Its late result is discarded. Repeated timeouts against a slow dependency
// therefore accumulate background work; this is a known resource-accounting
// gap, not a crash risk.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediacast/internal/observability/metrics"
)

// Error is returned when an operation exceeds its deadline.
type Error struct {
	// Dependency is the name of the dependency that timed out.
	Dependency string

	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s did not respond within %s", e.Dependency, e.Timeout)
}

// Operation is an asynchronous, fallible call to an external dependency.
type Operation func(ctx context.Context) (any, error)

// Execute races the operation against the given deadline.
//
// The operation runs with a context whose deadline is set, so it can stop
// cooperatively. If the deadline elapses before the operation returns, a
// *Error tagged with the dependency name is returned and the operation's
// eventual result is discarded. The operation is NOT forcibly cancelled.
func Execute(ctx context.Context, dependency string, d time.Duration, op Operation) (any, error) {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value any
		err   error
	}

	// Buffered so the goroutine can exit even when the result is discarded.
	done := make(chan result, 1)
	go func() {
		v, err := op(opCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-opCtx.Done():
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			metrics.TimeoutsTotal.WithLabelValues(dependency).Inc()
			return nil, &Error{Dependency: dependency, Timeout: d}
		}
		return nil, opCtx.Err()
	}
}
