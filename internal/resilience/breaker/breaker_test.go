package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediacast/internal/pkg/clock"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T) (*Breaker, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New("extractor", DefaultConfig(), clk), clk
}

func succeed(ctx context.Context) (any, error) { return "ok", nil }
func fail(ctx context.Context) (any, error)    { return nil, errBoom }

// fillToOpen drives a fresh breaker to the open state using the default
// config: 5 successes then 5 failures, so the trip happens on the 5th
// failure once requestCount reaches 10.
func fillToOpen(t *testing.T, b *Breaker) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := b.Execute(ctx, succeed); err != nil {
			t.Fatalf("success %d: unexpected error %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("failure %d: got %v, want errBoom", i, err)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after 5 failures in 10 requests = %v, want open", got)
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	// 4 failures among 9 requests: below both thresholds, stays closed.
	for i := 0; i < 5; i++ {
		if _, err := b.Execute(ctx, succeed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i := 0; i < 4; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state at 4 failures = %v, want closed", got)
	}

	// The 5th failure is the 10th request: both thresholds met, trips.
	_, _ = b.Execute(ctx, fail)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state at 5th failure = %v, want open", got)
	}

	stats := b.Stats()
	if stats.FailureCount != 5 {
		t.Errorf("FailureCount = %d, want 5", stats.FailureCount)
	}
	if stats.RequestCount != 10 {
		t.Errorf("RequestCount = %d, want 10", stats.RequestCount)
	}
}

func TestBreakerNotTrippedBelowMinRequests(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	// 5 failures but only 5 requests: failure threshold met, request
	// floor not, so the circuit stays closed.
	for i := 0; i < 5; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestBreakerOpenFastFails(t *testing.T) {
	b, _ := newTestBreaker(t)
	fillToOpen(t, b)

	invoked := false
	_, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("error = %v, want *OpenError", err)
	}
	if openErr.Dependency != "extractor" {
		t.Errorf("OpenError.Dependency = %q, want %q", openErr.Dependency, "extractor")
	}
	if openErr.NextAttempt.IsZero() {
		t.Error("OpenError.NextAttempt is zero")
	}
	if invoked {
		t.Error("operation was invoked while circuit open")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clk := newTestBreaker(t)
	fillToOpen(t, b)

	// Before the open duration elapses, calls are still rejected.
	clk.Advance(59 * time.Second)
	if _, err := b.Execute(context.Background(), succeed); err == nil {
		t.Fatal("expected rejection before open duration elapsed")
	}

	// After the open duration the next call is a half-open probe.
	clk.Advance(2 * time.Second)
	if _, err := b.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state after first probe success = %v, want half-open", got)
	}

	// Two more successes reach the success threshold and close the
	// circuit with all counters cleared.
	for i := 0; i < 2; i++ {
		if _, err := b.Execute(context.Background(), succeed); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	stats := b.Stats()
	if stats.State != StateClosed {
		t.Fatalf("state = %v, want closed", stats.State)
	}
	if stats.FailureCount != 0 || stats.SuccessCount != 0 || stats.RequestCount != 0 {
		t.Errorf("counters not cleared after close: %+v", stats)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(t)
	fillToOpen(t, b)
	openedAt := b.Stats().NextAttemptTime

	clk.Advance(61 * time.Second)
	if _, err := b.Execute(context.Background(), fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe error = %v, want errBoom", err)
	}

	stats := b.Stats()
	if stats.State != StateOpen {
		t.Fatalf("state after half-open failure = %v, want open", stats.State)
	}
	if !stats.NextAttemptTime.After(openedAt) {
		t.Errorf("NextAttemptTime %v not refreshed past %v", stats.NextAttemptTime, openedAt)
	}
}

func TestBreakerWindowPrunesStaleFailures(t *testing.T) {
	b, clk := newTestBreaker(t)
	ctx := context.Background()

	// 4 failures now, then wait past the monitoring window.
	for i := 0; i < 4; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	clk.Advance(121 * time.Second)

	if got := b.Stats().FailureCount; got != 0 {
		t.Fatalf("FailureCount after window elapsed = %d, want 0", got)
	}

	// 6 successes push requestCount past the floor; 4 fresh failures are
	// still below the failure threshold because the old ones expired.
	for i := 0; i < 6; i++ {
		_, _ = b.Execute(ctx, succeed)
	}
	for i := 0; i < 4; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed (stale failures must not count)", got)
	}
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(t)
	fillToOpen(t, b)

	b.Reset()

	stats := b.Stats()
	if stats.State != StateClosed {
		t.Fatalf("state after reset = %v, want closed", stats.State)
	}
	if stats.FailureCount != 0 || stats.RequestCount != 0 || !stats.NextAttemptTime.IsZero() {
		t.Errorf("state not zeroed after reset: %+v", stats)
	}
	if _, err := b.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("call after reset failed: %v", err)
	}
}

func TestBreakerConcurrentCalls(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = b.Execute(ctx, succeed)
			}
		}()
	}
	wg.Wait()

	stats := b.Stats()
	if stats.RequestCount != workers*perWorker {
		t.Errorf("RequestCount = %d, want %d", stats.RequestCount, workers*perWorker)
	}
	if stats.SuccessCount != workers*perWorker {
		t.Errorf("SuccessCount = %d, want %d", stats.SuccessCount, workers*perWorker)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
