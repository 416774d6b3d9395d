// Package retry provides bounded, classified retry with exponential backoff
// and jitter. It helps handle transient dependency failures gracefully by
// automatically retrying operations whose errors are classified retryable.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"mediacast/internal/observability/metrics"
	"mediacast/internal/resilience/errclass"
)

// jitterFraction is the fraction of the computed delay added as random
// jitter to avoid synchronized retry storms.
const jitterFraction = 0.1

// Operation is an asynchronous, fallible call to an external dependency.
type Operation func(ctx context.Context) (any, error)

// Classifier reports whether an error is worth retrying.
type Classifier func(err error) bool

// Policy holds the configuration for retry logic.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponentially growing delay between retries.
	MaxDelay time.Duration

	// Classifier gates retries. A nil classifier falls back to
	// errclass.Classify's retryable flag.
	Classifier Classifier
}

// DefaultClassifier marks an error retryable according to the error
// taxonomy in errclass.
func DefaultClassifier(err error) bool {
	return errclass.Classify(err).Retryable
}

// APIPolicy returns a policy for third-party HTTP API calls.
func APIPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Classifier:  DefaultClassifier,
	}
}

// DatabasePolicy returns a policy for database operations.
// Fast retry for transient connection issues.
func DatabasePolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Classifier:  DefaultClassifier,
	}
}

// StoragePolicy returns a policy for blob/CDN storage calls.
func StoragePolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
		Classifier:  DefaultClassifier,
	}
}

// AIPolicy returns a policy for language-model and text-to-speech calls.
// Moderate retry due to cost considerations.
func AIPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Classifier:  DefaultClassifier,
	}
}

// Observer is invoked synchronously before each retry, after a failed
// attempt has been classified retryable.
type Observer interface {
	// OnRetry receives the attempt number that failed, the error that
	// triggered the retry, and the delay before the next attempt.
	OnRetry(attempt int, err error, delay time.Duration)
}

// Executor runs operations under a retry policy.
type Executor struct {
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a retry executor. The observer may be nil.
func NewExecutor(observer Observer) *Executor {
	return &Executor{
		observer: observer,
		sleep:    sleepWithContext,
	}
}

// Execute runs the operation with up to policy.MaxAttempts attempts.
//
// A failure is retried only when the policy's classifier marks it
// retryable; everything else propagates on first occurrence. The delay
// before attempt n+1 is min(MaxDelay, BaseDelay * 2^(n-1)) plus random
// jitter. The inter-attempt sleep suspends only this call; unrelated
// concurrent callers are unaffected.
func (e *Executor) Execute(ctx context.Context, op Operation, policy Policy) (any, error) {
	classify := policy.Classifier
	if classify == nil {
		classify = DefaultClassifier
	}
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return v, nil
		}
		lastErr = err

		if !classify(err) {
			metrics.RetryAttemptsTotal.WithLabelValues("aborted").Inc()
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return nil, err
		}

		if attempt == attempts {
			break
		}

		delay := backoffDelay(policy, attempt)
		metrics.RetryAttemptsTotal.WithLabelValues("retried").Inc()
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if e.observer != nil {
			e.observer.OnRetry(attempt, err, delay)
		}

		if err := e.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry aborted: %w", err)
		}
	}

	metrics.RetryAttemptsTotal.WithLabelValues("exhausted").Inc()
	return nil, fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, lastErr)
}

// backoffDelay computes the capped exponential delay after the given
// attempt, plus jitter. Jitter is additive, so delays between successive
// attempts are non-decreasing.
func backoffDelay(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay << (attempt - 1)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	// #nosec G404 -- math/rand is acceptable for backoff jitter;
	// cryptographic randomness is not required.
	jitter := time.Duration(rand.Float64() * float64(delay) * jitterFraction)
	return delay + jitter
}

// sleepWithContext waits for d or until the context is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
