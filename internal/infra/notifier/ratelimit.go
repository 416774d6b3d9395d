package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter implements the token bucket algorithm for rate limiting.
// It keeps notification APIs from being overwhelmed when many alerts fire
// in a short window.
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter allowing a sustained
// requestsPerSecond rate with the given burst capacity.
//
// Example:
//
//	limiter := NewRateLimiter(1.0, 3) // 1 req/s with burst of 3
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	r := rate.Limit(requestsPerSecond)
	return &RateLimiter{
		rate:    r,
		burst:   burst,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Allow blocks until a token is available or the context is canceled.
// It should be called before making a rate-limited request.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
