package resilience

import (
	"context"
	"time"

	"mediacast/internal/pkg/clock"
	"mediacast/internal/resilience/breaker"
	"mediacast/internal/resilience/errclass"
	"mediacast/internal/resilience/fallback"
	"mediacast/internal/resilience/retry"
	"mediacast/internal/resilience/timeout"
)

// Operation is an asynchronous, fallible call to an external dependency.
type Operation func(ctx context.Context) (any, error)

// Recorder receives one record per completed dependency call. The alert
// engine's metrics provider implements this to build its history.
type Recorder interface {
	Record(dependency string, success bool, duration time.Duration, at time.Time)
}

// ClientConfig wires the resilience layers together.
type ClientConfig struct {
	// Breakers resolves per-dependency circuit breakers. Required.
	Breakers *breaker.Registry

	// Fallbacks is consulted on terminal failure. Optional; without it
	// every terminal failure propagates as a structured error.
	Fallbacks *fallback.Dispatcher

	// Recorder receives per-call records. Optional.
	Recorder Recorder

	// Cache, when set, stores each genuine success so the cached-result
	// fallback strategy has something to serve. Optional.
	Cache *fallback.CachedResult

	// Observer fires before each retry. Optional.
	Observer retry.Observer

	// Clock defaults to the system clock.
	Clock clock.Clock
}

// Client composes retry, timeout, circuit breaking, and fallback around
// dependency operations. Callers receive one of: a genuine success, a
// flagged fallback success, or a structured *errclass.Error.
type Client struct {
	breakers  *breaker.Registry
	fallbacks *fallback.Dispatcher
	recorder  Recorder
	cache     *fallback.CachedResult
	retrier   *retry.Executor
	clock     clock.Clock
}

// NewClient creates a resilience client from the given configuration.
func NewClient(cfg ClientConfig) *Client {
	clk := cfg.Clock
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	return &Client{
		breakers:  cfg.Breakers,
		fallbacks: cfg.Fallbacks,
		recorder:  cfg.Recorder,
		cache:     cfg.Cache,
		retrier:   retry.NewExecutor(cfg.Observer),
		clock:     clk,
	}
}

// Do runs the operation against the named dependency with the full
// resilience stack: each retry attempt races a deadline and routes through
// the dependency's circuit breaker; a terminal failure consults the
// fallback dispatcher before propagating.
func (c *Client) Do(ctx context.Context, dependency string, d time.Duration, policy retry.Policy, op Operation) (fallback.Result, error) {
	br := c.breakers.GetOrCreate(dependency)

	attempt := func(ctx context.Context) (any, error) {
		return timeout.Execute(ctx, dependency, d, func(ctx context.Context) (any, error) {
			return br.Execute(ctx, breaker.Operation(op))
		})
	}

	start := c.clock.Now()
	v, err := c.retrier.Execute(ctx, attempt, policy)
	if c.recorder != nil {
		now := c.clock.Now()
		c.recorder.Record(dependency, err == nil, now.Sub(start), now)
	}

	if err == nil {
		if c.cache != nil {
			c.cache.Store(dependency, v)
		}
		return fallback.Result{Value: v}, nil
	}

	if c.fallbacks != nil {
		if res, ferr := c.fallbacks.Execute(ctx, dependency, err); ferr == nil {
			return res, nil
		}
	}
	return fallback.Result{}, errclass.Wrap(dependency, err)
}
