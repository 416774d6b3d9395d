// Package fallback maps a failed dependency call to a registered
// degraded-result strategy: a cached payload, a static payload, a degraded
// feature mode, or an explicit unavailability notice.
package fallback

import (
	"context"
	"log/slog"
	"sync"

	"mediacast/internal/observability/metrics"
	"mediacast/internal/resilience/errclass"
)

// Result is a degraded-but-successful substitute for a failed call.
// Fallback is always true so callers can distinguish it from a genuine
// success.
type Result struct {
	Value    any
	Fallback bool
	Strategy string
}

// Strategy produces a degraded result for a class of failures.
type Strategy interface {
	// Name identifies the strategy in logs and results.
	Name() string

	// Applies reports whether this strategy can handle a failure with
	// the given classification.
	Applies(c errclass.Classification) bool

	// Execute produces the degraded result. An error means this
	// strategy could not produce one (for example a cache miss); the
	// dispatcher then tries the next strategy.
	Execute(ctx context.Context, dependency string, cause error) (Result, error)
}

// Dispatcher holds an ordered list of fallback strategies per dependency.
//
// All methods are safe for concurrent use.
type Dispatcher struct {
	mu         sync.RWMutex
	strategies map[string][]Strategy
}

// NewDispatcher creates an empty fallback dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		strategies: make(map[string][]Strategy),
	}
}

// Register appends strategies for the named dependency. Order matters:
// the first applicable strategy wins.
func (d *Dispatcher) Register(dependency string, strategies ...Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strategies[dependency] = append(d.strategies[dependency], strategies...)
}

// Has reports whether any fallback strategy is registered for the
// dependency. The health monitor uses this to downgrade dependencies
// that have no safety net.
func (d *Dispatcher) Has(dependency string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.strategies[dependency]) > 0
}

// Execute selects the first strategy applicable to the failure's
// classification and returns its degraded result. If no strategy matches
// or every applicable strategy declines, the original error is returned,
// signaling a hard failure to the caller.
func (d *Dispatcher) Execute(ctx context.Context, dependency string, cause error) (Result, error) {
	d.mu.RLock()
	candidates := d.strategies[dependency]
	d.mu.RUnlock()

	cls := errclass.Classify(cause)
	for _, s := range candidates {
		if !s.Applies(cls) {
			continue
		}
		res, err := s.Execute(ctx, dependency, cause)
		if err != nil {
			slog.Debug("fallback strategy declined",
				slog.String("dependency", dependency),
				slog.String("strategy", s.Name()),
				slog.Any("error", err))
			continue
		}
		res.Fallback = true
		res.Strategy = s.Name()
		metrics.FallbacksTotal.WithLabelValues(dependency, s.Name()).Inc()
		slog.Info("fallback strategy applied",
			slog.String("dependency", dependency),
			slog.String("strategy", s.Name()),
			slog.String("error_class", cls.Class.String()))
		return res, nil
	}

	return Result{}, cause
}
