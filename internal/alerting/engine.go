package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediacast/internal/observability/metrics"
	"mediacast/internal/pkg/clock"
)

// sendTimeout bounds a single notification channel delivery.
const sendTimeout = 10 * time.Second

// EngineConfig holds the configuration for the alert engine.
type EngineConfig struct {
	// Provider supplies historical per-operation records. Required.
	Provider MetricsProvider

	// Sinks are the notification channels rules can dispatch to.
	Sinks []Sink

	// Interval is the evaluation tick period. Default: 1 minute.
	Interval time.Duration

	// BreakerState reports the numeric circuit state for a dependency
	// (0=closed, 1=open, 2=half-open). Optional; without it,
	// circuit_state conditions never fire.
	BreakerState func(dependency string) (float64, bool)

	// ResourceUsage reports current process resource usage in bytes.
	// Optional; without it, resource_usage conditions never fire.
	ResourceUsage func() float64

	// ExtraDependencies widens the dependency universe beyond those with
	// recorded operations (e.g. breaker registry names). Optional.
	ExtraDependencies func() []string

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine evaluates alert rules on its own fixed-interval tick, independent
// of the health monitor. Rule mutation is safe against an in-progress
// evaluation pass: each pass works on a snapshot of the rule set.
type Engine struct {
	cfg    EngineConfig
	sinks  map[string]Sink
	logger *slog.Logger
	clock  clock.Clock

	mu        sync.RWMutex
	rules     map[string]Rule
	lastFired map[string]time.Time

	notifMu       sync.RWMutex
	notifications []Alert

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewEngine creates an alert engine seeded with the default rules.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = &clock.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sinks := make(map[string]Sink, len(cfg.Sinks))
	for _, s := range cfg.Sinks {
		sinks[s.Name()] = s
	}

	e := &Engine{
		cfg:       cfg,
		sinks:     sinks,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		rules:     make(map[string]Rule),
		lastFired: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
	}
	for _, r := range DefaultRules() {
		e.rules[r.ID] = r
	}
	return e
}

// Start runs the evaluation loop until the context is cancelled or Stop is
// called.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()

		e.logger.Info("alert engine started", slog.Duration("interval", e.cfg.Interval))
		for {
			select {
			case <-ticker.C:
				e.Evaluate(ctx)
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop halts the evaluation loop and waits for an in-progress pass to
// finish. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	e.logger.Info("alert engine stopped")
}

// AddRule adds a rule, generating an ID when none is set.
func (e *Engine) AddRule(r Rule) (Rule, error) {
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[r.ID]; exists {
		return Rule{}, fmt.Errorf("rule %q already exists", r.ID)
	}
	e.rules[r.ID] = r
	return r, nil
}

// UpdateRule replaces an existing rule.
func (e *Engine) UpdateRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[r.ID]; !exists {
		return fmt.Errorf("rule %q not found", r.ID)
	}
	e.rules[r.ID] = r
	return nil
}

// RemoveRule deletes a rule and its cooldown state.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[id]; !exists {
		return fmt.Errorf("rule %q not found", id)
	}
	delete(e.rules, id)
	delete(e.lastFired, id)
	return nil
}

// ReplaceRules atomically swaps the entire rule set. Used by the rule file
// watcher on reload. Cooldown state for surviving rule IDs is kept.
func (e *Engine) ReplaceRules(rules []Rule) error {
	next := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		next[r.ID] = r
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = next
	for id := range e.lastFired {
		if _, ok := next[id]; !ok {
			delete(e.lastFired, id)
		}
	}
	return nil
}

// GetAllRules returns a copy of every rule, sorted by ID.
func (e *Engine) GetAllRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAllNotifications returns a copy of every engine-raised alert.
func (e *Engine) GetAllNotifications() []Alert {
	e.notifMu.RLock()
	defer e.notifMu.RUnlock()

	out := make([]Alert, len(e.notifications))
	copy(out, e.notifications)
	return out
}

// ResolveNotification marks an engine-raised alert resolved.
func (e *Engine) ResolveNotification(id string) error {
	e.notifMu.Lock()
	defer e.notifMu.Unlock()

	for i := range e.notifications {
		if e.notifications[i].ID == id {
			if e.notifications[i].Resolved {
				return nil
			}
			now := e.clock.Now()
			e.notifications[i].Resolved = true
			e.notifications[i].ResolvedAt = &now
			return nil
		}
	}
	return fmt.Errorf("notification %q not found", id)
}

// Evaluate runs a single evaluation pass over a snapshot of the rule set.
// For each enabled rule outside its cooldown, every condition is
// aggregated over its window and compared; all conditions must hold for
// the rule to fire. A firing rule raises at most one alert per pass.
func (e *Engine) Evaluate(ctx context.Context) {
	now := e.clock.Now()

	e.mu.RLock()
	rules := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	deps, err := e.dependencyUniverse(ctx)
	if err != nil {
		e.logger.Error("alert evaluation failed to list dependencies", slog.Any("error", err))
		return
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		e.mu.RLock()
		last, fired := e.lastFired[rule.ID]
		e.mu.RUnlock()
		if fired && now.Sub(last) < rule.Cooldown {
			continue
		}

		dep, value, ok := e.ruleMatches(ctx, rule, deps, now)
		if !ok {
			continue
		}
		e.fire(ctx, rule, dep, value, now)
	}
}

// dependencyUniverse merges dependencies with recorded operations and the
// configured extra names, deduplicated and sorted.
func (e *Engine) dependencyUniverse(ctx context.Context) ([]string, error) {
	deps, err := e.cfg.Provider.Dependencies(ctx)
	if err != nil {
		return nil, err
	}
	if e.cfg.ExtraDependencies == nil {
		return deps, nil
	}

	seen := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		seen[d] = struct{}{}
	}
	for _, d := range e.cfg.ExtraDependencies() {
		if _, ok := seen[d]; !ok {
			deps = append(deps, d)
			seen[d] = struct{}{}
		}
	}
	sort.Strings(deps)
	return deps, nil
}

// ruleMatches returns the first dependency for which every condition of
// the rule holds, along with the last condition's aggregated value.
func (e *Engine) ruleMatches(ctx context.Context, rule Rule, deps []string, now time.Time) (string, float64, bool) {
	for _, dep := range deps {
		matched := true
		var value float64
		for _, cond := range rule.Conditions {
			v, ok := e.evaluateCondition(ctx, cond, dep, now)
			if !ok {
				matched = false
				break
			}
			value = v
		}
		if matched {
			return dep, value, true
		}
	}
	return "", 0, false
}

// evaluateCondition aggregates the condition's metric over its window for
// the dependency and compares against the threshold. A condition with no
// data never holds.
func (e *Engine) evaluateCondition(ctx context.Context, cond Condition, dep string, now time.Time) (float64, bool) {
	values, err := e.conditionValues(ctx, cond, dep, now)
	if err != nil {
		e.logger.Error("condition evaluation failed",
			slog.String("dependency", dep),
			slog.String("metric", cond.Metric.String()),
			slog.Any("error", err))
		return 0, false
	}

	agg, ok := cond.Aggregation.Apply(values)
	if !ok {
		return 0, false
	}
	return agg, cond.Operator.Compare(agg, cond.Threshold)
}

// conditionValues extracts the per-sample values for a condition's metric.
func (e *Engine) conditionValues(ctx context.Context, cond Condition, dep string, now time.Time) ([]float64, error) {
	switch cond.Metric {
	case MetricErrorRate, MetricSuccessRate, MetricResponseTime:
		recs, err := e.cfg.Provider.Records(ctx, dep, now.Add(-cond.Window))
		if err != nil {
			return nil, err
		}
		values := make([]float64, 0, len(recs))
		for _, r := range recs {
			switch cond.Metric {
			case MetricErrorRate:
				if r.Success {
					values = append(values, 0)
				} else {
					values = append(values, 1)
				}
			case MetricSuccessRate:
				if r.Success {
					values = append(values, 1)
				} else {
					values = append(values, 0)
				}
			case MetricResponseTime:
				values = append(values, float64(r.Duration.Milliseconds()))
			}
		}
		return values, nil

	case MetricCircuitState:
		if e.cfg.BreakerState == nil {
			return nil, nil
		}
		v, ok := e.cfg.BreakerState(dep)
		if !ok {
			return nil, nil
		}
		return []float64{v}, nil

	case MetricResourceUsage:
		if e.cfg.ResourceUsage == nil {
			return nil, nil
		}
		return []float64{e.cfg.ResourceUsage()}, nil

	default:
		return nil, fmt.Errorf("unknown metric %d", cond.Metric)
	}
}

// fire raises an alert for the rule, dispatches to every configured
// channel, and stamps the cooldown.
func (e *Engine) fire(ctx context.Context, rule Rule, dep string, value float64, now time.Time) {
	alert := NewAlert(SourceRule, dep, rule.Severity,
		fmt.Sprintf("%s: triggered for %s (value %.3f)", rule.Name, dep, value), now)
	alert.RuleID = rule.ID
	alert.RuleName = rule.Name

	for _, channel := range rule.Channels {
		alert.Deliveries = append(alert.Deliveries, e.dispatch(ctx, channel, alert))
	}

	e.notifMu.Lock()
	e.notifications = append(e.notifications, alert)
	e.notifMu.Unlock()

	e.mu.Lock()
	e.lastFired[rule.ID] = now
	e.mu.Unlock()

	metrics.AlertsFiredTotal.WithLabelValues(string(SourceRule), string(rule.Severity)).Inc()
	e.logger.Warn("alert rule fired",
		slog.String("rule_id", rule.ID),
		slog.String("rule", rule.Name),
		slog.String("dependency", dep),
		slog.String("severity", string(rule.Severity)),
		slog.Float64("value", value))
}

// dispatch delivers an alert to one channel. Failures are recorded and do
// not block other channels.
func (e *Engine) dispatch(ctx context.Context, channel string, alert Alert) Delivery {
	d := Delivery{Channel: channel, Status: DeliveryPending, At: e.clock.Now()}

	sink, ok := e.sinks[channel]
	if !ok {
		d.Status = DeliveryFailed
		d.Error = "unknown channel"
		metrics.NotificationDeliveriesTotal.WithLabelValues(channel, string(DeliveryFailed)).Inc()
		e.logger.Error("notification channel not registered", slog.String("channel", channel))
		return d
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := sink.Send(sendCtx, alert); err != nil {
		d.Status = DeliveryFailed
		d.Error = err.Error()
		metrics.NotificationDeliveriesTotal.WithLabelValues(channel, string(DeliveryFailed)).Inc()
		e.logger.Error("notification delivery failed",
			slog.String("channel", channel),
			slog.String("alert_id", alert.ID),
			slog.Any("error", err))
		return d
	}

	d.Status = DeliverySent
	metrics.NotificationDeliveriesTotal.WithLabelValues(channel, string(DeliverySent)).Inc()
	return d
}
