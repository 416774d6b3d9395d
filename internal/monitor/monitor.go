// Package monitor derives per-dependency health from circuit breaker state,
// configuration probes, and recorded operation metrics, and raises threshold
// alerts that resolve automatically when the triggering metric recovers.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mediacast/internal/alerting"
	"mediacast/internal/observability/logging"
	"mediacast/internal/observability/metrics"
	"mediacast/internal/pkg/clock"
	"mediacast/internal/pkg/config"
	"mediacast/internal/resilience/breaker"
	"mediacast/internal/resilience/fallback"
)

// Config holds the configuration for the health monitor.
type Config struct {
	// Interval is the tick period. Default: 30 seconds.
	Interval time.Duration

	// Window is the trailing window for error/success rates and response
	// times. Default: 5 minutes.
	Window time.Duration

	// Retention bounds how long samples are kept. Default: 24 hours.
	Retention time.Duration

	// Thresholds defaults to DefaultThresholds() when zero.
	Thresholds Thresholds

	// ResourceUsage reports current process resource usage in bytes.
	// Defaults to heap bytes in use.
	ResourceUsage func() float64

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Monitor observes registered dependencies on a fixed interval.
type Monitor struct {
	cfg       Config
	registry  *breaker.Registry
	fallbacks *fallback.Dispatcher
	provider  alerting.MetricsProvider
	logger    *slog.Logger
	clock     clock.Clock
	started   time.Time

	depMu  sync.RWMutex
	probes map[string]config.Probe

	store *sampleStore

	alertMu sync.RWMutex
	alerts  []alerting.Alert
	// active maps "dependency/kind" to the unresolved alert raised for
	// that breach, so recovery can resolve it.
	active map[string]string

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a health monitor over the given breaker registry, fallback
// dispatcher, and operation record provider.
func New(cfg Config, registry *breaker.Registry, fallbacks *fallback.Dispatcher, provider alerting.MetricsProvider) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if (cfg.Thresholds == Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.ResourceUsage == nil {
		cfg.ResourceUsage = heapInUse
	}
	if cfg.Clock == nil {
		cfg.Clock = &clock.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Monitor{
		cfg:       cfg,
		registry:  registry,
		fallbacks: fallbacks,
		provider:  provider,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		started:   cfg.Clock.Now(),
		probes:    make(map[string]config.Probe),
		store:     newSampleStore(),
		active:    make(map[string]string),
		stopCh:    make(chan struct{}),
	}
}

func heapInUse() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapInuse)
}

// RegisterDependency adds a dependency to the watch list. The probe
// reports whether the dependency's required settings are present; pass
// nil for dependencies without configuration.
func (m *Monitor) RegisterDependency(name string, probe config.Probe) {
	m.depMu.Lock()
	defer m.depMu.Unlock()
	m.probes[name] = probe
}

// Dependencies returns the watched dependency names, sorted.
func (m *Monitor) Dependencies() []string {
	m.depMu.RLock()
	defer m.depMu.RUnlock()
	out := make([]string, 0, len(m.probes))
	for name := range m.probes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Start runs the monitor loop until the context is cancelled or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.logger.Info("health monitor started", slog.Duration("interval", m.cfg.Interval))
		for {
			select {
			case <-ticker.C:
				m.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the monitor loop and waits for an in-progress tick to finish.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	m.logger.Info("health monitor stopped")
}

// RunOnce performs a single monitoring pass: one sample and one threshold
// check per registered dependency. Dependencies are observed concurrently
// but the outcome is the same regardless of ordering.
func (m *Monitor) RunOnce(ctx context.Context) {
	start := time.Now()
	deps := m.Dependencies()

	samples := make([]Sample, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range deps {
		i, name := i, name
		g.Go(func() error {
			samples[i] = m.observe(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	for _, sample := range samples {
		m.store.append(sample)
		metrics.DependencyHealth.WithLabelValues(sample.Dependency).Set(sample.Status.gaugeValue())
		m.checkThresholds(sample)
	}

	metrics.MonitorTickDuration.Observe(time.Since(start).Seconds())
}

// observe builds one sample for a dependency.
func (m *Monitor) observe(ctx context.Context, name string) Sample {
	now := m.clock.Now()
	stats := m.registry.GetOrCreate(name).Stats()

	status := StatusHealthy
	switch stats.State {
	case breaker.StateClosed:
		// A closed breaker that is already collecting failures and has no
		// fallback registered leaves callers without a safety net.
		if stats.FailureCount > 0 && !m.fallbacks.Has(name) {
			status = StatusDegraded
		}
	case breaker.StateHalfOpen:
		status = StatusDegraded
	case breaker.StateOpen:
		status = StatusUnhealthy
	}

	var lastError string
	m.depMu.RLock()
	probe := m.probes[name]
	m.depMu.RUnlock()
	if probe != nil {
		if res := probe.Check(); !res.Configured {
			// Missing configuration makes the dependency unusable no
			// matter what the breaker says.
			status = StatusUnhealthy
			lastError = res.Describe()
		}
	}

	sample := Sample{
		Dependency:    name,
		Status:        status,
		State:         stats.State,
		FailureCount:  stats.FailureCount,
		SuccessCount:  stats.SuccessCount,
		RequestCount:  stats.RequestCount,
		ResourceBytes: m.cfg.ResourceUsage(),
		UptimeSeconds: now.Sub(m.started).Seconds(),
		LastError:     lastError,
		Timestamp:     now,
	}

	records, err := m.provider.Records(ctx, name, now.Add(-m.cfg.Window))
	if err != nil {
		logging.WithDependency(m.logger, name).Warn(
			"failed to read operation records", slog.Any("error", err))
		return sample
	}
	if len(records) == 0 {
		return sample
	}

	var failures int
	var total time.Duration
	for _, r := range records {
		if !r.Success {
			failures++
		}
		total += r.Duration
	}
	sample.OperationCount = len(records)
	sample.ErrorRate = float64(failures) / float64(len(records))
	sample.SuccessRate = 1 - sample.ErrorRate
	sample.AvgResponseTime = total / time.Duration(len(records))
	return sample
}

// breach is one threshold check outcome for a sample.
type breach struct {
	kind     string
	severity alerting.Severity
	message  string
	breached bool
}

// checkThresholds compares a sample against the threshold table. Each
// breach kind raises at most one open alert per dependency; the alert is
// resolved automatically once the metric recovers.
func (m *Monitor) checkThresholds(s Sample) {
	t := m.cfg.Thresholds
	hasOps := s.OperationCount > 0

	checks := []breach{
		{
			kind:     "response_time",
			severity: alerting.SeverityWarning,
			message:  fmt.Sprintf("average response time %s exceeds %s", s.AvgResponseTime, t.MaxResponseTime),
			breached: hasOps && s.AvgResponseTime > t.MaxResponseTime,
		},
		{
			kind:     "error_rate",
			severity: alerting.SeverityError,
			message:  fmt.Sprintf("error rate %.2f exceeds %.2f", s.ErrorRate, t.MaxErrorRate),
			breached: hasOps && s.ErrorRate > t.MaxErrorRate,
		},
		{
			kind:     "success_rate",
			severity: alerting.SeverityError,
			message:  fmt.Sprintf("success rate %.2f below %.2f", s.SuccessRate, t.MinSuccessRate),
			breached: hasOps && s.SuccessRate < t.MinSuccessRate,
		},
		{
			kind:     "resource_usage",
			severity: alerting.SeverityWarning,
			message:  fmt.Sprintf("resource usage %.0f bytes exceeds %.0f", s.ResourceBytes, t.MaxResourceBytes),
			breached: t.MaxResourceBytes > 0 && s.ResourceBytes > t.MaxResourceBytes,
		},
		{
			kind:     "unhealthy",
			severity: alerting.SeverityCritical,
			message:  fmt.Sprintf("dependency is unhealthy: %s", firstNonEmpty(s.LastError, "circuit open")),
			breached: s.Status == StatusUnhealthy,
		},
	}

	log := logging.WithDependency(m.logger, s.Dependency)

	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	for _, c := range checks {
		key := s.Dependency + "/" + c.kind
		id, open := m.active[key]

		switch {
		case c.breached && !open:
			alert := alerting.NewAlert(alerting.SourceMonitor, s.Dependency, c.severity, c.message, s.Timestamp)
			m.alerts = append(m.alerts, alert)
			m.active[key] = alert.ID
			metrics.AlertsFiredTotal.WithLabelValues(string(alerting.SourceMonitor), string(c.severity)).Inc()
			log.Warn("threshold alert raised",
				slog.String("kind", c.kind),
				slog.String("severity", string(c.severity)),
				slog.String("message", c.message))

		case !c.breached && open:
			m.resolveLocked(id, s.Timestamp)
			delete(m.active, key)
			log.Info("threshold alert recovered",
				slog.String("kind", c.kind))
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (m *Monitor) resolveLocked(id string, at time.Time) {
	for i := range m.alerts {
		if m.alerts[i].ID == id && !m.alerts[i].Resolved {
			m.alerts[i].Resolved = true
			m.alerts[i].ResolvedAt = &at
			return
		}
	}
}

// Alerts returns a copy of every monitor-raised alert.
func (m *Monitor) Alerts() []alerting.Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	out := make([]alerting.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// ResolveAlert marks a monitor alert resolved by hand.
func (m *Monitor) ResolveAlert(id string) error {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID != id {
			continue
		}
		if !m.alerts[i].Resolved {
			now := m.clock.Now()
			m.alerts[i].Resolved = true
			m.alerts[i].ResolvedAt = &now
		}
		for key, activeID := range m.active {
			if activeID == id {
				delete(m.active, key)
			}
		}
		return nil
	}
	return fmt.Errorf("alert %q not found", id)
}

// AllMetrics returns a copy of every dependency's sample history.
func (m *Monitor) AllMetrics() map[string][]Sample {
	return m.store.all()
}

// LatestMetrics returns the most recent sample for a dependency.
func (m *Monitor) LatestMetrics(dependency string) (Sample, bool) {
	return m.store.latest(dependency)
}

// SystemHealthSummary aggregates the latest sample of every dependency.
type SystemHealthSummary struct {
	Status        HealthStatus
	Healthy       int
	Degraded      int
	Unhealthy     int
	Dependencies  map[string]HealthStatus
	UptimeSeconds float64
	Timestamp     time.Time
}

// SystemHealthSummary reports overall health as the worst latest status
// across all watched dependencies. No samples yet means healthy.
func (m *Monitor) SystemHealthSummary() SystemHealthSummary {
	now := m.clock.Now()
	summary := SystemHealthSummary{
		Status:        StatusHealthy,
		Dependencies:  make(map[string]HealthStatus),
		UptimeSeconds: now.Sub(m.started).Seconds(),
		Timestamp:     now,
	}

	for _, name := range m.Dependencies() {
		sample, ok := m.store.latest(name)
		if !ok {
			continue
		}
		summary.Dependencies[name] = sample.Status
		switch sample.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
		}
		if sample.Status.worse(summary.Status) {
			summary.Status = sample.Status
		}
	}
	return summary
}

// PruneSamples drops samples older than the retention window.
func (m *Monitor) PruneSamples() int {
	cutoff := m.clock.Now().Add(-m.cfg.Retention)
	pruned := m.store.prune(cutoff)
	if pruned > 0 {
		metrics.SamplesPrunedTotal.Add(float64(pruned))
		m.logger.Info("pruned metric samples", slog.Int("count", pruned))
	}
	return pruned
}
