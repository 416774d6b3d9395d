package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mediacast/internal/alerting"
	"mediacast/internal/pkg/clock"
	"mediacast/internal/pkg/config"
	"mediacast/internal/resilience/breaker"
	"mediacast/internal/resilience/fallback"
)

var monitorBase = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

// testHarness bundles a monitor with the collaborators the tests drive.
type testHarness struct {
	mon      *Monitor
	clock    *clock.Fake
	registry *breaker.Registry
	records  *alerting.RecordStore
	fb       *fallback.Dispatcher
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	fake := clock.NewFake(monitorBase)
	cfg.Clock = fake
	if cfg.ResourceUsage == nil {
		cfg.ResourceUsage = func() float64 { return 1 << 20 }
	}

	registry := breaker.NewRegistry(fake)
	records := alerting.NewRecordStore()
	fb := fallback.NewDispatcher()
	return &testHarness{
		mon:      New(cfg, registry, fb, records),
		clock:    fake,
		registry: registry,
		records:  records,
		fb:       fb,
	}
}

// tripBreaker drives the named breaker into the open state.
func (h *testHarness) tripBreaker(t *testing.T, name string) {
	t.Helper()
	br := h.registry.GetOrCreate(name, breaker.Config{FailureThreshold: 1, MinRequests: 1})
	if _, err := br.Execute(context.Background(), func(context.Context) (any, error) {
		return nil, errBoom
	}); err == nil {
		t.Fatal("breaker Execute() error = nil, want failure")
	}
	if br.State() != breaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", br.State())
	}
}

func latestSample(t *testing.T, m *Monitor, dep string) Sample {
	t.Helper()
	s, ok := m.LatestMetrics(dep)
	if !ok {
		t.Fatalf("no sample for %s", dep)
	}
	return s
}

func TestRunOnceHealthyDependency(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("extractor", nil)

	h.mon.RunOnce(context.Background())

	s := latestSample(t, h.mon, "extractor")
	if s.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", s.Status)
	}
	if s.State != breaker.StateClosed {
		t.Errorf("State = %v, want closed", s.State)
	}
	if s.Timestamp != monitorBase {
		t.Errorf("Timestamp = %v, want %v", s.Timestamp, monitorBase)
	}
}

func TestRunOnceOpenBreakerIsUnhealthy(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("cdn", nil)
	h.tripBreaker(t, "cdn")

	h.mon.RunOnce(context.Background())

	s := latestSample(t, h.mon, "cdn")
	if s.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", s.Status)
	}
	if s.State != breaker.StateOpen {
		t.Errorf("State = %v, want open", s.State)
	}
}

func TestRunOnceHalfOpenBreakerIsDegraded(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("cdn", nil)
	h.tripBreaker(t, "cdn")

	// Past the open duration, a probe call moves the breaker half-open.
	h.clock.Advance(61 * time.Second)
	br := h.registry.Get("cdn")
	if _, err := br.Execute(context.Background(), func(context.Context) (any, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if br.State() != breaker.StateHalfOpen {
		t.Fatalf("breaker state = %v, want half-open", br.State())
	}

	h.mon.RunOnce(context.Background())
	if s := latestSample(t, h.mon, "cdn"); s.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", s.Status)
	}
}

func TestRunOnceClosedWithFailuresAndNoFallbackIsDegraded(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("extractor", nil)
	h.mon.RegisterDependency("summarizer", nil)
	h.fb.Register("summarizer", fallback.NewUnavailable())

	// One failure each; neither breaker trips.
	for _, dep := range []string{"extractor", "summarizer"} {
		br := h.registry.GetOrCreate(dep)
		_, _ = br.Execute(context.Background(), func(context.Context) (any, error) {
			return nil, errBoom
		})
	}

	h.mon.RunOnce(context.Background())

	if s := latestSample(t, h.mon, "extractor"); s.Status != StatusDegraded {
		t.Errorf("extractor without fallback: Status = %v, want degraded", s.Status)
	}
	if s := latestSample(t, h.mon, "summarizer"); s.Status != StatusHealthy {
		t.Errorf("summarizer with fallback: Status = %v, want healthy", s.Status)
	}
}

func TestRunOnceMissingConfigurationIsUnhealthy(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("speech", config.StaticProbe(false, "SPEECH_API_KEY", "SPEECH_REGION"))

	h.mon.RunOnce(context.Background())

	s := latestSample(t, h.mon, "speech")
	if s.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", s.Status)
	}
	if !strings.Contains(s.LastError, "SPEECH_API_KEY") {
		t.Errorf("LastError = %q, want missing variable names", s.LastError)
	}

	// The breach shows up as a critical monitor alert.
	var found bool
	for _, a := range h.mon.Alerts() {
		if a.Dependency == "speech" && a.Severity == alerting.SeverityCritical && !a.Resolved {
			found = true
		}
	}
	if !found {
		t.Error("no unresolved critical alert for missing configuration")
	}
}

func TestRunOnceAggregatesOperationRecords(t *testing.T) {
	h := newHarness(t, Config{Window: 5 * time.Minute})
	h.mon.RegisterDependency("extractor", nil)

	// Three records inside the window, one stale.
	h.records.Record("extractor", true, 100*time.Millisecond, monitorBase.Add(-time.Minute))
	h.records.Record("extractor", false, 300*time.Millisecond, monitorBase.Add(-2*time.Minute))
	h.records.Record("extractor", true, 200*time.Millisecond, monitorBase.Add(-3*time.Minute))
	h.records.Record("extractor", false, 5*time.Second, monitorBase.Add(-time.Hour))

	h.mon.RunOnce(context.Background())

	s := latestSample(t, h.mon, "extractor")
	if s.OperationCount != 3 {
		t.Errorf("OperationCount = %d, want 3", s.OperationCount)
	}
	if want := 1.0 / 3.0; s.ErrorRate < want-1e-9 || s.ErrorRate > want+1e-9 {
		t.Errorf("ErrorRate = %v, want %v", s.ErrorRate, want)
	}
	if want := 2.0 / 3.0; s.SuccessRate < want-1e-9 || s.SuccessRate > want+1e-9 {
		t.Errorf("SuccessRate = %v, want %v", s.SuccessRate, want)
	}
	if s.AvgResponseTime != 200*time.Millisecond {
		t.Errorf("AvgResponseTime = %v, want 200ms", s.AvgResponseTime)
	}
}

func TestThresholdAlertRaisesOnceAndAutoResolves(t *testing.T) {
	h := newHarness(t, Config{
		Window: 5 * time.Minute,
		Thresholds: Thresholds{
			MaxResponseTime: time.Second,
			MaxErrorRate:    0.5,
		},
	})
	h.mon.RegisterDependency("extractor", nil)

	// All operations failing: error rate 1.0 breaches 0.5.
	for i := 0; i < 4; i++ {
		h.records.Record("extractor", false, 10*time.Millisecond, monitorBase.Add(-time.Duration(i)*time.Second))
	}

	h.mon.RunOnce(context.Background())
	alerts := h.mon.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(alerts))
	}
	if alerts[0].Source != alerting.SourceMonitor {
		t.Errorf("Source = %v, want monitor", alerts[0].Source)
	}
	if alerts[0].Severity != alerting.SeverityError {
		t.Errorf("Severity = %v, want error", alerts[0].Severity)
	}

	// The breach persists: no duplicate alert.
	h.clock.Advance(30 * time.Second)
	h.mon.RunOnce(context.Background())
	if got := h.mon.Alerts(); len(got) != 1 {
		t.Fatalf("raised %d alerts while breach persists, want 1", len(got))
	}

	// Recovery: fill the window with successes and let the failures age out.
	h.clock.Advance(10 * time.Minute)
	for i := 0; i < 4; i++ {
		h.records.Record("extractor", true, 10*time.Millisecond, h.clock.Now().Add(-time.Duration(i)*time.Second))
	}
	h.mon.RunOnce(context.Background())

	alerts = h.mon.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("raised %d alerts after recovery, want 1", len(alerts))
	}
	if !alerts[0].Resolved || alerts[0].ResolvedAt == nil {
		t.Error("alert not auto-resolved after recovery")
	}

	// A fresh breach raises a new alert.
	h.clock.Advance(10 * time.Minute)
	for i := 0; i < 4; i++ {
		h.records.Record("extractor", false, 10*time.Millisecond, h.clock.Now().Add(-time.Duration(i)*time.Second))
	}
	h.mon.RunOnce(context.Background())
	if got := h.mon.Alerts(); len(got) != 2 {
		t.Errorf("raised %d alerts after refresh breach, want 2", len(got))
	}
}

func TestThresholdResourceUsage(t *testing.T) {
	usage := float64(1 << 20)
	h := newHarness(t, Config{
		ResourceUsage: func() float64 { return usage },
		Thresholds: Thresholds{
			MaxResponseTime:  time.Second,
			MaxErrorRate:     0.5,
			MinSuccessRate:   0.1,
			MaxResourceBytes: 1 << 24,
		},
	})
	h.mon.RegisterDependency("extractor", nil)

	h.mon.RunOnce(context.Background())
	if got := h.mon.Alerts(); len(got) != 0 {
		t.Fatalf("raised %d alerts under the resource limit, want 0", len(got))
	}

	usage = 1 << 25
	h.clock.Advance(30 * time.Second)
	h.mon.RunOnce(context.Background())
	alerts := h.mon.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("raised %d alerts over the resource limit, want 1", len(alerts))
	}
	if alerts[0].Severity != alerting.SeverityWarning {
		t.Errorf("Severity = %v, want warning", alerts[0].Severity)
	}
}

func TestResolveAlertManually(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("cdn", nil)
	h.tripBreaker(t, "cdn")

	h.mon.RunOnce(context.Background())
	alerts := h.mon.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(alerts))
	}

	if err := h.mon.ResolveAlert(alerts[0].ID); err != nil {
		t.Fatalf("ResolveAlert() error = %v", err)
	}
	if got := h.mon.Alerts()[0]; !got.Resolved {
		t.Error("alert not marked resolved")
	}
	if err := h.mon.ResolveAlert("missing"); err == nil {
		t.Error("ResolveAlert() error = nil for unknown ID")
	}
}

func TestSystemHealthSummary(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("extractor", nil)
	h.mon.RegisterDependency("summarizer", nil)
	h.mon.RegisterDependency("cdn", nil)
	h.tripBreaker(t, "cdn")

	// No samples yet: healthy by definition.
	if got := h.mon.SystemHealthSummary(); got.Status != StatusHealthy {
		t.Errorf("Status before first tick = %v, want healthy", got.Status)
	}

	h.clock.Advance(time.Minute)
	h.mon.RunOnce(context.Background())

	summary := h.mon.SystemHealthSummary()
	if summary.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy (worst wins)", summary.Status)
	}
	if summary.Healthy != 2 || summary.Unhealthy != 1 || summary.Degraded != 0 {
		t.Errorf("counts = %d/%d/%d, want 2 healthy, 0 degraded, 1 unhealthy",
			summary.Healthy, summary.Degraded, summary.Unhealthy)
	}
	if summary.Dependencies["cdn"] != StatusUnhealthy {
		t.Errorf("cdn status = %v, want unhealthy", summary.Dependencies["cdn"])
	}
	if summary.UptimeSeconds != 60 {
		t.Errorf("UptimeSeconds = %v, want 60", summary.UptimeSeconds)
	}
}

func TestPruneSamplesDropsStaleHistory(t *testing.T) {
	h := newHarness(t, Config{Retention: time.Hour})
	h.mon.RegisterDependency("extractor", nil)

	h.mon.RunOnce(context.Background())
	h.clock.Advance(30 * time.Minute)
	h.mon.RunOnce(context.Background())

	// Only the first sample is past the retention window.
	h.clock.Advance(45 * time.Minute)
	if pruned := h.mon.PruneSamples(); pruned != 1 {
		t.Errorf("PruneSamples() = %d, want 1", pruned)
	}
	if history := h.mon.AllMetrics()["extractor"]; len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}

	// Once every sample is stale the dependency has no history at all
	// until the next tick records a fresh one.
	h.clock.Advance(3 * time.Hour)
	if pruned := h.mon.PruneSamples(); pruned != 1 {
		t.Errorf("PruneSamples() = %d, want 1", pruned)
	}
	if history, ok := h.mon.AllMetrics()["extractor"]; ok {
		t.Fatalf("AllMetrics() still holds stale history %v", history)
	}
	if _, ok := h.mon.LatestMetrics("extractor"); ok {
		t.Error("LatestMetrics() returned a pruned sample")
	}

	summary := h.mon.SystemHealthSummary()
	if _, ok := summary.Dependencies["extractor"]; ok {
		t.Error("SystemHealthSummary() reported a dependency with no samples")
	}
}

func TestHealthStatusGaugeValue(t *testing.T) {
	tests := []struct {
		status HealthStatus
		want   float64
	}{
		{StatusUnknown, 0},
		{StatusHealthy, 1},
		{StatusDegraded, 2},
		{StatusUnhealthy, 3},
	}
	for _, tt := range tests {
		if got := tt.status.gaugeValue(); got != tt.want {
			t.Errorf("%s gaugeValue() = %v, want %v", tt.status, got, tt.want)
		}
	}
	if StatusUnknown.worse(StatusHealthy) {
		t.Error("unknown ranked worse than healthy")
	}
	if !StatusUnhealthy.worse(StatusUnknown) {
		t.Error("unhealthy not ranked worse than unknown")
	}
}

func TestDependenciesSorted(t *testing.T) {
	h := newHarness(t, Config{})
	h.mon.RegisterDependency("summarizer", nil)
	h.mon.RegisterDependency("cdn", nil)
	h.mon.RegisterDependency("extractor", nil)

	got := h.mon.Dependencies()
	want := []string{"cdn", "extractor", "summarizer"}
	if len(got) != len(want) {
		t.Fatalf("Dependencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Dependencies() = %v, want %v", got, want)
		}
	}
}
