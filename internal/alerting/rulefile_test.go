package alerting

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alert_rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadRulesFile(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: custom-error-rate
    name: custom error rate
    severity: critical
    cooldown_minutes: 20
    channels: [console, webhook]
    tags:
      team: platform
    conditions:
      - metric: error_rate
        operator: gt
        threshold: 0.25
        window_minutes: 10
        aggregation: avg
  - name: slow responses
    enabled: false
    conditions:
      - metric: response_time
        operator: gte
        threshold: 3000
        window_minutes: 5
        aggregation: max
`)

	rules, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("LoadRulesFile() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("loaded %d rules, want 2", len(rules))
	}

	r := rules[0]
	if r.ID != "custom-error-rate" {
		t.Errorf("ID = %q, want custom-error-rate", r.ID)
	}
	if !r.Enabled {
		t.Error("Enabled = false, want default true")
	}
	if r.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want critical", r.Severity)
	}
	if r.Cooldown != 20*time.Minute {
		t.Errorf("Cooldown = %v, want 20m", r.Cooldown)
	}
	if len(r.Channels) != 2 {
		t.Errorf("Channels = %v, want two", r.Channels)
	}
	if r.Tags["team"] != "platform" {
		t.Errorf("Tags = %v, want team=platform", r.Tags)
	}
	c := r.Conditions[0]
	if c.Metric != MetricErrorRate || c.Operator != OpGT || c.Threshold != 0.25 ||
		c.Window != 10*time.Minute || c.Aggregation != AggAvg {
		t.Errorf("condition = %+v", c)
	}

	r = rules[1]
	if r.Enabled {
		t.Error("Enabled = true, want explicit false")
	}
	if r.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want default warning", r.Severity)
	}
}

func TestLoadRulesFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "rules: [",
		},
		{
			name: "unknown severity",
			content: `
rules:
  - name: bad severity
    severity: panic
    conditions:
      - {metric: error_rate, operator: gt, threshold: 0.1, window_minutes: 5, aggregation: avg}
`,
		},
		{
			name: "unknown metric",
			content: `
rules:
  - name: bad metric
    conditions:
      - {metric: latency, operator: gt, threshold: 0.1, window_minutes: 5, aggregation: avg}
`,
		},
		{
			name: "unknown operator",
			content: `
rules:
  - name: bad operator
    conditions:
      - {metric: error_rate, operator: above, threshold: 0.1, window_minutes: 5, aggregation: avg}
`,
		},
		{
			name: "unknown aggregation",
			content: `
rules:
  - name: bad aggregation
    conditions:
      - {metric: error_rate, operator: gt, threshold: 0.1, window_minutes: 5, aggregation: median}
`,
		},
		{
			name: "missing window",
			content: `
rules:
  - name: no window
    conditions:
      - {metric: error_rate, operator: gt, threshold: 0.1, aggregation: avg}
`,
		},
		{
			name: "no conditions",
			content: `
rules:
  - name: empty rule
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRulesFile(t, tt.content)
			if _, err := LoadRulesFile(path); err == nil {
				t.Error("LoadRulesFile() error = nil, want error")
			}
		})
	}
}

func TestLoadRulesFileMissing(t *testing.T) {
	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadRulesFile() error = nil for missing file")
	}
}

func TestNewRuleWatcherLoadsUpFront(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: from-file
    name: from file
    conditions:
      - {metric: error_rate, operator: gt, threshold: 0.5, window_minutes: 5, aggregation: avg}
`)

	e := NewEngine(EngineConfig{Provider: NewRecordStore()})
	w, err := NewRuleWatcher(path, e, nil)
	if err != nil {
		t.Fatalf("NewRuleWatcher() error = %v", err)
	}
	defer w.Stop()

	rules := e.GetAllRules()
	if len(rules) != 1 || rules[0].ID != "from-file" {
		t.Errorf("engine rules = %+v, want the file's rule set", rules)
	}
}

func TestNewRuleWatcherRejectsBadFile(t *testing.T) {
	path := writeRulesFile(t, "rules: [")
	e := NewEngine(EngineConfig{Provider: NewRecordStore()})
	if _, err := NewRuleWatcher(path, e, nil); err == nil {
		t.Error("NewRuleWatcher() error = nil for unparsable file")
	}
}

func TestRuleWatcherReload(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: v1
    name: version one
    conditions:
      - {metric: error_rate, operator: gt, threshold: 0.5, window_minutes: 5, aggregation: avg}
`)

	e := NewEngine(EngineConfig{Provider: NewRecordStore()})
	w, err := NewRuleWatcher(path, e, nil)
	if err != nil {
		t.Fatalf("NewRuleWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	next := `
rules:
  - id: v2
    name: version two
    conditions:
      - {metric: success_rate, operator: lt, threshold: 0.9, window_minutes: 5, aggregation: avg}
`
	if err := os.WriteFile(path, []byte(next), 0o600); err != nil {
		t.Fatalf("rewrite rules file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rules := e.GetAllRules()
		if len(rules) == 1 && rules[0].ID == "v2" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("rules not reloaded, still %+v", e.GetAllRules())
}

func TestRuleWatcherKeepsRulesOnBadReload(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: good
    name: good rule
    conditions:
      - {metric: error_rate, operator: gt, threshold: 0.5, window_minutes: 5, aggregation: avg}
`)

	e := NewEngine(EngineConfig{Provider: NewRecordStore()})
	w, err := NewRuleWatcher(path, e, nil)
	if err != nil {
		t.Fatalf("NewRuleWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("rules: ["), 0o600); err != nil {
		t.Fatalf("rewrite rules file: %v", err)
	}

	// Give the debounce time to fire, then confirm the old set survived.
	time.Sleep(4 * reloadDebounce)
	rules := e.GetAllRules()
	if len(rules) != 1 || rules[0].ID != "good" {
		t.Errorf("rules after bad reload = %+v, want original set", rules)
	}
}
