package alerting

import "time"

// DefaultRules returns the rule set every new engine starts with. IDs are
// stable so operators can update or remove them by name.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "default-high-error-rate",
			Name:    "High error rate",
			Enabled: true,
			Conditions: []Condition{
				{
					Metric:      MetricErrorRate,
					Operator:    OpGT,
					Threshold:   0.1,
					Window:      5 * time.Minute,
					Aggregation: AggAvg,
				},
			},
			Severity: SeverityError,
			Cooldown: 15 * time.Minute,
			Channels: []string{"console"},
			Tags:     map[string]string{"origin": "default"},
		},
		{
			ID:      "default-slow-responses",
			Name:    "Slow responses",
			Enabled: true,
			Conditions: []Condition{
				{
					Metric:      MetricResponseTime,
					Operator:    OpGT,
					Threshold:   5000,
					Window:      5 * time.Minute,
					Aggregation: AggAvg,
				},
			},
			Severity: SeverityWarning,
			Cooldown: 15 * time.Minute,
			Channels: []string{"console"},
			Tags:     map[string]string{"origin": "default"},
		},
		{
			ID:      "default-low-success-rate",
			Name:    "Low success rate",
			Enabled: true,
			Conditions: []Condition{
				{
					Metric:      MetricSuccessRate,
					Operator:    OpLT,
					Threshold:   0.5,
					Window:      10 * time.Minute,
					Aggregation: AggAvg,
				},
			},
			Severity: SeverityCritical,
			Cooldown: 30 * time.Minute,
			Channels: []string{"console"},
			Tags:     map[string]string{"origin": "default"},
		},
		{
			ID:      "default-circuit-open",
			Name:    "Circuit breaker open",
			Enabled: true,
			Conditions: []Condition{
				{
					Metric:      MetricCircuitState,
					Operator:    OpEQ,
					Threshold:   1,
					Window:      time.Minute,
					Aggregation: AggMax,
				},
			},
			Severity: SeverityCritical,
			Cooldown: 10 * time.Minute,
			Channels: []string{"console"},
			Tags:     map[string]string{"origin": "default"},
		},
		{
			ID:      "default-high-memory",
			Name:    "High memory usage",
			Enabled: true,
			Conditions: []Condition{
				{
					Metric:      MetricResourceUsage,
					Operator:    OpGT,
					Threshold:   1 << 30, // 1 GiB
					Window:      time.Minute,
					Aggregation: AggMax,
				},
			},
			Severity: SeverityWarning,
			Cooldown: 30 * time.Minute,
			Channels: []string{"console"},
			Tags:     map[string]string{"origin": "default"},
		},
	}
}
