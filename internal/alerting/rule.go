package alerting

import (
	"fmt"
	"time"
)

// Metric identifies the quantity a condition evaluates. It is a closed set
// of tagged variants rather than an open string so a misspelled rule fails
// at parse time, not silently at evaluation.
type Metric int

const (
	MetricErrorRate Metric = iota
	MetricResponseTime
	MetricSuccessRate
	MetricCircuitState
	MetricResourceUsage
)

// String returns the wire name of the metric.
func (m Metric) String() string {
	switch m {
	case MetricErrorRate:
		return "error_rate"
	case MetricResponseTime:
		return "response_time"
	case MetricSuccessRate:
		return "success_rate"
	case MetricCircuitState:
		return "circuit_state"
	case MetricResourceUsage:
		return "resource_usage"
	default:
		return "unknown"
	}
}

// ParseMetric parses a wire name into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "error_rate":
		return MetricErrorRate, nil
	case "response_time":
		return MetricResponseTime, nil
	case "success_rate":
		return MetricSuccessRate, nil
	case "circuit_state":
		return MetricCircuitState, nil
	case "resource_usage":
		return MetricResourceUsage, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Operator compares an aggregated value against a threshold.
type Operator int

const (
	OpGT Operator = iota
	OpGTE
	OpLT
	OpLTE
	OpEQ
	OpNE
)

// String returns the wire name of the operator.
func (o Operator) String() string {
	switch o {
	case OpGT:
		return "gt"
	case OpGTE:
		return "gte"
	case OpLT:
		return "lt"
	case OpLTE:
		return "lte"
	case OpEQ:
		return "eq"
	case OpNE:
		return "ne"
	default:
		return "unknown"
	}
}

// ParseOperator parses a wire name into an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "gt":
		return OpGT, nil
	case "gte":
		return OpGTE, nil
	case "lt":
		return OpLT, nil
	case "lte":
		return OpLTE, nil
	case "eq":
		return OpEQ, nil
	case "ne":
		return OpNE, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

// Compare applies the operator to value and threshold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGT:
		return value > threshold
	case OpGTE:
		return value >= threshold
	case OpLT:
		return value < threshold
	case OpLTE:
		return value <= threshold
	case OpEQ:
		return value == threshold
	case OpNE:
		return value != threshold
	default:
		return false
	}
}

// Aggregation combines window samples into one value.
type Aggregation int

const (
	AggAvg Aggregation = iota
	AggSum
	AggCount
	AggMax
	AggMin
)

// String returns the wire name of the aggregation.
func (a Aggregation) String() string {
	switch a {
	case AggAvg:
		return "avg"
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggMax:
		return "max"
	case AggMin:
		return "min"
	default:
		return "unknown"
	}
}

// ParseAggregation parses a wire name into an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch s {
	case "avg":
		return AggAvg, nil
	case "sum":
		return AggSum, nil
	case "count":
		return AggCount, nil
	case "max":
		return AggMax, nil
	case "min":
		return AggMin, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", s)
	}
}

// Apply aggregates the values. An empty slice yields (0, false); a
// condition without data never fires.
func (a Aggregation) Apply(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch a {
	case AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), true
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, true
	case AggCount:
		return float64(len(values)), true
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	default:
		return 0, false
	}
}

// Condition is one threshold comparison over a trailing window of samples.
type Condition struct {
	Metric      Metric
	Operator    Operator
	Threshold   float64
	Window      time.Duration
	Aggregation Aggregation
}

// Rule groups conditions (logical AND) with a severity, cooldown, and
// notification channels. Rules are mutable at runtime via the engine.
type Rule struct {
	ID         string
	Name       string
	Enabled    bool
	Conditions []Condition
	Severity   Severity
	Cooldown   time.Duration
	Channels   []string
	Tags       map[string]string
}

// Validate checks the rule is well-formed.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q has no conditions", r.Name)
	}
	for i, c := range r.Conditions {
		if c.Window <= 0 {
			return fmt.Errorf("rule %q condition %d has non-positive window", r.Name, i)
		}
	}
	return nil
}
