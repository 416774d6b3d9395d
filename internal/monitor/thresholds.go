package monitor

import "time"

// Thresholds is the flat table the monitor compares each sample against.
// A breach raises an alert directly, independent of the rule engine.
type Thresholds struct {
	// MaxResponseTime is the highest acceptable average response time.
	MaxResponseTime time.Duration

	// MaxErrorRate is the highest acceptable error rate (0..1).
	MaxErrorRate float64

	// MinSuccessRate is the lowest acceptable success rate (0..1).
	MinSuccessRate float64

	// MaxResourceBytes is the highest acceptable process resource usage.
	// Zero disables the check.
	MaxResourceBytes float64
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxResponseTime:  5 * time.Second,
		MaxErrorRate:     0.25,
		MinSuccessRate:   0.75,
		MaxResourceBytes: 1.5 * (1 << 30), // 1.5 GiB
	}
}
