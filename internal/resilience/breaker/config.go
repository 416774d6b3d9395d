package breaker

import "time"

// Config holds the configuration for a circuit breaker.
type Config struct {
	// FailureThreshold is the number of failures inside the monitoring
	// window required to trip the circuit.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit again.
	SuccessThreshold int

	// OpenDuration is how long the circuit stays open before allowing
	// a half-open probe.
	OpenDuration time.Duration

	// MonitoringWindow is the sliding window over which failures are
	// counted. Failures older than the window are pruned.
	MonitoringWindow time.Duration

	// MinRequests is the minimum number of requests before the failure
	// threshold is evaluated.
	MinRequests int
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		OpenDuration:     60 * time.Second,
		MonitoringWindow: 120 * time.Second,
		MinRequests:      10,
	}
}

// APIConfig returns configuration optimized for third-party HTTP API calls
// (content extraction, video metadata, CDN management).
func APIConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		OpenDuration:     60 * time.Second,
		MonitoringWindow: 120 * time.Second,
		MinRequests:      10,
	}
}

// DatabaseConfig returns configuration optimized for database operations.
// Fast recovery because transient connection errors clear quickly.
func DatabaseConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenDuration:     10 * time.Second,
		MonitoringWindow: 60 * time.Second,
		MinRequests:      5,
	}
}

// StorageConfig returns configuration optimized for blob/CDN storage calls.
func StorageConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		OpenDuration:     30 * time.Second,
		MonitoringWindow: 120 * time.Second,
		MinRequests:      8,
	}
}

// AIConfig returns configuration optimized for language-model and
// text-to-speech API calls. Conservative reopen because these providers
// rate limit aggressively and calls are expensive.
func AIConfig() Config {
	return Config{
		FailureThreshold: 4,
		SuccessThreshold: 3,
		OpenDuration:     120 * time.Second,
		MonitoringWindow: 300 * time.Second,
		MinRequests:      5,
	}
}

// withDefaults fills zero-valued fields with the defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.OpenDuration <= 0 {
		c.OpenDuration = def.OpenDuration
	}
	if c.MonitoringWindow <= 0 {
		c.MonitoringWindow = def.MonitoringWindow
	}
	if c.MinRequests <= 0 {
		c.MinRequests = def.MinRequests
	}
	return c
}
