// Package metrics provides centralized Prometheus metrics for the application.
//
// This package declares all metrics for:
//   - Circuit breaker state, transitions, and rejections
//   - Retry, timeout, and fallback outcomes
//   - Health monitor passes and derived dependency health
//   - Alert firing and notification delivery
//
// All metrics are registered with the Prometheus default registry via
// promauto and exposed by the ops server's /metrics endpoint.
//
// Example usage:
//
//	import "mediacast/internal/observability/metrics"
//
//	metrics.TimeoutsTotal.WithLabelValues("summarizer").Inc()
package metrics
