// Package observability provides production-grade observability infrastructure
// including structured logging and Prometheus metrics.
//
// This package centralizes observability concerns to enable:
//   - Structured logging with context propagation
//   - Prometheus metrics for resilience and health monitoring
//   - Per-dependency health visibility
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics for the resilience stack and monitor
//
// Example usage:
//
//	import (
//	    "mediacast/internal/observability/logging"
//	    "mediacast/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.DependencyHealth.WithLabelValues("extractor").Set(1)
//	}
package observability
