// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Dependency tagging for resilience and monitor log lines
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "mediacast/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func callDependency(logger *slog.Logger) {
//	    depLogger := logging.WithDependency(logger, "extractor")
//	    depLogger.Info("calling extraction service")
//	}
package logging
