package notifier

import (
	"context"
	"log/slog"

	"mediacast/internal/alerting"
)

// ConsoleSink writes alerts to the structured log. It never fails and is
// the default channel for seeded rules.
type ConsoleSink struct {
	logger *slog.Logger
}

// NewConsoleSink creates a console sink. A nil logger uses slog.Default().
func NewConsoleSink(logger *slog.Logger) *ConsoleSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSink{logger: logger}
}

// Name implements alerting.Sink.
func (c *ConsoleSink) Name() string { return "console" }

// Send implements alerting.Sink.
func (c *ConsoleSink) Send(_ context.Context, alert alerting.Alert) error {
	level := slog.LevelWarn
	if alert.Severity == alerting.SeverityCritical {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "ALERT",
		slog.String("alert_id", alert.ID),
		slog.String("source", string(alert.Source)),
		slog.String("rule", alert.RuleName),
		slog.String("dependency", alert.Dependency),
		slog.String("severity", string(alert.Severity)),
		slog.String("message", alert.Message),
		slog.Time("timestamp", alert.Timestamp))
	return nil
}
