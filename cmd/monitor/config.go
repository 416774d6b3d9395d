package main

import (
	"log/slog"
	"strconv"
	"time"

	"mediacast/internal/pkg/config"
)

// appConfig holds the monitor process configuration loaded from the
// environment. Invalid values fall back to defaults with a warning rather
// than aborting startup.
type appConfig struct {
	OpsPort         int
	MonitorInterval time.Duration
	AlertInterval   time.Duration
	MetricWindow    time.Duration
	SampleRetention time.Duration
	PruneSchedule   string
	Timezone        string

	RulesFile string

	WebhookURL     string
	TelegramToken  string
	TelegramChatID int64
}

// configMetrics tracks configuration fallbacks for this process.
var configMetrics = config.NewMetrics("monitor")

const (
	defaultOpsPort         = 9091
	defaultMonitorInterval = 30 * time.Second
	defaultAlertInterval   = time.Minute
	defaultMetricWindow    = 5 * time.Minute
	defaultSampleRetention = 24 * time.Hour
	defaultPruneSchedule   = "0 * * * *" // hourly
	defaultTimezone        = "UTC"
)

// loadConfig reads configuration from environment variables, logging a
// warning for every value that fell back to its default.
func loadConfig(logger *slog.Logger) appConfig {
	cfg := appConfig{
		RulesFile:     config.LoadEnvString("ALERT_RULES_PATH", ""),
		WebhookURL:    config.LoadEnvString("ALERT_WEBHOOK_URL", ""),
		TelegramToken: config.LoadEnvString("TELEGRAM_BOT_TOKEN", ""),
	}

	if raw := config.LoadEnvString("TELEGRAM_CHAT_ID", ""); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Warn("invalid TELEGRAM_CHAT_ID, telegram channel disabled",
				slog.String("value", raw), slog.Any("error", err))
		} else {
			cfg.TelegramChatID = chatID
		}
	}

	var anyFallback bool

	portResult := config.LoadEnvInt("OPS_PORT", defaultOpsPort, func(v int) error {
		return config.ValidateIntRange(v, 1, 65535)
	})
	anyFallback = applyResult(logger, "ops_port", portResult) || anyFallback
	cfg.OpsPort = portResult.Value.(int)

	monitorResult := config.LoadEnvDuration("MONITOR_INTERVAL", defaultMonitorInterval, config.ValidatePositiveDuration)
	anyFallback = applyResult(logger, "monitor_interval", monitorResult) || anyFallback
	cfg.MonitorInterval = monitorResult.Value.(time.Duration)

	alertResult := config.LoadEnvDuration("ALERT_INTERVAL", defaultAlertInterval, config.ValidatePositiveDuration)
	anyFallback = applyResult(logger, "alert_interval", alertResult) || anyFallback
	cfg.AlertInterval = alertResult.Value.(time.Duration)

	windowResult := config.LoadEnvDuration("METRIC_WINDOW", defaultMetricWindow, config.ValidatePositiveDuration)
	anyFallback = applyResult(logger, "metric_window", windowResult) || anyFallback
	cfg.MetricWindow = windowResult.Value.(time.Duration)

	retentionResult := config.LoadEnvDuration("SAMPLE_RETENTION", defaultSampleRetention, config.ValidatePositiveDuration)
	anyFallback = applyResult(logger, "sample_retention", retentionResult) || anyFallback
	cfg.SampleRetention = retentionResult.Value.(time.Duration)

	scheduleResult := config.LoadEnvWithFallback("PRUNE_SCHEDULE", defaultPruneSchedule, config.ValidateCronSchedule)
	anyFallback = applyResult(logger, "prune_schedule", scheduleResult) || anyFallback
	cfg.PruneSchedule = scheduleResult.Value.(string)

	timezoneResult := config.LoadEnvWithFallback("TIMEZONE", defaultTimezone, config.ValidateTimezone)
	anyFallback = applyResult(logger, "timezone", timezoneResult) || anyFallback
	cfg.Timezone = timezoneResult.Value.(string)

	configMetrics.RecordLoadTimestamp()
	configMetrics.SetFallbackActive(anyFallback)
	return cfg
}

// applyResult logs a field's fallback warnings and feeds the config
// metrics. It reports whether the field fell back so loadConfig can raise
// the aggregate gauge.
func applyResult(logger *slog.Logger, field string, result config.LoadResult) bool {
	for _, warning := range result.Warnings {
		logger.Warn("configuration fallback", slog.String("warning", warning))
	}
	if result.FallbackApplied {
		configMetrics.RecordValidationError(field)
		configMetrics.RecordFallback(field)
	}
	return result.FallbackApplied
}
