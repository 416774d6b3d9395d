// Command monitor runs the resilience and health monitoring process: it
// watches every external dependency of the content-processing pipeline,
// evaluates alert rules, and serves operational probes and metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"mediacast/internal/alerting"
	"mediacast/internal/infra/notifier"
	"mediacast/internal/infra/opsserver"
	"mediacast/internal/monitor"
	"mediacast/internal/observability/logging"
	pkgconfig "mediacast/internal/pkg/config"
	"mediacast/internal/resilience"
	"mediacast/internal/resilience/breaker"
	"mediacast/internal/resilience/fallback"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg := loadConfig(logger)
	logger.Info("monitor configuration loaded",
		slog.Int("ops_port", cfg.OpsPort),
		slog.Duration("monitor_interval", cfg.MonitorInterval),
		slog.Duration("alert_interval", cfg.AlertInterval),
		slog.Duration("metric_window", cfg.MetricWindow),
		slog.Duration("sample_retention", cfg.SampleRetention),
		slog.String("prune_schedule", cfg.PruneSchedule))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared per-operation record store: the resilience client writes to
	// it, the monitor and alert engine read from it.
	records := alerting.NewRecordStore()

	registry := breaker.NewRegistry(nil)
	dispatcher, cache := setupFallbacks(logger)

	client := resilience.NewClient(resilience.ClientConfig{
		Breakers:  registry,
		Fallbacks: dispatcher,
		Recorder:  records,
		Cache:     cache,
	})

	mon := monitor.New(monitor.Config{
		Interval:  cfg.MonitorInterval,
		Window:    cfg.MetricWindow,
		Retention: cfg.SampleRetention,
		Logger:    logger,
	}, registry, dispatcher, records)
	registerDependencies(mon)

	engine := alerting.NewEngine(alerting.EngineConfig{
		Provider: records,
		Sinks:    setupSinks(logger, cfg),
		Interval: cfg.AlertInterval,
		BreakerState: func(dependency string) (float64, bool) {
			b := registry.Get(dependency)
			if b == nil {
				return 0, false
			}
			return float64(b.State()), true
		},
		ExtraDependencies: registry.Names,
		Logger:            logger,
	})

	var ruleWatcher *alerting.RuleWatcher
	if cfg.RulesFile != "" {
		watcher, err := alerting.NewRuleWatcher(cfg.RulesFile, engine, logger)
		if err != nil {
			logger.Error("failed to load alert rules file", slog.Any("error", err))
			os.Exit(1)
		}
		if err := watcher.Start(); err != nil {
			logger.Error("failed to watch alert rules file", slog.Any("error", err))
			os.Exit(1)
		}
		ruleWatcher = watcher
	}

	mon.Start(ctx)
	engine.Start(ctx)
	startActiveChecks(ctx, logger, client, cfg.MonitorInterval)

	pruner := startPruneJob(logger, cfg, mon, records)

	ops := opsserver.New(fmt.Sprintf(":%d", cfg.OpsPort), mon, logger)
	go func() {
		if err := ops.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", slog.Any("error", err))
		}
	}()
	ops.SetReady(true)
	logger.Info("monitor process started")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	ops.SetReady(false)
	if pruner != nil {
		prunerCtx := pruner.Stop()
		<-prunerCtx.Done()
	}
	if ruleWatcher != nil {
		ruleWatcher.Stop()
	}
	engine.Stop()
	mon.Stop()
	logger.Info("monitor process stopped")
}

// setupFallbacks registers the per-dependency fallback strategies and
// returns the dispatcher plus the shared result cache.
func setupFallbacks(logger *slog.Logger) (*fallback.Dispatcher, *fallback.CachedResult) {
	dispatcher := fallback.NewDispatcher()

	cache, err := fallback.NewCachedResult(256)
	if err != nil {
		logger.Error("failed to create fallback cache", slog.Any("error", err))
		os.Exit(1)
	}

	// Extraction and video metadata can serve a stale result.
	dispatcher.Register("extractor", cache, fallback.NewUnavailable())
	dispatcher.Register("video-metadata", cache, fallback.NewUnavailable())

	// A missing summary is acceptable; publish without one.
	dispatcher.Register("summarizer", fallback.NewStaticResult(""), fallback.NewUnavailable())

	// Speech synthesis flips the pipeline into text-only mode.
	var textOnly atomic.Bool
	dispatcher.Register("speech", fallback.NewDegradedMode(&textOnly, nil), fallback.NewUnavailable())

	// CDN failures surface directly: content stays on origin.
	dispatcher.Register("cdn", fallback.NewUnavailable())

	return dispatcher, cache
}

// registerDependencies puts every external service of the pipeline on the
// monitor's watch list with its configuration probe.
func registerDependencies(mon *monitor.Monitor) {
	mon.RegisterDependency("extractor", pkgconfig.ExtractorProbe())
	mon.RegisterDependency("summarizer", pkgconfig.SummarizerProbe())
	mon.RegisterDependency("speech", pkgconfig.SpeechProbe())
	mon.RegisterDependency("video-metadata", pkgconfig.VideoMetaProbe())
	mon.RegisterDependency("cdn", pkgconfig.CDNProbe())
}

// setupSinks builds the notification channels. Console is always present;
// disabled channels get a no-op sink so rules referencing them still
// resolve instead of failing delivery.
func setupSinks(logger *slog.Logger, cfg appConfig) []alerting.Sink {
	sinks := []alerting.Sink{notifier.NewConsoleSink(logger)}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, notifier.NewWebhookSink(notifier.WebhookConfig{
			URL: cfg.WebhookURL,
		}, logger))
		logger.Info("webhook channel initialized")
	} else {
		sinks = append(sinks, notifier.NewNoOpSink("webhook"))
		logger.Info("webhook channel disabled")
	}

	telegram := alerting.Sink(notifier.NewNoOpSink("telegram"))
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		sink, err := notifier.NewTelegramSink(notifier.TelegramConfig{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize telegram channel", slog.Any("error", err))
		} else {
			telegram = sink
			logger.Info("telegram channel initialized")
		}
	} else {
		logger.Info("telegram channel disabled")
	}
	sinks = append(sinks, telegram)

	return sinks
}

// startPruneJob schedules retention pruning of metric samples and
// operation records on a cron schedule.
func startPruneJob(logger *slog.Logger, cfg appConfig, mon *monitor.Monitor, records *alerting.RecordStore) *cron.Cron {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.PruneSchedule, func() {
		samples := mon.PruneSamples()
		dropped := records.Prune(time.Now().Add(-cfg.SampleRetention))
		logger.Info("retention pruning completed",
			slog.Int("samples", samples),
			slog.Int("records", dropped))
	})
	if err != nil {
		logger.Error("failed to schedule prune job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	logger.Info("prune job scheduled", slog.String("schedule", cfg.PruneSchedule))
	return c
}
