package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mediacast/internal/pkg/config"
	"mediacast/internal/resilience"
	"mediacast/internal/resilience/errclass"
	"mediacast/internal/resilience/retry"
)

// activeCheck is a synthetic probe against a dependency's health endpoint.
// Checks run through the resilience client, so they exercise the same
// breakers and feed the same operation records as real pipeline traffic.
type activeCheck struct {
	dependency string
	url        string
	policy     retry.Policy
	timeout    time.Duration
}

// loadActiveChecks builds the check list from *_HEALTH_URL environment
// variables. A dependency without one is observed passively only.
func loadActiveChecks() []activeCheck {
	specs := []struct {
		dependency string
		envKey     string
		policy     retry.Policy
	}{
		{"extractor", "EXTRACTOR_HEALTH_URL", retry.APIPolicy()},
		{"summarizer", "SUMMARIZER_HEALTH_URL", retry.AIPolicy()},
		{"speech", "SPEECH_HEALTH_URL", retry.AIPolicy()},
		{"video-metadata", "VIDEO_META_HEALTH_URL", retry.APIPolicy()},
		{"cdn", "CDN_HEALTH_URL", retry.StoragePolicy()},
	}

	var checks []activeCheck
	for _, spec := range specs {
		url := config.LoadEnvString(spec.envKey, "")
		if url == "" {
			continue
		}
		checks = append(checks, activeCheck{
			dependency: spec.dependency,
			url:        url,
			policy:     spec.policy,
			timeout:    10 * time.Second,
		})
	}
	return checks
}

// startActiveChecks runs the synthetic probes on the monitor interval
// until the context is cancelled. Failures are expected and absorbed by
// the resilience stack; they surface through breaker state and records.
func startActiveChecks(ctx context.Context, logger *slog.Logger, client *resilience.Client, interval time.Duration) {
	checks := loadActiveChecks()
	if len(checks) == 0 {
		logger.Info("no active checks configured")
		return
	}
	logger.Info("active checks started", slog.Int("count", len(checks)))

	httpClient := &http.Client{Timeout: 10 * time.Second}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, check := range checks {
					runActiveCheck(ctx, logger, client, httpClient, check)
				}
			}
		}
	}()
}

func runActiveCheck(ctx context.Context, logger *slog.Logger, client *resilience.Client, httpClient *http.Client, check activeCheck) {
	_, err := client.Do(ctx, check.dependency, check.timeout, check.policy, func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, check.url, nil)
		if err != nil {
			return nil, fmt.Errorf("create check request: %w", err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 400 {
			return nil, &errclass.HTTPError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("health check against %s", check.url),
			}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		logger.Debug("active check failed",
			slog.String("dependency", check.dependency),
			slog.Any("error", err))
	}
}
