package main

import (
	"io"
	"log/slog"
	"testing"

	"mediacast/internal/infra/notifier"
)

func TestSetupSinksDisabledChannelsGetNoOpSinks(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	sinks := setupSinks(logger, appConfig{})
	names := make(map[string]bool, len(sinks))
	for _, s := range sinks {
		names[s.Name()] = true
	}
	for _, want := range []string{"console", "webhook", "telegram"} {
		if !names[want] {
			t.Errorf("setupSinks() missing channel %q", want)
		}
	}

	// Unconfigured channels resolve to no-op sinks, not live senders.
	for _, s := range sinks {
		switch s.Name() {
		case "webhook", "telegram":
			if _, ok := s.(*notifier.NoOpSink); !ok {
				t.Errorf("channel %q = %T, want *notifier.NoOpSink", s.Name(), s)
			}
		}
	}
}

func TestSetupSinksConfiguredWebhook(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	sinks := setupSinks(logger, appConfig{WebhookURL: "https://hooks.example.com/x"})
	for _, s := range sinks {
		if s.Name() == "webhook" {
			if _, ok := s.(*notifier.WebhookSink); !ok {
				t.Errorf("webhook channel = %T, want *notifier.WebhookSink", s)
			}
			return
		}
	}
	t.Error("setupSinks() missing webhook channel")
}
