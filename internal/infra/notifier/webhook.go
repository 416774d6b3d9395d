package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"mediacast/internal/alerting"
)

// WebhookConfig contains configuration for webhook alert delivery.
type WebhookConfig struct {
	// Name is the channel name rules reference. Default: "webhook".
	Name string

	// URL is the incoming webhook URL (includes authentication token).
	URL string

	// Timeout is the HTTP request timeout for webhook calls.
	Timeout time.Duration
}

// WebhookSink delivers alerts to a Slack-compatible incoming webhook.
//
// The sink protects the webhook endpoint two ways: a token bucket rate
// limiter (1 req/s, burst of 3) smooths alert storms, and a circuit
// breaker stops hammering an endpoint that keeps failing. A breaker-open
// send fails fast and is recorded as a failed delivery by the engine.
type WebhookSink struct {
	config      WebhookConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// NewWebhookSink creates a webhook sink with the specified configuration.
func NewWebhookSink(config WebhookConfig, logger *slog.Logger) *WebhookSink {
	if config.Name == "" {
		config.Name = "webhook"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("webhook circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &WebhookSink{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(1.0, 3),
		breaker:     gobreaker.NewCircuitBreaker(settings),
		logger:      logger,
	}
}

// Name implements alerting.Sink.
func (w *WebhookSink) Name() string { return w.config.Name }

// webhookPayload is the JSON body posted to the webhook, using Block Kit.
type webhookPayload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	maxSectionTextLength = 3000
	maxFallbackLength    = 150

	truncationSuffix = "..."
)

// buildPayload creates a webhook payload from an alert.
//
// The payload includes:
//   - Text: fallback text for push notifications
//   - Section block: severity, dependency, and message
//   - Context block: source, rule name, and timestamp
func (w *WebhookSink) buildPayload(alert alerting.Alert) webhookPayload {
	fallbackText := fmt.Sprintf("[%s] %s: %s",
		strings.ToUpper(string(alert.Severity)), alert.Dependency, alert.Message)
	fallbackText = truncate(fallbackText, maxFallbackLength, truncationSuffix)

	sectionText := fmt.Sprintf("*[%s] %s*\n\n%s",
		strings.ToUpper(string(alert.Severity)), alert.Dependency, alert.Message)
	sectionText = truncate(sectionText, maxSectionTextLength, truncationSuffix)

	contextText := fmt.Sprintf("%s • %s", alert.Source, alert.Timestamp.Format(time.RFC3339))
	if alert.RuleName != "" {
		contextText = fmt.Sprintf("%s • %s • %s",
			alert.Source, alert.RuleName, alert.Timestamp.Format(time.RFC3339))
	}

	return webhookPayload{
		Text: fallbackText,
		Blocks: []block{
			{
				Type: "section",
				Text: &textObject{Type: "mrkdwn", Text: sectionText},
			},
			{
				Type: "context",
				Elements: []textObject{
					{Type: "mrkdwn", Text: contextText},
				},
			},
		},
	}
}

// sendRequest posts one webhook request.
//
// Error types:
//   - 429: rate limit error (retryable, carries retry_after)
//   - 4xx (non-429): client error (non-retryable)
//   - 5xx: server error (retryable)
//   - network error: retryable
func (w *WebhookSink) sendRequest(ctx context.Context, alert alerting.Alert) error {
	jsonData, err := json.Marshal(w.buildPayload(alert))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "webhook rate limit exceeded",
			RetryAfter: extractRetryAfter(resp),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook client error: %s", string(body)),
		}
	}

	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook server error: %s", string(body)),
		}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// extractRetryAfter reads the Retry-After header (in seconds), defaulting
// to 5 seconds when absent or unparseable.
func extractRetryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// Send implements alerting.Sink.
//
// Delivery strategy:
//   - Max attempts: 2
//   - 429 errors: wait retry_after then retry
//   - Server errors (5xx): linear backoff (2s, 4s)
//   - Client errors (4xx): no retry, fail immediately
//   - Circuit open: fail immediately
func (w *WebhookSink) Send(ctx context.Context, alert alerting.Alert) error {
	const (
		maxAttempts = 2
		baseDelay   = 2 * time.Second
	)

	if err := w.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := w.breaker.Execute(func() (interface{}, error) {
			return nil, w.sendRequest(ctx, alert)
		})
		if err == nil {
			w.logger.Info("webhook notification sent",
				slog.String("channel", w.config.Name),
				slog.String("alert_id", alert.ID),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return fmt.Errorf("webhook circuit open: %w", err)
		}

		if rateLimitErr, ok := is429Error(err); ok {
			w.logger.Warn("webhook rate limit hit, backing off",
				slog.String("channel", w.config.Name),
				slog.String("alert_id", alert.ID),
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			return err
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", maxAttempts, lastErr)
}
