package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"mediacast/internal/alerting"
)

// TelegramConfig contains configuration for Telegram alert delivery.
type TelegramConfig struct {
	// Token is the bot API token.
	Token string

	// ChatID is the chat the bot posts alerts to.
	ChatID int64
}

// TelegramSink delivers alerts to a Telegram chat. The bot is send-only;
// no poller runs and incoming updates are ignored.
type TelegramSink struct {
	bot         *tele.Bot
	chat        *tele.Chat
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewTelegramSink creates a Telegram sink and verifies the token against
// the Bot API.
func NewTelegramSink(config TelegramConfig, logger *slog.Logger) (*TelegramSink, error) {
	if config.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if config.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token: config.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramSink{
		bot:  bot,
		chat: &tele.Chat{ID: config.ChatID},
		// Bot API allows ~1 msg/s per chat
		rateLimiter: NewRateLimiter(1.0, 1),
		logger:      logger,
	}, nil
}

// Name implements alerting.Sink.
func (t *TelegramSink) Name() string { return "telegram" }

// telegramTextLimit is the Bot API message length cap.
const telegramTextLimit = 4096

// Send implements alerting.Sink.
func (t *TelegramSink) Send(ctx context.Context, alert alerting.Alert) error {
	if err := t.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	text := t.formatAlert(alert)
	if _, err := t.bot.Send(t.chat, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown}); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	t.logger.Info("telegram notification sent",
		slog.String("alert_id", alert.ID),
		slog.Int64("chat_id", t.chat.ID))
	return nil
}

func (t *TelegramSink) formatAlert(alert alerting.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*[%s] %s*\n", strings.ToUpper(string(alert.Severity)), alert.Dependency)
	fmt.Fprintf(&b, "%s\n", alert.Message)
	if alert.RuleName != "" {
		fmt.Fprintf(&b, "Rule: %s\n", alert.RuleName)
	}
	fmt.Fprintf(&b, "Source: %s • %s", alert.Source, alert.Timestamp.Format(time.RFC3339))
	return truncate(b.String(), telegramTextLimit, truncationSuffix)
}
