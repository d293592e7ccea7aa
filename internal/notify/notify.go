// Package notify posts short job summaries to an operator chat.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/go-telegram/bot"

	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/internal/qa"
)

// maxMessageLength is Telegram's limit for one message, in characters.
const maxMessageLength = 4096

// Notifier delivers a text message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }

// Telegram sends messages to one Telegram chat.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// New returns a Telegram notifier when a bot token is configured and Nop
// otherwise.
func New(cfg config.TelegramConfig, logger *slog.Logger, opts ...bot.Option) (Notifier, error) {
	if cfg.Token == "" {
		return Nop{}, nil
	}
	return NewTelegram(cfg.Token, cfg.ChatID, logger, opts...)
}

// NewTelegram creates a Telegram notifier. The bot is not contacted until the
// first message.
func NewTelegram(token string, chatID int64, logger *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id cannot be zero")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chatID: chatID,
		logger: logger.With("component", "notifier"),
	}, nil
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if utf8.RuneCountInString(text) > maxMessageLength {
		text = qa.Truncate(text, maxMessageLength-3) + "..."
	}
	if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	}); err != nil {
		t.logger.WarnContext(ctx, "Failed to send notification", "chat_id", t.chatID, "error", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	t.logger.DebugContext(ctx, "Notification sent", "chat_id", t.chatID)
	return nil
}
