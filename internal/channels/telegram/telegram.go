// Package telegram forwards reminder alerts to a Telegram chat.
package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/alert"
	apperrors "github.com/AAs6395/medremind/internal/errors"
)

// Config holds Telegram channel configuration.
type Config struct {
	Token   string
	ChatID  int64
	Enabled bool
}

// Channel posts alert messages to one chat through a bot account.
type Channel struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// New authenticates against the bot API. Returns ErrChannelNotConfigured
// when the channel is disabled or missing settings.
func New(cfg Config, logger *zap.Logger) (*Channel, error) {
	if !cfg.Enabled || cfg.Token == "" || cfg.ChatID == 0 {
		return nil, apperrors.ErrChannelNotConfigured
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrChannelUnavailable.Code, "failed to reach telegram")
	}
	api.Debug = false

	logger.Info("Telegram channel ready", zap.String("username", api.Self.UserName))

	return &Channel{
		api:    api,
		chatID: cfg.ChatID,
		logger: logger,
	}, nil
}

func (c *Channel) Name() string {
	return "telegram"
}

// Send posts the alert text. Markdown is attempted first and retried as
// plain text when a reminder title breaks the parser.
func (c *Channel) Send(ctx context.Context, ev alert.Event) error {
	msg := tgbotapi.NewMessage(c.chatID, ev.Text())
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := c.api.Send(msg); err != nil {
		msg.ParseMode = ""
		if _, err := c.api.Send(msg); err != nil {
			return apperrors.Wrap(err, apperrors.ErrChannelUnavailable.Code, "telegram send failed")
		}
	}
	return nil
}
