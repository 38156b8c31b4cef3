// Package discord forwards reminder alerts to a Discord channel.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/alert"
	apperrors "github.com/AAs6395/medremind/internal/errors"
)

// Config holds Discord channel configuration.
type Config struct {
	Token     string
	ChannelID string
	Enabled   bool
}

// Channel posts alert messages to one Discord channel.
type Channel struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// New opens a Discord session. Returns ErrChannelNotConfigured when the
// channel is disabled or missing settings.
func New(cfg Config, logger *zap.Logger) (*Channel, error) {
	if !cfg.Enabled || cfg.Token == "" || cfg.ChannelID == "" {
		return nil, apperrors.ErrChannelNotConfigured
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrChannelUnavailable.Code, "failed to create discord session")
	}

	if err := session.Open(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrChannelUnavailable.Code, "failed to open discord connection")
	}

	logger.Info("Discord channel ready", zap.String("username", session.State.User.Username))

	return &Channel{
		session:   session,
		channelID: cfg.ChannelID,
		logger:    logger,
	}, nil
}

func (c *Channel) Name() string {
	return "discord"
}

func (c *Channel) Send(ctx context.Context, ev alert.Event) error {
	text := ev.Text()
	if len(text) > 2000 {
		// Discord caps messages at 2000 characters.
		text = text[:1997] + "..."
	}

	if _, err := c.session.ChannelMessageSend(c.channelID, text); err != nil {
		return apperrors.Wrap(err, apperrors.ErrChannelUnavailable.Code, "discord send failed")
	}
	return nil
}

func (c *Channel) Close() error {
	return c.session.Close()
}
