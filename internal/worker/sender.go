package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// Sender delivers one notification on one channel. A nil return means the
// channel outcome is delivered.
type Sender interface {
	Deliver(ctx context.Context, channel notifications.Channel, msg notifications.DeliveryMessage) error
}

// DiscordSender delivers over Discord DMs and announcement pings. The actual
// bot call lives behind this type; the gateway client is injected via fn so
// tests can run without Discord.
type DiscordSender struct {
	logger *slog.Logger

	// send performs the gateway call. Defaults to the logging no-op until a
	// bot transport is wired in.
	send func(ctx context.Context, channel notifications.Channel, msg notifications.DeliveryMessage) error
}

func NewDiscordSender(logger *slog.Logger) *DiscordSender {
	return &DiscordSender{logger: logger}
}

func (s *DiscordSender) Deliver(ctx context.Context, channel notifications.Channel, msg notifications.DeliveryMessage) error {
	if !channel.IsDiscord() {
		return fmt.Errorf("channel %s is not deliverable over discord", channel)
	}

	if msg.UserID < notifications.DiscordUserIDLowerLimit {
		return fmt.Errorf("user id %d is not a discord snowflake", msg.UserID)
	}

	if s.send != nil {
		return s.send(ctx, channel, msg)
	}

	text := msg.Body
	if msg.DiscordMessage != nil && *msg.DiscordMessage != "" {
		text = *msg.DiscordMessage
	}

	s.logger.Info("Discord delivery",
		slog.String("channel", string(channel)),
		slog.Int64("user_id", msg.UserID),
		slog.Int64("event_id", msg.EventID),
		slog.String("title", msg.Title),
		slog.Int("text_len", len(text)),
	)

	return nil
}
