package model

import (
	"encoding/json"
	"time"
)

// Job is a tracked unit of asynchronous work dispatched over the broker.
// error_code/error_msg are non-null only in the failed and timeout states.
type Job struct {
	ID         string          `db:"id"`
	Action     string          `db:"action"`
	Status     string          `db:"status"`
	Result     json.RawMessage `db:"result"`
	ErrorCode  *string         `db:"error_code"`
	ErrorMsg   *string         `db:"error_msg"`
	Attempts   int             `db:"attempts"`
	CreatedAt  time.Time       `db:"created_at"`
	StartedAt  *time.Time      `db:"started_at"`
	FinishedAt *time.Time      `db:"finished_at"`
}

// NotificationEvent is a stored notification. read_at and dismissed_at are
// set by the recipient's own tray actions and are independent of delivery.
type NotificationEvent struct {
	ID             int64           `db:"id"`
	UserID         int64           `db:"user_id"`
	EventType      string          `db:"event_type"`
	Title          string          `db:"title"`
	Body           string          `db:"body"`
	DiscordMessage *string         `db:"discord_message"`
	Metadata       json.RawMessage `db:"metadata"`
	CreatedAt      time.Time       `db:"created_at"`
	ReadAt         *time.Time      `db:"read_at"`
	DismissedAt    *time.Time      `db:"dismissed_at"`
}

// DeliveryAttempt is the recorded outcome of the latest delivery attempt for
// one (event, channel) pair. Re-attempts overwrite, never append.
type DeliveryAttempt struct {
	EventID      int64      `db:"event_id"`
	Channel      string     `db:"channel"`
	Status       string     `db:"status"`
	AttemptedAt  time.Time  `db:"attempted_at"`
	DeliveredAt  *time.Time `db:"delivered_at"`
	ErrorMessage *string    `db:"error_message"`
}

// NotificationPreference is one explicit per-user channel choice. Absence of
// a row means "use the event type's default channel set".
type NotificationPreference struct {
	UserID    int64  `db:"user_id"`
	EventType string `db:"event_type"`
	Channel   string `db:"channel"`
	Enabled   bool   `db:"enabled"`
}
