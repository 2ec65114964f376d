package dto

import "encoding/json"

type NotificationCreateRequest struct {
	UserID         int64           `json:"user_id" binding:"required"`
	EventType      string          `json:"event_type" binding:"required"`
	Title          string          `json:"title" binding:"required"`
	Body           string          `json:"body" binding:"required"`
	DiscordMessage *string         `json:"discord_message,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type NotificationEventResponse struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	EventType   string          `json:"event_type"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   string          `json:"created_at"`
	ReadAt      *string         `json:"read_at"`
	DismissedAt *string         `json:"dismissed_at"`

	// JobID is present only on creation responses when a broker message was
	// published for this event; Duplicate marks a replayed idempotency key.
	JobID     *string `json:"job_id,omitempty"`
	Duplicate bool    `json:"duplicate,omitempty"`
}

type DeliveryResultRequest struct {
	Channel      string  `json:"channel" binding:"required"`
	Status       string  `json:"status" binding:"required"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type DeliveryAttemptResponse struct {
	Channel      string  `json:"channel"`
	Status       string  `json:"status"`
	AttemptedAt  string  `json:"attempted_at"`
	DeliveredAt  *string `json:"delivered_at"`
	ErrorMessage *string `json:"error_message"`
}

type PreferenceEntry struct {
	EventType string `json:"event_type" binding:"required"`
	Channel   string `json:"channel" binding:"required"`
	Enabled   bool   `json:"enabled"`
}

type PreferencesResponse struct {
	EventType string          `json:"event_type"`
	Channels  map[string]bool `json:"channels"`
}

type ShouldDeliverResponse struct {
	ShouldDeliver bool `json:"should_deliver"`
}

type LegacyBitmaskResponse struct {
	Bitmask int `json:"bitmask"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type MarkAllReadResponse struct {
	MarkedRead int `json:"marked_read"`
}
