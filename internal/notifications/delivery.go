package notifications

import "encoding/json"

// DeliveryStatus is the outcome of one delivery attempt on one channel.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliverySkipped   DeliveryStatus = "skipped"
)

// Valid reports whether s is a recognized delivery status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryDelivered, DeliveryFailed, DeliverySkipped:
		return true
	}
	return false
}

// RoutingKeyDelivery is the routing key for notification delivery messages.
const RoutingKeyDelivery = "api.notification.delivery"

// DeliveryMessage is the broker message published when a notification needs
// out-of-process delivery. The idempotency key claimed by the producer rides
// in the AMQP message-id attribute, not in the body; the consumer dedupes
// redeliveries on it.
type DeliveryMessage struct {
	EventID        int64           `json:"event_id"`
	JobID          string          `json:"job_id"`
	UserID         int64           `json:"user_id"`
	EventType      EventType       `json:"event_type"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	DiscordMessage *string         `json:"discord_message,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Channels       []Channel       `json:"channels_to_deliver"`
}
