package domain

import (
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// DeliveryTask pairs a parsed delivery message with the AMQP bookkeeping the
// pool needs to ack it.
type DeliveryTask struct {
	Message     notifications.DeliveryMessage
	MessageID   string
	DeliveryTag uint64
}
