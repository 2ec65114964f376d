package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/genjishimada/dispatch-core/internal/notifications"
	"github.com/genjishimada/dispatch-core/internal/worker/domain"
)

// setupConsumer sets up RabbitMQ consumer with QoS and returns delivery channel
func (w *Worker) setupConsumer(ctx context.Context) (<-chan amqp.Delivery, error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// prefetch_count bounds unacked messages per consumer; size 0 means no
	// byte limit, global false scopes it per-consumer
	err := channel.Qos(
		w.prefetchCount,
		0,
		false,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches tasks to the worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			task, err := parseDelivery(delivery)
			if err != nil {
				w.logger.Error("Rejecting malformed delivery message",
					slog.String("error", err.Error()),
					slog.String("message_id", delivery.MessageId),
				)
				// NACK without requeue - malformed messages go to the DLQ
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.tasksChan <- task:
				w.logger.Debug("Task dispatched to worker pool",
					slog.String("job_id", task.Message.JobID),
					slog.Uint64("delivery_tag", task.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching task")
				// NACK with requeue so another consumer picks it up
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}

// parseDelivery validates the message body and attributes. The idempotency
// key rides in the AMQP message-id, the job id in the body and the
// correlation-id; the body copy is authoritative.
func parseDelivery(delivery amqp.Delivery) (*domain.DeliveryTask, error) {
	var msg notifications.DeliveryMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message JSON: %w", err)
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return nil, fmt.Errorf("job_id %q is not a UUID: %w", msg.JobID, err)
	}

	if delivery.MessageId == "" {
		return nil, fmt.Errorf("message is missing the message-id attribute")
	}

	if msg.EventID <= 0 {
		return nil, fmt.Errorf("event_id %d is not a valid event id", msg.EventID)
	}

	if len(msg.Channels) == 0 {
		return nil, fmt.Errorf("message has no channels to deliver")
	}

	for _, channel := range msg.Channels {
		if !channel.Valid() {
			return nil, fmt.Errorf("unknown channel %q", channel)
		}
	}

	return &domain.DeliveryTask{
		Message:     msg,
		MessageID:   delivery.MessageId,
		DeliveryTag: delivery.DeliveryTag,
	}, nil
}
