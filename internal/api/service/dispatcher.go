package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/metrics"
	"github.com/genjishimada/dispatch-core/internal/notifications"
	"github.com/genjishimada/dispatch-core/shared/rabbitmq"
)

// Claimer gates duplicate ingestion on an idempotency key.
type Claimer interface {
	ClaimIdempotencyKey(ctx context.Context, key string) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// EventStore persists notification events.
type EventStore interface {
	InsertEvent(ctx context.Context, userID int64, eventType notifications.EventType, title, body string, discordMessage *string, metadata json.RawMessage) (int64, error)
	GetEvent(ctx context.Context, eventID int64) (*model.NotificationEvent, error)
}

// JobStore tracks the async delivery jobs spawned by dispatch.
type JobStore interface {
	CreateJob(ctx context.Context, action string) (string, error)
	UpdateJob(ctx context.Context, jobID string, status notifications.JobStatus, result json.RawMessage, errorCode, errorMsg *string) error
}

// Publisher hands delivery messages to the broker.
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, attrs rabbitmq.Attributes) error
}

// ChannelResolver decides which channels an event reaches a user on.
type ChannelResolver interface {
	EnabledChannels(ctx context.Context, userID int64, eventType notifications.EventType) ([]notifications.Channel, error)
}

// DispatchRequest is one incoming notification to ingest and fan out.
type DispatchRequest struct {
	IdempotencyKey string
	UserID         int64
	EventType      notifications.EventType
	Title          string
	Body           string
	DiscordMessage *string
	Metadata       json.RawMessage
}

// DispatchResult reports what dispatch did. When Duplicate is true nothing
// was persisted and the other fields are zero.
type DispatchResult struct {
	Duplicate bool
	Event     *model.NotificationEvent
	JobID     string
}

// Dispatcher is the ingestion facade: claim the idempotency key, persist the
// event, resolve channels and, when any Discord-bound channel is enabled,
// create a job and publish the delivery message.
type Dispatcher struct {
	claimer   Claimer
	events    EventStore
	jobs      JobStore
	publisher Publisher
	resolver  ChannelResolver
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewDispatcher(
	claimer Claimer,
	events EventStore,
	jobs JobStore,
	publisher Publisher,
	resolver ChannelResolver,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		claimer:   claimer,
		events:    events,
		jobs:      jobs,
		publisher: publisher,
		resolver:  resolver,
		metrics:   m,
		logger:    logger,
	}
}

var publishErrorCode = "publish_error"

// Dispatch ingests one notification event.
//
// A request without an idempotency key gets a generated one and always
// claims. A lost claim returns Duplicate without touching storage. A broker
// failure after the event row exists keeps the claim: releasing it would let
// a retry of the same key insert a second event. The caller compensates by
// releasing the key explicitly once the first event is cleaned up.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if !req.EventType.Valid() {
		return nil, domain.ErrInvalidEventType
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	claimed, err := d.claimer.ClaimIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		d.metrics.DispatchTotal.WithLabelValues(string(req.EventType), "duplicate").Inc()
		d.logger.Info("duplicate dispatch suppressed",
			slog.String("idempotency_key", key),
			slog.String("event_type", string(req.EventType)),
		)
		return &DispatchResult{Duplicate: true}, nil
	}

	eventID, err := d.events.InsertEvent(ctx, req.UserID, req.EventType, req.Title, req.Body, req.DiscordMessage, req.Metadata)
	if err != nil {
		// Nothing persisted beyond the claim, so retrying with the same
		// key must be allowed.
		if relErr := d.claimer.ReleaseIdempotencyKey(ctx, key); relErr != nil {
			d.logger.Error("failed to release claim after insert failure",
				slog.String("idempotency_key", key),
				slog.String("error", relErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to persist notification event: %w", err)
	}

	event, err := d.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification event: %w", err)
	}

	channels, err := d.resolver.EnabledChannels(ctx, req.UserID, req.EventType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channels: %w", err)
	}

	discordChannels := make([]notifications.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel.IsDiscord() {
			discordChannels = append(discordChannels, channel)
		}
	}

	if len(discordChannels) == 0 || req.UserID < notifications.DiscordUserIDLowerLimit {
		d.metrics.DispatchTotal.WithLabelValues(string(req.EventType), "claimed").Inc()
		d.logger.Info("notification stored without delivery job",
			slog.Int64("event_id", eventID),
			slog.String("event_type", string(req.EventType)),
			slog.Int("discord_channels", len(discordChannels)),
		)
		return &DispatchResult{Event: event}, nil
	}

	jobID, err := d.jobs.CreateJob(ctx, notifications.RoutingKeyDelivery)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery job: %w", err)
	}

	msg := notifications.DeliveryMessage{
		EventID:        eventID,
		JobID:          jobID,
		UserID:         req.UserID,
		EventType:      req.EventType,
		Title:          req.Title,
		Body:           req.Body,
		DiscordMessage: req.DiscordMessage,
		Metadata:       req.Metadata,
		Channels:       discordChannels,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode delivery message: %w", err)
	}

	attrs := rabbitmq.Attributes{
		MessageID:     key,
		CorrelationID: jobID,
	}

	if err := d.publisher.PublishWithRetry(ctx, notifications.RoutingKeyDelivery, body, attrs); err != nil {
		errMsg := err.Error()
		if updErr := d.jobs.UpdateJob(ctx, jobID, notifications.JobFailed, nil, &publishErrorCode, &errMsg); updErr != nil {
			d.logger.Error("failed to mark job failed after publish error",
				slog.String("job_id", jobID),
				slog.String("error", updErr.Error()),
			)
		}
		d.metrics.DispatchTotal.WithLabelValues(string(req.EventType), "publish_error").Inc()
		d.logger.Error("delivery message publish failed",
			slog.Int64("event_id", eventID),
			slog.String("job_id", jobID),
			slog.String("error", errMsg),
		)
		return nil, fmt.Errorf("failed to publish delivery message: %w", err)
	}

	d.metrics.DispatchTotal.WithLabelValues(string(req.EventType), "claimed").Inc()
	d.logger.Info("notification dispatched",
		slog.Int64("event_id", eventID),
		slog.String("job_id", jobID),
		slog.String("event_type", string(req.EventType)),
		slog.Int("channels", len(discordChannels)),
	)

	return &DispatchResult{Event: event, JobID: jobID}, nil
}
