package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/api/service"
	"github.com/genjishimada/dispatch-core/internal/metrics"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// IdempotencyStore is the claim surface exposed to internal callers.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// JobStore reads and transitions tracked jobs.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJob(ctx context.Context, jobID string, status notifications.JobStatus, result json.RawMessage, errorCode, errorMsg *string) error
}

// EventStore covers the tray and delivery-ledger operations.
type EventStore interface {
	GetEvent(ctx context.Context, eventID int64) (*model.NotificationEvent, error)
	ListUserEvents(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]model.NotificationEvent, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkEventRead(ctx context.Context, eventID int64) error
	MarkAllEventsRead(ctx context.Context, userID int64) (int, error)
	DismissEvent(ctx context.Context, eventID int64) error
	RecordDeliveryResult(ctx context.Context, eventID int64, channel notifications.Channel, status notifications.DeliveryStatus, errorMessage *string) error
	FetchDeliveryResults(ctx context.Context, eventID int64) ([]model.DeliveryAttempt, error)
}

// Dispatcher ingests notification events.
type Dispatcher interface {
	Dispatch(ctx context.Context, req service.DispatchRequest) (*service.DispatchResult, error)
}

// PreferenceResolver answers and mutates per-user delivery preferences.
type PreferenceResolver interface {
	GetPreferences(ctx context.Context, userID int64) ([]service.ResolvedPreferences, error)
	UpdatePreference(ctx context.Context, userID int64, eventType notifications.EventType, channel notifications.Channel, enabled bool) error
	BulkUpdate(ctx context.Context, userID int64, updates []service.PreferenceUpdate) error
	ShouldDeliver(ctx context.Context, userID int64, eventType notifications.EventType, channel notifications.Channel) (bool, error)
	LegacyBitmask(ctx context.Context, userID int64) (int, error)
}

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Logger      *slog.Logger
	Idempotency IdempotencyStore
	Jobs        JobStore
	Events      EventStore
	Dispatcher  Dispatcher
	Resolver    PreferenceResolver
	Metrics     *metrics.Metrics
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
