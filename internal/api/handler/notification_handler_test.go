package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

type fakeEventStore struct {
	events   map[int64]*model.NotificationEvent
	attempts map[int64]map[notifications.Channel]model.DeliveryAttempt
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:   map[int64]*model.NotificationEvent{},
		attempts: map[int64]map[notifications.Channel]model.DeliveryAttempt{},
	}
}

func (f *fakeEventStore) GetEvent(ctx context.Context, eventID int64) (*model.NotificationEvent, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEventStore) ListUserEvents(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]model.NotificationEvent, error) {
	var out []model.NotificationEvent
	for _, event := range f.events {
		if event.UserID != userID || event.DismissedAt != nil {
			continue
		}
		if unreadOnly && event.ReadAt != nil {
			continue
		}
		out = append(out, *event)
	}
	return out, nil
}

func (f *fakeEventStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, event := range f.events {
		if event.UserID == userID && event.ReadAt == nil && event.DismissedAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventStore) MarkEventRead(ctx context.Context, eventID int64) error {
	event, ok := f.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	now := time.Now()
	event.ReadAt = &now
	return nil
}

func (f *fakeEventStore) MarkAllEventsRead(ctx context.Context, userID int64) (int, error) {
	marked := 0
	for _, event := range f.events {
		if event.UserID == userID && event.ReadAt == nil {
			now := time.Now()
			event.ReadAt = &now
			marked++
		}
	}
	return marked, nil
}

func (f *fakeEventStore) DismissEvent(ctx context.Context, eventID int64) error {
	event, ok := f.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	now := time.Now()
	event.DismissedAt = &now
	return nil
}

func (f *fakeEventStore) RecordDeliveryResult(ctx context.Context, eventID int64, channel notifications.Channel, status notifications.DeliveryStatus, errorMessage *string) error {
	if f.attempts[eventID] == nil {
		f.attempts[eventID] = map[notifications.Channel]model.DeliveryAttempt{}
	}
	attempt := model.DeliveryAttempt{
		EventID:      eventID,
		Channel:      string(channel),
		Status:       string(status),
		AttemptedAt:  time.Now(),
		ErrorMessage: errorMessage,
	}
	if status == notifications.DeliveryDelivered {
		now := time.Now()
		attempt.DeliveredAt = &now
	}
	f.attempts[eventID][channel] = attempt
	return nil
}

func (f *fakeEventStore) FetchDeliveryResults(ctx context.Context, eventID int64) ([]model.DeliveryAttempt, error) {
	var out []model.DeliveryAttempt
	for _, channel := range notifications.Channels {
		if attempt, ok := f.attempts[eventID][channel]; ok {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func notificationRouter(events EventStore) *gin.Engine {
	deps := testDependencies(nil, nil)
	deps.Events = events
	h := NewNotificationHandler(deps)

	r := gin.New()
	r.GET("/users/:user_id/unread-count", h.UnreadCount)
	r.PATCH("/users/:user_id/read-all", h.MarkAllRead)
	r.PATCH("/events/:event_id/read", h.MarkRead)
	r.PATCH("/events/:event_id/dismiss", h.Dismiss)
	r.POST("/events/:event_id/delivery-result", h.RecordDeliveryResult)
	r.GET("/events/:event_id/delivery-results", h.ListDeliveryResults)
	return r
}

func TestNotificationHandler_DeliveryResult(t *testing.T) {
	store := newFakeEventStore()
	store.events[7] = &model.NotificationEvent{ID: 7, UserID: 42, EventType: "lootbox_earned"}
	r := notificationRouter(store)

	t.Run("records and overwrites", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/events/7/delivery-result", gin.H{
			"channel":       "discord_dm",
			"status":        "failed",
			"error_message": "dm closed",
		})
		require.Equal(t, http.StatusNoContent, w.Code)

		// a later success overwrites the failed row
		w = performJSON(r, http.MethodPost, "/events/7/delivery-result", gin.H{
			"channel": "discord_dm",
			"status":  "delivered",
		})
		require.Equal(t, http.StatusNoContent, w.Code)

		attempt := store.attempts[7][notifications.ChannelDiscordDM]
		assert.Equal(t, "delivered", attempt.Status)
		assert.NotNil(t, attempt.DeliveredAt)
		assert.Nil(t, attempt.ErrorMessage)
	})

	t.Run("invalid channel", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/events/7/delivery-result", gin.H{
			"channel": "email",
			"status":  "delivered",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid status", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/events/7/delivery-result", gin.H{
			"channel": "discord_dm",
			"status":  "pending",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown event", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/events/999/delivery-result", gin.H{
			"channel": "discord_dm",
			"status":  "delivered",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list results", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/events/7/delivery-results", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "discord_dm")
		assert.Contains(t, w.Body.String(), "delivered")
	})
}

func TestNotificationHandler_TrayActions(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &model.NotificationEvent{ID: 1, UserID: 42}
	store.events[2] = &model.NotificationEvent{ID: 2, UserID: 42}
	store.events[3] = &model.NotificationEvent{ID: 3, UserID: 99}
	r := notificationRouter(store)

	t.Run("unread count scoped to user", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/users/42/unread-count", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count": 2}`, w.Body.String())
	})

	t.Run("mark one read", func(t *testing.T) {
		w := performJSON(r, http.MethodPatch, "/events/1/read", nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = performJSON(r, http.MethodGet, "/users/42/unread-count", nil)
		assert.JSONEq(t, `{"count": 1}`, w.Body.String())
	})

	t.Run("read-all reports how many changed", func(t *testing.T) {
		w := performJSON(r, http.MethodPatch, "/users/42/read-all", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"marked_read": 1}`, w.Body.String())
	})

	t.Run("dismiss removes from the tray", func(t *testing.T) {
		w := performJSON(r, http.MethodPatch, "/events/2/dismiss", nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.NotNil(t, store.events[2].DismissedAt)
	})

	t.Run("mark read on unknown event", func(t *testing.T) {
		w := performJSON(r, http.MethodPatch, "/events/999/read", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("dismiss unknown event", func(t *testing.T) {
		w := performJSON(r, http.MethodPatch, "/events/999/dismiss", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad user id", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/users/banana/unread-count", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
