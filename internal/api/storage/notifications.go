package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// InsertEvent stores a notification event and returns its generated id.
func (s *Storage) InsertEvent(
	ctx context.Context,
	userID int64,
	eventType notifications.EventType,
	title string,
	body string,
	discordMessage *string,
	metadata json.RawMessage,
) (int64, error) {
	query := `
		INSERT INTO notification_events (user_id, event_type, title, body, discord_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id
	`

	var eventID int64
	err := s.db.QueryRowContext(ctx, query, userID, eventType, title, body, discordMessage, metadata).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification event: %w", err)
	}

	return eventID, nil
}

// GetEvent fetches a single notification event by id.
func (s *Storage) GetEvent(ctx context.Context, eventID int64) (*model.NotificationEvent, error) {
	var event model.NotificationEvent
	query := `
		SELECT id, user_id, event_type, title, body, discord_message, metadata,
		       created_at, read_at, dismissed_at
		FROM notification_events
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &event, query, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get notification event: %w", err)
	}

	return &event, nil
}

// ListUserEvents returns a user's tray events, most recent first. Dismissed
// events never appear.
func (s *Storage) ListUserEvents(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]model.NotificationEvent, error) {
	query := `
		SELECT id, user_id, event_type, title, body, discord_message, metadata,
		       created_at, read_at, dismissed_at
		FROM notification_events
		WHERE user_id = $1 AND dismissed_at IS NULL
	`

	if unreadOnly {
		query += " AND read_at IS NULL"
	}

	query += " ORDER BY created_at DESC LIMIT $2 OFFSET $3"

	var events []model.NotificationEvent
	if err := s.db.SelectContext(ctx, &events, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list notification events: %w", err)
	}

	return events, nil
}

// UnreadCount returns the number of unread, undismissed events for a user.
func (s *Storage) UnreadCount(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM notification_events
		WHERE user_id = $1 AND read_at IS NULL AND dismissed_at IS NULL
	`

	var count int
	if err := s.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkEventRead sets read_at on a single event.
func (s *Storage) MarkEventRead(ctx context.Context, eventID int64) error {
	query := `UPDATE notification_events SET read_at = now() WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// MarkAllEventsRead marks every unread event for a user and returns how many
// rows changed.
func (s *Storage) MarkAllEventsRead(ctx context.Context, userID int64) (int, error) {
	query := `
		UPDATE notification_events
		SET read_at = now()
		WHERE user_id = $1 AND read_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return int(rows), nil
}

// DismissEvent sets dismissed_at, removing the event from the tray.
func (s *Storage) DismissEvent(ctx context.Context, eventID int64) error {
	query := `UPDATE notification_events SET dismissed_at = now() WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// RecordDeliveryResult upserts the outcome of a delivery attempt for one
// (event, channel) pair. The row always reflects the most recent call;
// delivered_at is set only when the status is delivered.
func (s *Storage) RecordDeliveryResult(
	ctx context.Context,
	eventID int64,
	channel notifications.Channel,
	status notifications.DeliveryStatus,
	errorMessage *string,
) error {
	query := `
		INSERT INTO notification_delivery_log
			(event_id, channel, status, attempted_at, delivered_at, error_message)
		VALUES ($1, $2, $3, now(),
		        CASE WHEN $3 = 'delivered' THEN now() END,
		        $4)
		ON CONFLICT (event_id, channel) DO UPDATE SET
			status = EXCLUDED.status,
			attempted_at = EXCLUDED.attempted_at,
			delivered_at = EXCLUDED.delivered_at,
			error_message = EXCLUDED.error_message
	`

	if _, err := s.db.ExecContext(ctx, query, eventID, channel, status, errorMessage); err != nil {
		return fmt.Errorf("failed to record delivery result: %w", err)
	}

	return nil
}

// FetchDeliveryResults returns every channel outcome recorded for an event.
// A channel with no row has no attempt recorded yet, which is distinct from
// a skipped attempt.
func (s *Storage) FetchDeliveryResults(ctx context.Context, eventID int64) ([]model.DeliveryAttempt, error) {
	query := `
		SELECT event_id, channel, status, attempted_at, delivered_at, error_message
		FROM notification_delivery_log
		WHERE event_id = $1
		ORDER BY channel
	`

	var attempts []model.DeliveryAttempt
	if err := s.db.SelectContext(ctx, &attempts, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to fetch delivery results: %w", err)
	}

	return attempts, nil
}

// FetchPreferences returns every explicit preference row for a user.
func (s *Storage) FetchPreferences(ctx context.Context, userID int64) ([]model.NotificationPreference, error) {
	query := `
		SELECT user_id, event_type, channel, enabled
		FROM notification_preferences
		WHERE user_id = $1
	`

	var prefs []model.NotificationPreference
	if err := s.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to fetch preferences: %w", err)
	}

	return prefs, nil
}

// UpsertPreference inserts or overwrites a single preference row.
func (s *Storage) UpsertPreference(
	ctx context.Context,
	userID int64,
	eventType notifications.EventType,
	channel notifications.Channel,
	enabled bool,
) error {
	query := `
		INSERT INTO notification_preferences (user_id, event_type, channel, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, event_type, channel)
		DO UPDATE SET enabled = EXCLUDED.enabled
	`

	if _, err := s.db.ExecContext(ctx, query, userID, eventType, channel, enabled); err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}

	return nil
}
