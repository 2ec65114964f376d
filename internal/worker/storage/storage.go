package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// consumedPrefix namespaces consumer-side claims inside processed_messages.
// The bare key belongs to the producer; the prefixed key records that this
// message's side effects have run.
const consumedPrefix = "consumed:"

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimConsumed records that a message's side effects are about to run.
// Returns false when a previous attempt already claimed it, meaning the
// redelivery must be acked without re-running anything.
func (s *Storage) ClaimConsumed(ctx context.Context, messageID string) (bool, error) {
	query := `
		INSERT INTO processed_messages (idempotency_key, claimed_at)
		VALUES ($1, now())
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, consumedPrefix+messageID)
	if err != nil {
		return false, fmt.Errorf("failed to claim consumed marker: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// ReleaseConsumed removes the consumed marker so a redelivery can retry the
// side effects after a processing failure.
func (s *Storage) ReleaseConsumed(ctx context.Context, messageID string) error {
	query := `
		DELETE FROM processed_messages
		WHERE idempotency_key = $1
	`

	if _, err := s.db.ExecContext(ctx, query, consumedPrefix+messageID); err != nil {
		return fmt.Errorf("failed to release consumed marker: %w", err)
	}

	return nil
}

// terminal jobs never move again; transitions against them match zero rows.
// Built from the shared terminal list so the guard and
// JobStatus.CanTransitionTo cannot drift.
var terminalGuard = buildTerminalGuard()

func buildTerminalGuard() string {
	quoted := make([]string, len(notifications.TerminalStatuses))
	for i, s := range notifications.TerminalStatuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return ` AND status NOT IN (` + strings.Join(quoted, ", ") + `)`
}

// MarkJobProcessing moves a job to processing and counts one attempt.
// started_at is kept from the first attempt.
func (s *Storage) MarkJobProcessing(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = 'processing',
		    started_at = COALESCE(started_at, now()),
		    attempts = attempts + 1
		WHERE id = $1` + terminalGuard

	if _, err := s.db.ExecContext(ctx, query, jobID); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	s.logger.Info("Job marked processing", slog.String("job_id", jobID))

	return nil
}

// MarkJobSucceeded finishes a job with a result document.
func (s *Storage) MarkJobSucceeded(ctx context.Context, jobID string, result json.RawMessage) error {
	query := `
		UPDATE jobs
		SET status = 'succeeded',
		    result = $2,
		    finished_at = now(),
		    error_code = NULL,
		    error_msg = NULL
		WHERE id = $1` + terminalGuard

	if _, err := s.db.ExecContext(ctx, query, jobID, result); err != nil {
		return fmt.Errorf("failed to mark job succeeded: %w", err)
	}

	s.logger.Info("Job marked succeeded", slog.String("job_id", jobID))

	return nil
}

// MarkJobFailed finishes a job with an error code and message. status picks
// between failed and timeout.
func (s *Storage) MarkJobFailed(ctx context.Context, jobID string, status notifications.JobStatus, errorCode, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    finished_at = now(),
		    error_code = $3,
		    error_msg = $4
		WHERE id = $1` + terminalGuard

	if _, err := s.db.ExecContext(ctx, query, jobID, status, errorCode, errorMsg); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Info("Job marked failed",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
		slog.String("error_code", errorCode),
	)

	return nil
}

// RecordDeliveryResult upserts the latest outcome for one (event, channel)
// pair, same row the API's ledger reads.
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
