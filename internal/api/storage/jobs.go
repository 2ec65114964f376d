package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/notifications"
	"github.com/google/uuid"
)

// CreateJob inserts a new job in the queued state and returns its id.
func (s *Storage) CreateJob(ctx context.Context, action string) (string, error) {
	jobID := uuid.New().String()

	query := `
		INSERT INTO jobs (id, action, status, attempts, created_at)
		VALUES ($1, $2, $3, 0, now())
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, action, notifications.JobQueued); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	return jobID, nil
}

// GetJob fetches a job by id.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT id, action, status, result, error_code, error_msg, attempts,
		       created_at, started_at, finished_at
		FROM jobs
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// terminalGuard keeps terminal jobs frozen: an update against a job already
// in a terminal state matches zero rows and becomes a no-op. Built from the
// shared terminal list so it cannot drift from JobStatus.CanTransitionTo.
var terminalGuard = buildTerminalGuard()

func buildTerminalGuard() string {
	quoted := make([]string, len(notifications.TerminalStatuses))
	for i, s := range notifications.TerminalStatuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return ` AND status NOT IN (` + strings.Join(quoted, ", ") + `)`
}

// UpdateJob applies a status transition reported by the consumer.
//
// failed and timeout require error_code and error_msg; every other status
// clears both. The move to processing also counts one attempt. Updates to a
// job already in a terminal state succeed without mutating the row.
func (s *Storage) UpdateJob(
	ctx context.Context,
	jobID string,
	status notifications.JobStatus,
	result json.RawMessage,
	errorCode *string,
	errorMsg *string,
) error {
	if !status.Valid() {
		return domain.ErrInvalidJobStatus
	}

	if status.RequiresError() && (errorCode == nil || errorMsg == nil) {
		return domain.ErrMissingErrorDetails
	}

	var (
		query string
		args  []interface{}
	)

	switch status {
	case notifications.JobQueued:
		query = `UPDATE jobs SET status = 'queued' WHERE id = $1` + terminalGuard
		args = []interface{}{jobID}
	case notifications.JobProcessing:
		query = `
			UPDATE jobs
			SET status = 'processing',
			    started_at = COALESCE(started_at, now()),
			    attempts = attempts + 1
			WHERE id = $1` + terminalGuard
		args = []interface{}{jobID}
	case notifications.JobSucceeded:
		query = `
			UPDATE jobs
			SET status = 'succeeded',
			    result = $2,
			    finished_at = now(),
			    error_code = NULL,
			    error_msg = NULL
			WHERE id = $1` + terminalGuard
		args = []interface{}{jobID, result}
	case notifications.JobFailed, notifications.JobTimeout:
		query = `
			UPDATE jobs
			SET status = $2,
			    finished_at = now(),
			    error_code = $3,
			    error_msg = $4
			WHERE id = $1` + terminalGuard
		args = []interface{}{jobID, status, errorCode, errorMsg}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if rows == 0 {
		// Either the id is unknown or the job is already terminal.
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID); err != nil {
			return fmt.Errorf("failed to check job existence: %w", err)
		}
		if !exists {
			return domain.ErrJobNotFound
		}
	}

	return nil
}
