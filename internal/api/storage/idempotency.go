package storage

import (
	"context"
	"fmt"
)

// ClaimIdempotencyKey attempts to create a claim record for key. It returns
// true only when this call inserted the row; a concurrent claimant loses the
// conflict inside the database, so two callers can never both see true.
func (s *Storage) ClaimIdempotencyKey(ctx context.Context, key string) (bool, error) {
	query := `
		INSERT INTO processed_messages (idempotency_key, claimed_at)
		VALUES ($1, now())
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// ReleaseIdempotencyKey deletes the claim if present. Releasing an absent
// key is a no-op, not an error.
func (s *Storage) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	query := `
		DELETE FROM processed_messages
		WHERE idempotency_key = $1
	`

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}

	return nil
}
