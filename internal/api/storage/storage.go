package storage

import (
	"github.com/genjishimada/dispatch-core/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage issues all database operations for the API service. Concurrency
// correctness is pushed to the store's atomic primitives: conflict-aware
// inserts and upserts keyed by natural keys, never read-then-write pairs.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}
