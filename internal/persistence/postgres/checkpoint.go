package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore persists incremental-sync checkpoints per term.
type CheckpointStore struct {
	pool *pgxpool.Pool
}

// NewCheckpointStore creates a CheckpointStore over the given pool.
func NewCheckpointStore(pool *pgxpool.Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// GetCheckpoint implements models.CheckpointStore.
func (s *CheckpointStore) GetCheckpoint(ctx context.Context, term string) (time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT checkpoint FROM sync_checkpoints WHERE term = $1`, term).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get checkpoint for %s: %w", term, err)
	}
	return at, nil
}

// SetCheckpoint implements models.CheckpointStore. Older checkpoints never
// overwrite newer ones.
func (s *CheckpointStore) SetCheckpoint(ctx context.Context, term string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_checkpoints (term, checkpoint) VALUES ($1, $2)
		ON CONFLICT (term) DO UPDATE SET checkpoint = excluded.checkpoint
		WHERE sync_checkpoints.checkpoint < excluded.checkpoint`,
		term, at)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint for %s: %w", term, err)
	}
	return nil
}
