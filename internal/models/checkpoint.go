package models

import (
	"context"
	"time"
)

// CheckpointStore persists the per-term incremental-sync checkpoint. The
// checkpoint is monotonically increasing; a missing checkpoint reads as the
// zero time, which makes the first incremental run behave like a full scan.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, term string) (time.Time, error)
	SetCheckpoint(ctx context.Context, term string, at time.Time) error
}
