package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps incremental-sync checkpoints in memory.
type CheckpointStore struct {
	mu     sync.Mutex
	points map[string]time.Time
}

// NewCheckpointStore creates an empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{points: make(map[string]time.Time)}
}

// GetCheckpoint implements models.CheckpointStore.
func (s *CheckpointStore) GetCheckpoint(_ context.Context, term string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[term], nil
}

// SetCheckpoint implements models.CheckpointStore. Older checkpoints never
// overwrite newer ones.
func (s *CheckpointStore) SetCheckpoint(_ context.Context, term string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.points[term]) {
		s.points[term] = at
	}
	return nil
}
