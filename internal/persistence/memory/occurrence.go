package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.OccurrenceStore = (*OccurrenceStore)(nil)

// OccurrenceStore keeps course occurrences in memory.
type OccurrenceStore struct {
	mu   sync.Mutex
	rows map[string]*models.CourseOccurrence
}

// NewOccurrenceStore creates a store seeded with the given rows.
func NewOccurrenceStore(rows ...*models.CourseOccurrence) *OccurrenceStore {
	s := &OccurrenceStore{rows: make(map[string]*models.CourseOccurrence)}
	for _, row := range rows {
		c := *row
		s.rows[row.ID] = &c
	}
	return s
}

// Put inserts or replaces a row, for test setup.
func (s *OccurrenceStore) Put(row *models.CourseOccurrence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *row
	s.rows[row.ID] = &c
}

// GetOccurrence implements models.OccurrenceStore.
func (s *OccurrenceStore) GetOccurrence(_ context.Context, id string) (*models.CourseOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, models.NewNotFoundError("occurrence", id)
	}
	c := *row
	return &c, nil
}

// ListPendingSync implements models.OccurrenceStore.
func (s *OccurrenceStore) ListPendingSync(_ context.Context, term string) ([]*models.CourseOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*models.CourseOccurrence
	for _, row := range s.rows {
		if row.Term == term && row.SyncStatus != models.SyncStatusStudentSynced && row.DeleteState == models.DeleteStateNone {
			c := *row
			rows = append(rows, &c)
		}
	}
	return rows, nil
}

// ListChangedSince implements models.OccurrenceStore.
func (s *OccurrenceStore) ListChangedSince(_ context.Context, term string, since time.Time) ([]*models.CourseOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*models.CourseOccurrence
	for _, row := range s.rows {
		if row.Term == term && row.UpdatedAt.After(since) {
			c := *row
			rows = append(rows, &c)
		}
	}
	return rows, nil
}

// ListByDeleteState implements models.OccurrenceStore.
func (s *OccurrenceStore) ListByDeleteState(_ context.Context, term string, state models.DeleteState) ([]*models.CourseOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*models.CourseOccurrence
	for _, row := range s.rows {
		if row.Term == term && row.DeleteState == state {
			c := *row
			rows = append(rows, &c)
		}
	}
	return rows, nil
}

// SetSyncStatus implements models.OccurrenceStore. Regressions are ignored so
// status stays monotonic under any completion order.
func (s *OccurrenceStore) SetSyncStatus(_ context.Context, id string, status models.SyncStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return models.NewNotFoundError("occurrence", id)
	}
	if status <= row.SyncStatus {
		return nil
	}
	row.SyncStatus = status
	row.LastSyncAt = at
	return nil
}

// SetDeleteState implements models.OccurrenceStore.
func (s *OccurrenceStore) SetDeleteState(_ context.Context, id string, state models.DeleteState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return models.NewNotFoundError("occurrence", id)
	}
	row.DeleteState = state
	return nil
}
