package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.OccurrenceStore = (*OccurrenceStore)(nil)

// OccurrenceStore reads timetable rows and writes the sync columns. The
// monotonic guard lives in SQL so no reader-side check can regress status.
type OccurrenceStore struct {
	pool *pgxpool.Pool
}

// NewOccurrenceStore creates an OccurrenceStore over the given pool.
func NewOccurrenceStore(pool *pgxpool.Pool) *OccurrenceStore {
	return &OccurrenceStore{pool: pool}
}

const occurrenceColumns = `id, course_id, course_name, term, class_date, start_time, end_time,
	coalesce(location, ''), teacher_ids, sync_status, delete_state,
	coalesce(last_sync_at, 'epoch'::timestamptz), updated_at`

// GetOccurrence implements models.OccurrenceStore.
func (s *OccurrenceStore) GetOccurrence(ctx context.Context, id string) (*models.CourseOccurrence, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+occurrenceColumns+` FROM course_occurrences WHERE id = $1`, id)
	return scanOccurrence(row, id)
}

// ListPendingSync implements models.OccurrenceStore.
func (s *OccurrenceStore) ListPendingSync(ctx context.Context, term string) ([]*models.CourseOccurrence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+occurrenceColumns+` FROM course_occurrences
		WHERE term = $1 AND sync_status < $2 AND delete_state = $3
		ORDER BY class_date, start_time`,
		term, int(models.SyncStatusStudentSynced), int(models.DeleteStateNone))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending occurrences: %w", err)
	}
	return scanOccurrences(rows)
}

// ListChangedSince implements models.OccurrenceStore.
func (s *OccurrenceStore) ListChangedSince(ctx context.Context, term string, since time.Time) ([]*models.CourseOccurrence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+occurrenceColumns+` FROM course_occurrences
		WHERE term = $1 AND updated_at > $2
		ORDER BY updated_at`,
		term, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed occurrences: %w", err)
	}
	return scanOccurrences(rows)
}

// ListByDeleteState implements models.OccurrenceStore.
func (s *OccurrenceStore) ListByDeleteState(ctx context.Context, term string, state models.DeleteState) ([]*models.CourseOccurrence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+occurrenceColumns+` FROM course_occurrences
		WHERE term = $1 AND delete_state = $2`,
		term, int(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences by delete state: %w", err)
	}
	return scanOccurrences(rows)
}

// SetSyncStatus implements models.OccurrenceStore. The WHERE clause refuses
// regressions, keeping status monotonic under any completion interleaving.
func (s *OccurrenceStore) SetSyncStatus(ctx context.Context, id string, status models.SyncStatus, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE course_occurrences
		SET sync_status = $2, last_sync_at = $3
		WHERE id = $1 AND sync_status < $2`,
		id, int(status), at)
	if err != nil {
		return fmt.Errorf("failed to set sync status of %s: %w", id, err)
	}
	return nil
}

// SetDeleteState implements models.OccurrenceStore.
func (s *OccurrenceStore) SetDeleteState(ctx context.Context, id string, state models.DeleteState) error {
	_, err := s.pool.Exec(ctx, `UPDATE course_occurrences SET delete_state = $2 WHERE id = $1`, id, int(state))
	if err != nil {
		return fmt.Errorf("failed to set delete state of %s: %w", id, err)
	}
	return nil
}

func scanOccurrence(row rowScanner, key string) (*models.CourseOccurrence, error) {
	var (
		occ         models.CourseOccurrence
		syncStatus  int
		deleteState int
	)
	err := row.Scan(&occ.ID, &occ.CourseID, &occ.CourseName, &occ.Term, &occ.Date,
		&occ.StartTime, &occ.EndTime, &occ.Location, &occ.TeacherIDs,
		&syncStatus, &deleteState, &occ.LastSyncAt, &occ.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "occurrence", key)
	}
	occ.SyncStatus = models.SyncStatus(syncStatus)
	occ.DeleteState = models.DeleteState(deleteState)
	return &occ, nil
}

func scanOccurrences(rows pgx.Rows) ([]*models.CourseOccurrence, error) {
	defer rows.Close()
	var occs []*models.CourseOccurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows, "")
		if err != nil {
			return nil, err
		}
		occs = append(occs, occ)
	}
	return occs, rows.Err()
}
