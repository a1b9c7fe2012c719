package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.RosterRepository = (*Roster)(nil)

// Roster reads teacher and student assignments from the timetable tables.
// Read-only; the roster is an external system of record.
type Roster struct {
	pool *pgxpool.Pool
}

// NewRoster creates a Roster over the given pool.
func NewRoster(pool *pgxpool.Pool) *Roster {
	return &Roster{pool: pool}
}

// FindTeachers implements models.RosterRepository.
func (r *Roster) FindTeachers(ctx context.Context, courseID string) ([]*models.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.calendar_id
		FROM participants p
		JOIN course_teachers ct ON ct.participant_id = p.id
		WHERE ct.course_id = $1
		ORDER BY p.id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find teachers of %s: %w", courseID, err)
	}
	return scanParticipants(rows)
}

// FindStudents implements models.RosterRepository.
func (r *Roster) FindStudents(ctx context.Context, courseID, term string) ([]*models.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.calendar_id
		FROM participants p
		JOIN course_enrollments ce ON ce.participant_id = p.id
		WHERE ce.course_id = $1 AND ce.term = $2
		ORDER BY p.id`, courseID, term)
	if err != nil {
		return nil, fmt.Errorf("failed to find students of %s: %w", courseID, err)
	}
	return scanParticipants(rows)
}

func scanParticipants(rows pgx.Rows) ([]*models.Participant, error) {
	defer rows.Close()
	var participants []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.CalendarID); err != nil {
			return nil, err
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}
