package memory

import (
	"context"
	"sync"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.RosterRepository = (*Roster)(nil)

// Roster is an in-memory roster repository keyed by course id.
type Roster struct {
	mu       sync.Mutex
	teachers map[string][]*models.Participant
	students map[string][]*models.Participant
	// failures simulates roster lookups that error, keyed by course id.
	failures map[string]error
}

// NewRoster creates an empty Roster.
func NewRoster() *Roster {
	return &Roster{
		teachers: make(map[string][]*models.Participant),
		students: make(map[string][]*models.Participant),
		failures: make(map[string]error),
	}
}

// SetTeachers registers the teachers of a course.
func (r *Roster) SetTeachers(courseID string, teachers ...*models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teachers[courseID] = teachers
}

// SetStudents registers the students of a course.
func (r *Roster) SetStudents(courseID string, students ...*models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[courseID] = students
}

// FailCourse makes lookups for the course return err.
func (r *Roster) FailCourse(courseID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[courseID] = err
}

// FindTeachers implements models.RosterRepository.
func (r *Roster) FindTeachers(_ context.Context, courseID string) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures[courseID]; err != nil {
		return nil, err
	}
	return append([]*models.Participant(nil), r.teachers[courseID]...), nil
}

// FindStudents implements models.RosterRepository.
func (r *Roster) FindStudents(_ context.Context, courseID, _ string) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures[courseID]; err != nil {
		return nil, err
	}
	return append([]*models.Participant(nil), r.students[courseID]...), nil
}
