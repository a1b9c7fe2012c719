package models

import "context"

// Participant is a teacher or student identity plus the calendar the engine
// writes their events into. The roster is an external system of record.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CalendarID string `json:"calendarId"`
}

// RosterRepository resolves the people attached to a course. Read-only.
type RosterRepository interface {
	FindTeachers(ctx context.Context, courseID string) ([]*Participant, error)
	FindStudents(ctx context.Context, courseID, term string) ([]*Participant, error)
}
