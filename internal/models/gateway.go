package models

import (
	"context"
	"time"
)

// ScheduleParams are the provider parameters for one calendar event.
// Start and End are offset-qualified timestamps (RFC 3339).
type ScheduleParams struct {
	CalendarID       string `json:"calendarId"`
	Summary          string `json:"summary"`
	Description      string `json:"description,omitempty"`
	Location         string `json:"location,omitempty"`
	Start            string `json:"start"`
	End              string `json:"end"`
	ReminderMinutes  int    `json:"reminderMinutes,omitempty"`
	IdempotencyToken string `json:"-"`
}

// ScheduleEvent is a calendar event as the provider reports it.
type ScheduleEvent struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendarId"`
	Summary    string `json:"summary"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// AttendanceParams describe one occurrence's check-in sheet.
type AttendanceParams struct {
	OccurrenceID string `json:"occurrenceId"`
	CourseID     string `json:"courseId"`
	Title        string `json:"title"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Location     string `json:"location,omitempty"`
}

// AttendanceSheet is the created check-in record, including the page the
// schedule description deep-links to.
type AttendanceSheet struct {
	ID      string `json:"id"`
	PageURL string `json:"pageUrl"`
}

// CalendarGateway is the remote collaboration-suite calendar API. Errors are
// classified by the implementation: network/timeout/5xx wrapped as
// TransientError, structural 4xx as ValidationError.
type CalendarGateway interface {
	CreateSchedule(ctx context.Context, params ScheduleParams) (*ScheduleEvent, error)
	DeleteSchedule(ctx context.Context, calendarID, eventID string) error
	ListSchedules(ctx context.Context, calendarID string, from, to time.Time) ([]*ScheduleEvent, error)
	CreateAttendanceSheet(ctx context.Context, params AttendanceParams) (*AttendanceSheet, error)
}
