package models

import "fmt"

// Role distinguishes the two participant kinds on schedule leaves.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// TaskData is the metadata bag attached to a task node, modeled as a tagged
// union keyed by Kind. Exactly the payload matching Kind is set; everything
// else stays nil. Payloads are validated at construction, not trusted at read
// time.
type TaskData struct {
	Kind       TaskType           `json:"kind"`
	Course     *CoursePayload     `json:"course,omitempty"`
	Schedule   *SchedulePayload   `json:"schedule,omitempty"`
	Attendance *AttendancePayload `json:"attendance,omitempty"`
	Deletion   *DeletionPayload   `json:"deletion,omitempty"`
}

// CoursePayload annotates course and group nodes with their source row.
type CoursePayload struct {
	OccurrenceID string `json:"occurrenceId"`
	CourseID     string `json:"courseId"`
	CourseName   string `json:"courseName"`
	Term         string `json:"term"`
}

// SchedulePayload is the unit of work for one participant's calendar event.
type SchedulePayload struct {
	OccurrenceID    string `json:"occurrenceId"`
	CourseID        string `json:"courseId"`
	CourseName      string `json:"courseName"`
	Term            string `json:"term"`
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
	CalendarID      string `json:"calendarId"`
	Role            Role   `json:"role"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	Location        string `json:"location,omitempty"`
}

// AttendancePayload is the unit of work for one occurrence's check-in sheet.
type AttendancePayload struct {
	OccurrenceID string `json:"occurrenceId"`
	CourseID     string `json:"courseId"`
	CourseName   string `json:"courseName"`
	Term         string `json:"term"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Location     string `json:"location,omitempty"`
}

// DeletionPayload is the unit of work for removing one stale calendar event,
// matched by event time and summary during incremental sync.
type DeletionPayload struct {
	OccurrenceID  string `json:"occurrenceId"`
	ParticipantID string `json:"participantId"`
	CalendarID    string `json:"calendarId"`
	EventID       string `json:"eventId"`
	Summary       string `json:"summary,omitempty"`
}

// Validate checks that the union is well formed and that the payload matching
// Kind carries every field its executor needs. Invalid data never reaches the
// queue.
func (d TaskData) Validate() error {
	switch d.Kind {
	case TaskTypeRoot:
		return nil
	case TaskTypeCourse, TaskTypeTeacherGroup, TaskTypeStudentGroup:
		if d.Course == nil {
			return NewValidationError("course", "missing payload for %s node", d.Kind)
		}
		if d.Course.OccurrenceID == "" {
			return NewValidationError("course.occurrenceId", "required")
		}
		return nil
	case TaskTypeTeacherLeaf, TaskTypeStudentLeaf:
		p := d.Schedule
		if p == nil {
			return NewValidationError("schedule", "missing payload for %s node", d.Kind)
		}
		switch {
		case p.OccurrenceID == "":
			return NewValidationError("schedule.occurrenceId", "required")
		case p.ParticipantID == "":
			return NewValidationError("schedule.participantId", "required")
		case p.CalendarID == "":
			return NewValidationError("schedule.calendarId", "required")
		case p.CourseName == "":
			return NewValidationError("schedule.courseName", "required")
		case p.Date == "" || p.StartTime == "" || p.EndTime == "":
			return NewValidationError("schedule.time", "date and time window required")
		}
		return nil
	case TaskTypeAttendanceTable:
		p := d.Attendance
		if p == nil {
			return NewValidationError("attendance", "missing payload for attendance-table node")
		}
		switch {
		case p.OccurrenceID == "":
			return NewValidationError("attendance.occurrenceId", "required")
		case p.CourseName == "":
			return NewValidationError("attendance.courseName", "required")
		case p.Date == "" || p.StartTime == "" || p.EndTime == "":
			return NewValidationError("attendance.time", "date and time window required")
		}
		return nil
	case TaskTypeDeleteLeaf:
		p := d.Deletion
		if p == nil {
			return NewValidationError("deletion", "missing payload for delete-leaf node")
		}
		switch {
		case p.CalendarID == "":
			return NewValidationError("deletion.calendarId", "required")
		case p.EventID == "":
			return NewValidationError("deletion.eventId", "required")
		}
		return nil
	default:
		return NewValidationError("kind", "unknown task kind %q", d.Kind)
	}
}

// Deterministic node names. A name is unique per (term, occurrence,
// participant) and is the idempotency key that lets a re-run attach to the
// existing subtree instead of duplicating it.

func RootTaskName(term string) string { return fmt.Sprintf("sync:%s", term) }

func CourseTaskName(term, occurrenceID string) string {
	return fmt.Sprintf("course:%s:%s", term, occurrenceID)
}

func AttendanceTaskName(occurrenceID string) string {
	return fmt.Sprintf("attend:%s", occurrenceID)
}

func TeacherGroupName(occurrenceID string) string {
	return fmt.Sprintf("teachers:%s", occurrenceID)
}

func TeacherLeafName(occurrenceID, teacherID string) string {
	return fmt.Sprintf("teacher:%s:%s", occurrenceID, teacherID)
}

func StudentGroupName(occurrenceID string) string {
	return fmt.Sprintf("students:%s", occurrenceID)
}

func StudentLeafName(occurrenceID, studentID string) string {
	return fmt.Sprintf("student:%s:%s", occurrenceID, studentID)
}

func DeleteLeafName(occurrenceID, participantID, eventID string) string {
	return fmt.Sprintf("delete:%s:%s:%s", occurrenceID, participantID, eventID)
}

// IdempotencyToken keys a calendar-event create so a retried create cannot
// duplicate the event.
func IdempotencyToken(occurrenceID, participantID string) string {
	return fmt.Sprintf("%s-%s", occurrenceID, participantID)
}
