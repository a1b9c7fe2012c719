package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uroborus2s/campus-sync/internal/config"
	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
	"github.com/uroborus2s/campus-sync/internal/timeutil"
)

// ScheduleCreate creates one participant's calendar event for one occurrence.
type ScheduleCreate struct {
	gateway  models.CalendarGateway
	location *time.Location
	// checkinBaseURL is the base of the check-in/leave page the event
	// description deep-links to.
	checkinBaseURL  string
	reminderMinutes int
}

// NewScheduleCreate creates the schedule-create executor.
func NewScheduleCreate(gateway models.CalendarGateway, cal config.Calendar, loc *time.Location) *ScheduleCreate {
	return &ScheduleCreate{
		gateway:         gateway,
		location:        loc,
		checkinBaseURL:  strings.TrimRight(cal.CheckinBaseURL, "/"),
		reminderMinutes: cal.ReminderMinutes,
	}
}

// Name implements Executor.
func (e *ScheduleCreate) Name() models.ExecutorName { return models.ExecutorScheduleCreate }

// Execute implements Executor.
func (e *ScheduleCreate) Execute(ctx context.Context, job models.Job) (map[string]string, error) {
	p := job.Payload.Schedule
	if p == nil {
		return nil, models.NewValidationError("schedule", "job %s carries no schedule payload", job.ID)
	}

	window := timeutil.Compute(e.location, p.Date, p.StartTime, p.EndTime)
	if window.Degraded {
		logger.Warn(ctx, "Time window degraded to naive concatenation",
			"occurrence", p.OccurrenceID, "date", p.Date, "start", p.StartTime)
	}

	event, err := e.gateway.CreateSchedule(ctx, models.ScheduleParams{
		CalendarID:       p.CalendarID,
		Summary:          p.CourseName,
		Description:      e.description(p),
		Location:         p.Location,
		Start:            window.Start,
		End:              window.End,
		ReminderMinutes:  e.reminderMinutes,
		IdempotencyToken: models.IdempotencyToken(p.OccurrenceID, p.ParticipantID),
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"eventId":    event.ID,
		"calendarId": p.CalendarID,
	}, nil
}

func (e *ScheduleCreate) description(p *models.SchedulePayload) string {
	if e.checkinBaseURL == "" {
		return p.CourseName
	}
	return fmt.Sprintf("Check in or request leave: %s/checkin?occurrence=%s", e.checkinBaseURL, p.OccurrenceID)
}

// ScheduleDelete removes one stale calendar event.
type ScheduleDelete struct {
	gateway models.CalendarGateway
}

// NewScheduleDelete creates the schedule-delete executor.
func NewScheduleDelete(gateway models.CalendarGateway) *ScheduleDelete {
	return &ScheduleDelete{gateway: gateway}
}

// Name implements Executor.
func (e *ScheduleDelete) Name() models.ExecutorName { return models.ExecutorScheduleDelete }

// Execute implements Executor.
func (e *ScheduleDelete) Execute(ctx context.Context, job models.Job) (map[string]string, error) {
	p := job.Payload.Deletion
	if p == nil {
		return nil, models.NewValidationError("deletion", "job %s carries no deletion payload", job.ID)
	}
	if err := e.gateway.DeleteSchedule(ctx, p.CalendarID, p.EventID); err != nil {
		return nil, err
	}
	return map[string]string{"deletedEventId": p.EventID}, nil
}

// AttendanceCreate creates the check-in sheet for one occurrence.
type AttendanceCreate struct {
	gateway  models.CalendarGateway
	location *time.Location
}

// NewAttendanceCreate creates the attendance-create executor.
func NewAttendanceCreate(gateway models.CalendarGateway, loc *time.Location) *AttendanceCreate {
	return &AttendanceCreate{gateway: gateway, location: loc}
}

// Name implements Executor.
func (e *AttendanceCreate) Name() models.ExecutorName { return models.ExecutorAttendanceCreate }

// Execute implements Executor.
func (e *AttendanceCreate) Execute(ctx context.Context, job models.Job) (map[string]string, error) {
	p := job.Payload.Attendance
	if p == nil {
		return nil, models.NewValidationError("attendance", "job %s carries no attendance payload", job.ID)
	}

	window := timeutil.Compute(e.location, p.Date, p.StartTime, p.EndTime)
	if window.Degraded {
		logger.Warn(ctx, "Time window degraded to naive concatenation",
			"occurrence", p.OccurrenceID, "date", p.Date, "start", p.StartTime)
	}

	sheet, err := e.gateway.CreateAttendanceSheet(ctx, models.AttendanceParams{
		OccurrenceID: p.OccurrenceID,
		CourseID:     p.CourseID,
		Title:        fmt.Sprintf("%s check-in", p.CourseName),
		Start:        window.Start,
		End:          window.End,
		Location:     p.Location,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"sheetId": sheet.ID,
		"pageUrl": sheet.PageURL,
	}, nil
}
