// Package calendar implements the collaboration-suite calendar gateway over
// its REST API.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/uroborus2s/campus-sync/internal/config"
	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.CalendarGateway = (*Client)(nil)

// Client talks to the provider's calendar and attendance endpoints. Token
// refresh on 401 lives in the shared platform SDK layer, not here.
type Client struct {
	http *resty.Client
}

// New creates a Client from the calendar configuration.
func New(cfg config.Calendar) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient}
}

// CreateSchedule creates one calendar event. The idempotency token makes a
// retried create collapse onto the first event instead of duplicating it.
func (c *Client) CreateSchedule(ctx context.Context, params models.ScheduleParams) (*models.ScheduleEvent, error) {
	var event models.ScheduleEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Token", params.IdempotencyToken).
		SetBody(params).
		SetResult(&event).
		Post(fmt.Sprintf("/v1/calendars/%s/schedules", params.CalendarID))
	if err := classify(resp, err); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return &event, nil
}

// DeleteSchedule removes one calendar event. A 404 is success: the event is
// already gone, which is what a retried delete observes.
func (c *Client) DeleteSchedule(ctx context.Context, calendarID, eventID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/v1/calendars/%s/schedules/%s", calendarID, eventID))
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if err := classify(resp, err); err != nil {
		return fmt.Errorf("delete schedule %s: %w", eventID, err)
	}
	return nil
}

// ListSchedules returns the events of a calendar within [from, to].
func (c *Client) ListSchedules(ctx context.Context, calendarID string, from, to time.Time) ([]*models.ScheduleEvent, error) {
	var result struct {
		Items []*models.ScheduleEvent `json:"items"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from": from.Format(time.RFC3339),
			"to":   to.Format(time.RFC3339),
		}).
		SetResult(&result).
		Get(fmt.Sprintf("/v1/calendars/%s/schedules", calendarID))
	if err := classify(resp, err); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return result.Items, nil
}

// CreateAttendanceSheet creates the check-in sheet for one occurrence and
// returns the page URL schedules deep-link to.
func (c *Client) CreateAttendanceSheet(ctx context.Context, params models.AttendanceParams) (*models.AttendanceSheet, error) {
	var sheet models.AttendanceSheet
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&sheet).
		Post("/v1/attendance/sheets")
	if err := classify(resp, err); err != nil {
		return nil, fmt.Errorf("create attendance sheet: %w", err)
	}
	return &sheet, nil
}

// classify maps transport and HTTP failures onto the engine's error taxonomy:
// network errors, timeouts, 429 and 5xx are retryable; other 4xx are terminal.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return models.NewTransientError(err)
	}
	if resp == nil {
		return models.NewTransientError(fmt.Errorf("no response"))
	}
	code := resp.StatusCode()
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return models.NewTransientError(fmt.Errorf("provider returned %d: %s", code, resp.String()))
	case code == http.StatusNotFound:
		return models.NewNotFoundError("resource", resp.Request.URL)
	default:
		return models.NewValidationError("request", "provider rejected request with %d: %s", code, resp.String())
	}
}
