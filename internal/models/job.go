package models

import "context"

// Priority orders queue consumption. Attendance-table leaves go out high so
// check-in pages exist before schedules reference them.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityLow
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// ExecutorName identifies which executor runs a job.
type ExecutorName string

const (
	ExecutorScheduleCreate   ExecutorName = "schedule.create"
	ExecutorScheduleDelete   ExecutorName = "schedule.delete"
	ExecutorAttendanceCreate ExecutorName = "attendance.create"
)

// Job is one queued external operation. The payload is a snapshot taken at
// enqueue time; the referenced task node receives the terminal outcome.
type Job struct {
	ID       string       `json:"id"`
	Executor ExecutorName `json:"executor"`
	TaskID   string       `json:"taskId"`
	Payload  TaskData     `json:"payload"`
	Priority Priority     `json:"priority"`
}

// JobQueue hands jobs to the worker pool. Retry with backoff is owned by the
// consumer; Enqueue itself must not block on execution.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
}

// Outcome is the terminal result of a job.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// Completion is the typed descriptor a finished job reports, consumed by a
// single status-update consumer.
type Completion struct {
	NodeID  string            `json:"nodeId"`
	Outcome Outcome           `json:"outcome"`
	Reason  string            `json:"reason,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// CompletionHandler receives every terminal job outcome.
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, c Completion) error
}
