package dispatch

import (
	"context"
	"fmt"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
)

// Dispatcher enqueues exactly one job per leaf task node. Payloads are
// validated before enqueue; a structurally invalid payload never reaches the
// queue.
type Dispatcher struct {
	queue models.JobQueue
}

// NewDispatcher creates a Dispatcher over the given queue.
func NewDispatcher(queue models.JobQueue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// Dispatch validates the node's payload and enqueues its job. The
// attendance-table leaf goes out high priority so check-in pages exist before
// schedules reference them.
func (d *Dispatcher) Dispatch(ctx context.Context, node *models.TaskNode) error {
	executor, priority, err := routeFor(node.Type)
	if err != nil {
		return err
	}
	if err := node.Data.Validate(); err != nil {
		return err
	}

	job := models.Job{
		Executor: executor,
		TaskID:   node.ID,
		Payload:  node.Data,
		Priority: priority,
	}
	jobID, err := d.queue.Enqueue(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to enqueue job for task %s: %w", node.Name, err)
	}
	logger.Debug(ctx, "Job enqueued", "job", jobID, "task", node.Name, "executor", executor, "priority", priority.String())
	return nil
}

// routeFor maps a leaf type to its executor and queue priority.
func routeFor(t models.TaskType) (models.ExecutorName, models.Priority, error) {
	switch t {
	case models.TaskTypeAttendanceTable:
		return models.ExecutorAttendanceCreate, models.PriorityHigh, nil
	case models.TaskTypeTeacherLeaf, models.TaskTypeStudentLeaf:
		return models.ExecutorScheduleCreate, models.PriorityLow, nil
	case models.TaskTypeDeleteLeaf:
		return models.ExecutorScheduleDelete, models.PriorityLow, nil
	default:
		return "", 0, fmt.Errorf("task type %q has no executor", t)
	}
}
