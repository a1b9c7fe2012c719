package sync

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
)

// Summary is the live progress of one sync run, recomputed from the task
// tree on every call.
type Summary struct {
	RootTaskID     string `json:"rootTaskId"`
	Status         string `json:"status"`
	TotalCourses   int    `json:"totalCourses"`
	TeacherTasks   int    `json:"teacherTasks"`
	StudentTasks   int    `json:"studentTasks"`
	CompletedTasks int    `json:"completedTasks"`
	FailedTasks    int    `json:"failedTasks"`
}

// SyncStatus summarizes a run by walking its descendants.
func (e *Engine) SyncStatus(ctx context.Context, rootTaskID string) (*Summary, error) {
	root, err := e.tasks.GetTask(ctx, rootTaskID)
	if err != nil {
		return nil, err
	}
	if root.Type != models.TaskTypeRoot {
		return nil, models.NewValidationError("rootTaskId", "task %s is a %s node, not a sync root", rootTaskID, root.Type)
	}
	nodes, err := e.tasks.ListDescendants(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RootTaskID: root.ID, Status: runStatus(nodes)}
	for _, node := range nodes {
		switch node.Type {
		case models.TaskTypeCourse:
			summary.TotalCourses++
		case models.TaskTypeTeacherLeaf:
			summary.TeacherTasks++
		case models.TaskTypeStudentLeaf:
			summary.StudentTasks++
		}
		if !node.Type.IsLeaf() {
			continue
		}
		switch node.Status {
		case models.TaskStatusSuccess:
			summary.CompletedTasks++
		case models.TaskStatusFailed, models.TaskStatusCancelled:
			summary.FailedTasks++
		}
	}
	return summary, nil
}

// runStatus derives the run's overall state from its leaves: running while
// any leaf is in flight, failed if any leaf failed, success otherwise.
func runStatus(nodes []*models.TaskNode) string {
	leaves := lo.Filter(nodes, func(n *models.TaskNode, _ int) bool { return n.Type.IsLeaf() })
	if len(leaves) == 0 {
		return models.TaskStatusPending.String()
	}
	if lo.SomeBy(leaves, func(n *models.TaskNode) bool { return !n.Status.IsTerminal() }) {
		return models.TaskStatusRunning.String()
	}
	if lo.SomeBy(leaves, func(n *models.TaskNode) bool { return n.Status != models.TaskStatusSuccess }) {
		return models.TaskStatusFailed.String()
	}
	return models.TaskStatusSuccess.String()
}

// CancelSync best-effort cancels every non-terminal node under the run.
// Already-terminal nodes keep their status; jobs already dequeued may still
// finish, their callbacks land on cancelled nodes as no-ops.
func (e *Engine) CancelSync(ctx context.Context, rootTaskID string) (int, error) {
	root, err := e.tasks.GetTask(ctx, rootTaskID)
	if err != nil {
		return 0, err
	}
	nodes, err := e.tasks.ListDescendants(ctx, root.ID)
	if err != nil {
		return 0, err
	}
	nodes = append(nodes, root)

	var cancelled int
	for _, node := range nodes {
		if node.Status.IsTerminal() {
			continue
		}
		changed, err := e.tasks.CancelTask(ctx, node.ID, "cancelled by operator")
		if err != nil {
			return cancelled, fmt.Errorf("failed to cancel task %s: %w", node.Name, err)
		}
		if changed {
			cancelled++
		}
	}
	logger.Info(ctx, "Sync run cancelled", "root", rootTaskID, "cancelledTasks", cancelled)
	return cancelled, nil
}
