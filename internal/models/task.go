package models

import (
	"context"
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of a task node.
type TaskStatus int

const (
	TaskStatusPending TaskStatus = iota
	TaskStatusRunning
	TaskStatusSuccess
	TaskStatusFailed
	TaskStatusCancelled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusRunning:
		return "running"
	case TaskStatusSuccess:
		return "success"
	case TaskStatusFailed:
		return "failed"
	case TaskStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether the status is one of success, failed or
// cancelled. Group completion is defined over terminal children only.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskType tags a node's position in the sync tree.
type TaskType string

const (
	TaskTypeRoot            TaskType = "root"
	TaskTypeCourse          TaskType = "course"
	TaskTypeAttendanceTable TaskType = "attendance-table"
	TaskTypeTeacherGroup    TaskType = "teacher-group"
	TaskTypeTeacherLeaf     TaskType = "teacher-leaf"
	TaskTypeStudentGroup    TaskType = "student-group"
	TaskTypeStudentLeaf     TaskType = "student-leaf"
	TaskTypeDeleteLeaf      TaskType = "delete-leaf"
)

// IsLeaf reports whether nodes of this type carry exactly one external side
// effect.
func (t TaskType) IsLeaf() bool {
	switch t {
	case TaskTypeAttendanceTable, TaskTypeTeacherLeaf, TaskTypeStudentLeaf, TaskTypeDeleteLeaf:
		return true
	default:
		return false
	}
}

// TaskNode is one unit of orchestration work. Nodes are never purged; the
// tree doubles as the audit trail of every sync run.
type TaskNode struct {
	ID        string     `json:"id"`
	ParentID  string     `json:"parentId,omitempty"`
	Name      string     `json:"name"`
	Type      TaskType   `json:"type"`
	Status    TaskStatus `json:"status"`
	Data      TaskData   `json:"data"`
	Reason    string     `json:"reason,omitempty"`
	// Meta carries executor write-backs, e.g. the created calendar event id
	// used later to schedule deletions.
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TaskInput describes a node to create. Name is the idempotency key; creating
// a second node with the same name returns ErrAlreadyExists.
type TaskInput struct {
	Name     string
	ParentID string
	Type     TaskType
	Data     TaskData
}

// TaskStore is the hierarchical task persistence the engine is built on.
// Transition methods return false without error when the node is already
// terminal, so replayed job callbacks are no-ops.
type TaskStore interface {
	CreateTask(ctx context.Context, in TaskInput) (*TaskNode, error)
	GetTask(ctx context.Context, id string) (*TaskNode, error)
	GetTaskByName(ctx context.Context, name string) (*TaskNode, error)
	ListChildren(ctx context.Context, parentID string) ([]*TaskNode, error)
	ListDescendants(ctx context.Context, rootID string) ([]*TaskNode, error)

	StartTask(ctx context.Context, id string) (bool, error)
	SucceedTask(ctx context.Context, id string, meta map[string]string) (bool, error)
	FailTask(ctx context.Context, id string, reason string) (bool, error)
	CancelTask(ctx context.Context, id string, reason string) (bool, error)
}
