package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.TaskStore = (*TaskStore)(nil)

// TaskStore persists the task tree in the task_nodes table. The UNIQUE
// constraint on name is the store-side half of the find-or-create idempotency
// contract: a lost race surfaces as ErrAlreadyExists, never as a duplicate.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore creates a TaskStore over the given pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

const taskColumns = `id, coalesce(parent_id::text, ''), name, type, status, data, coalesce(reason, ''), coalesce(meta, '{}'::jsonb), created_at, updated_at`

// CreateTask implements models.TaskStore.
func (s *TaskStore) CreateTask(ctx context.Context, in models.TaskInput) (*models.TaskNode, error) {
	if err := in.Data.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task data: %w", err)
	}

	now := time.Now()
	node := &models.TaskNode{
		ID:        uuid.NewString(),
		ParentID:  in.ParentID,
		Name:      in.Name,
		Type:      in.Type,
		Status:    models.TaskStatusPending,
		Data:      in.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var parentID any
	if in.ParentID != "" {
		parentID = in.ParentID
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO task_nodes (id, parent_id, name, type, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		node.ID, parentID, node.Name, string(node.Type), int(node.Status), data, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert task %s: %w", in.Name, err)
	}
	return node, nil
}

// GetTask implements models.TaskStore.
func (s *TaskStore) GetTask(ctx context.Context, id string) (*models.TaskNode, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM task_nodes WHERE id = $1`, id)
	return scanTask(row, "task", id)
}

// GetTaskByName implements models.TaskStore.
func (s *TaskStore) GetTaskByName(ctx context.Context, name string) (*models.TaskNode, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM task_nodes WHERE name = $1`, name)
	return scanTask(row, "task", name)
}

// ListChildren implements models.TaskStore.
func (s *TaskStore) ListChildren(ctx context.Context, parentID string) ([]*models.TaskNode, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM task_nodes WHERE parent_id = $1 ORDER BY created_at`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", parentID, err)
	}
	return scanTasks(rows)
}

// ListDescendants implements models.TaskStore. The recursive CTE walks the
// whole subtree in one round trip.
func (s *TaskStore) ListDescendants(ctx context.Context, rootID string) ([]*models.TaskNode, error) {
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT * FROM task_nodes WHERE parent_id = $1
			UNION ALL
			SELECT t.* FROM task_nodes t JOIN subtree s ON t.parent_id = s.id
		)
		SELECT `+taskColumns+` FROM subtree ORDER BY created_at`, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list descendants of %s: %w", rootID, err)
	}
	return scanTasks(rows)
}

// StartTask implements models.TaskStore.
func (s *TaskStore) StartTask(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE task_nodes SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, int(models.TaskStatusRunning), int(models.TaskStatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to start task %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SucceedTask implements models.TaskStore.
func (s *TaskStore) SucceedTask(ctx context.Context, id string, meta map[string]string) (bool, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return false, fmt.Errorf("failed to marshal meta: %w", err)
	}
	return s.finish(ctx, id, models.TaskStatusSuccess, "", metaJSON)
}

// FailTask implements models.TaskStore.
func (s *TaskStore) FailTask(ctx context.Context, id string, reason string) (bool, error) {
	return s.finish(ctx, id, models.TaskStatusFailed, reason, nil)
}

// CancelTask implements models.TaskStore.
func (s *TaskStore) CancelTask(ctx context.Context, id string, reason string) (bool, error) {
	return s.finish(ctx, id, models.TaskStatusCancelled, reason, nil)
}

// finish moves a node to a terminal status. The status guard in the WHERE
// clause makes replayed callbacks no-ops.
func (s *TaskStore) finish(ctx context.Context, id string, to models.TaskStatus, reason string, metaJSON []byte) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE task_nodes
		SET status = $2,
		    reason = nullif($3, ''),
		    meta = coalesce(meta, '{}'::jsonb) || coalesce($4::jsonb, '{}'::jsonb),
		    updated_at = now()
		WHERE id = $1 AND status IN ($5, $6)`,
		id, int(to), reason, nullableJSON(metaJSON),
		int(models.TaskStatusPending), int(models.TaskStatusRunning))
	if err != nil {
		return false, fmt.Errorf("failed to finish task %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner, kind, key string) (*models.TaskNode, error) {
	var (
		node     models.TaskNode
		typ      string
		status   int
		dataJSON []byte
		metaJSON []byte
	)
	err := row.Scan(&node.ID, &node.ParentID, &node.Name, &typ, &status, &dataJSON, &node.Reason, &metaJSON, &node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return nil, notFound(err, kind, key)
	}
	node.Type = models.TaskType(typ)
	node.Status = models.TaskStatus(status)
	if err := json.Unmarshal(dataJSON, &node.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &node.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task meta: %w", err)
		}
	}
	return &node, nil
}

func scanTasks(rows pgx.Rows) ([]*models.TaskNode, error) {
	defer rows.Close()
	var nodes []*models.TaskNode
	for rows.Next() {
		node, err := scanTask(rows, "task", "")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
