// Package memory provides in-memory implementations of the engine's
// collaborator interfaces for tests and local mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.TaskStore = (*TaskStore)(nil)

// TaskStore keeps the task tree in memory. Name uniqueness is enforced the
// same way the Postgres store does it, so the orchestrator's conflict
// handling is exercised identically in tests.
type TaskStore struct {
	mu       sync.Mutex
	byID     map[string]*models.TaskNode
	byName   map[string]string
	children map[string][]string
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		byID:     make(map[string]*models.TaskNode),
		byName:   make(map[string]string),
		children: make(map[string][]string),
	}
}

// CreateTask implements models.TaskStore.
func (s *TaskStore) CreateTask(_ context.Context, in models.TaskInput) (*models.TaskNode, error) {
	if err := in.Data.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[in.Name]; ok {
		return nil, models.ErrAlreadyExists
	}
	if in.ParentID != "" {
		if _, ok := s.byID[in.ParentID]; !ok {
			return nil, models.NewNotFoundError("task", in.ParentID)
		}
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
	s.byID[node.ID] = node
	s.byName[node.Name] = node.ID
	if in.ParentID != "" {
		s.children[in.ParentID] = append(s.children[in.ParentID], node.ID)
	}
	return copyNode(node), nil
}

// GetTask implements models.TaskStore.
func (s *TaskStore) GetTask(_ context.Context, id string) (*models.TaskNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.byID[id]
	if !ok {
		return nil, models.NewNotFoundError("task", id)
	}
	return copyNode(node), nil
}

// GetTaskByName implements models.TaskStore.
func (s *TaskStore) GetTaskByName(_ context.Context, name string) (*models.TaskNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, models.NewNotFoundError("task", name)
	}
	return copyNode(s.byID[id]), nil
}

// ListChildren implements models.TaskStore.
func (s *TaskStore) ListChildren(_ context.Context, parentID string) ([]*models.TaskNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var nodes []*models.TaskNode
	for _, id := range s.children[parentID] {
		nodes = append(nodes, copyNode(s.byID[id]))
	}
	return nodes, nil
}

// ListDescendants implements models.TaskStore.
func (s *TaskStore) ListDescendants(_ context.Context, rootID string) ([]*models.TaskNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rootID]; !ok {
		return nil, models.NewNotFoundError("task", rootID)
	}
	var nodes []*models.TaskNode
	queue := append([]string(nil), s.children[rootID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		nodes = append(nodes, copyNode(s.byID[id]))
		queue = append(queue, s.children[id]...)
	}
	return nodes, nil
}

// StartTask implements models.TaskStore.
func (s *TaskStore) StartTask(_ context.Context, id string) (bool, error) {
	return s.transition(id, models.TaskStatusRunning, "", nil)
}

// SucceedTask implements models.TaskStore.
func (s *TaskStore) SucceedTask(_ context.Context, id string, meta map[string]string) (bool, error) {
	return s.transition(id, models.TaskStatusSuccess, "", meta)
}

// FailTask implements models.TaskStore.
func (s *TaskStore) FailTask(_ context.Context, id string, reason string) (bool, error) {
	return s.transition(id, models.TaskStatusFailed, reason, nil)
}

// CancelTask implements models.TaskStore.
func (s *TaskStore) CancelTask(_ context.Context, id string, reason string) (bool, error) {
	return s.transition(id, models.TaskStatusCancelled, reason, nil)
}

func (s *TaskStore) transition(id string, to models.TaskStatus, reason string, meta map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.byID[id]
	if !ok {
		return false, models.NewNotFoundError("task", id)
	}
	// Replayed callbacks against terminal nodes are no-ops.
	if node.Status.IsTerminal() {
		return false, nil
	}
	if to == models.TaskStatusRunning && node.Status != models.TaskStatusPending {
		return false, nil
	}

	node.Status = to
	node.Reason = reason
	node.UpdatedAt = time.Now()
	if len(meta) > 0 {
		if node.Meta == nil {
			node.Meta = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			node.Meta[k] = v
		}
	}
	return true, nil
}

func copyNode(n *models.TaskNode) *models.TaskNode {
	c := *n
	if n.Meta != nil {
		c.Meta = make(map[string]string, len(n.Meta))
		for k, v := range n.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}
