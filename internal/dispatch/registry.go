// Package dispatch turns leaf task nodes into queued jobs and runs them
// against the external calendar gateway, one executor per leaf type.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/uroborus2s/campus-sync/internal/models"
)

// Executor runs one kind of external side effect. Execute must be safely
// retryable: creates are keyed by a deterministic idempotency token, deletes
// treat "already gone" as success.
type Executor interface {
	Name() models.ExecutorName
	// Execute performs the side effect and returns meta to record on the
	// task node, e.g. the created event id.
	Execute(ctx context.Context, job models.Job) (map[string]string, error)
}

// Registry maps executor names to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[models.ExecutorName]Executor
}

// NewRegistry creates a Registry with the given executors registered.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[models.ExecutorName]Executor)}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds an executor, replacing any existing one with the same name.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Name()] = e
}

// Get returns the executor registered under name.
func (r *Registry) Get(name models.ExecutorName) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("unknown executor %q", name)
	}
	return e, nil
}
