// Package queue provides the async job execution layer: queue backends and
// the worker pool that drains them. Retry with backoff is owned here, not by
// the orchestration layer.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/uroborus2s/campus-sync/internal/models"
)

// ErrQueueClosed is returned by Dequeue after Close.
var ErrQueueClosed = errors.New("queue is closed")

// Consumer is the worker-side view of a queue. Dequeue blocks until a job is
// available, the context is done, or the queue is closed.
type Consumer interface {
	Dequeue(ctx context.Context) (*models.Job, error)
}

var (
	_ models.JobQueue = (*MemoryQueue)(nil)
	_ Consumer        = (*MemoryQueue)(nil)
)

// MemoryQueue is a channel-backed queue for tests and local mode. High
// priority drains before low, matching the attendance-before-schedules
// dispatch order.
type MemoryQueue struct {
	high   chan models.Job
	low    chan models.Job
	closed chan struct{}
}

// NewMemoryQueue creates a MemoryQueue with the given per-priority capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		high:   make(chan models.Job, capacity),
		low:    make(chan models.Job, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue implements models.JobQueue.
func (q *MemoryQueue) Enqueue(ctx context.Context, job models.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ch := q.low
	if job.Priority == models.PriorityHigh {
		ch = q.high
	}
	select {
	case ch <- job:
		return job.ID, nil
	case <-q.closed:
		return "", ErrQueueClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Dequeue implements Consumer.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*models.Job, error) {
	// Drain high first without blocking.
	select {
	case job := <-q.high:
		return &job, nil
	default:
	}
	select {
	case job := <-q.high:
		return &job, nil
	case job := <-q.low:
		return &job, nil
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops all blocked producers and consumers.
func (q *MemoryQueue) Close() {
	close(q.closed)
}

// Len returns the number of queued jobs across priorities.
func (q *MemoryQueue) Len() int {
	return len(q.high) + len(q.low)
}
