package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/uroborus2s/campus-sync/internal/backoff"
	"github.com/uroborus2s/campus-sync/internal/dispatch"
	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
)

// Worker drains the queue with a pool of pollers. Each job runs its executor
// under the retry policy; only transient errors are retried, and retries are
// bounded here, never in the orchestration layer. Terminal outcomes are
// reported once to the completion handler.
type Worker struct {
	consumer Consumer
	registry *dispatch.Registry
	store    models.TaskStore
	handler  models.CompletionHandler
	policy   backoff.RetryPolicy
	pollers  int
}

// NewWorker creates a Worker.
func NewWorker(consumer Consumer, registry *dispatch.Registry, store models.TaskStore, handler models.CompletionHandler, policy backoff.RetryPolicy, pollers int) *Worker {
	if pollers <= 0 {
		pollers = 1
	}
	return &Worker{
		consumer: consumer,
		registry: registry,
		store:    store,
		handler:  handler,
		policy:   policy,
		pollers:  pollers,
	}
}

// Start launches the polling goroutines and blocks until the context is done
// or the queue closes.
func (w *Worker) Start(ctx context.Context) error {
	logger.Info(ctx, "Worker starting", "pollers", w.pollers)

	var wg sync.WaitGroup
	for i := 0; i < w.pollers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			w.runPoller(ctx, index)
		}(i)
	}
	wg.Wait()
	return nil
}

func (w *Worker) runPoller(ctx context.Context, index int) {
	for {
		job, err := w.consumer.Dequeue(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrQueueClosed) {
			return
		}
		if err != nil {
			logger.Error(ctx, "Dequeue failed", "poller", index, "error", err)
			continue
		}
		w.process(ctx, job)
	}
}

// process runs one job end to end. Outcomes reach the task tree only through
// the completion handler; a callback against an already-terminal node is a
// no-op there.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	defer func() {
		if panicObj := recover(); panicObj != nil {
			stack := string(debug.Stack())
			logger.Error(ctx, "Panic in job execution", "job", job.ID, "error", panicObj, "stack", stack)
			w.report(ctx, models.Completion{
				NodeID:  job.TaskID,
				Outcome: models.OutcomeFailure,
				Reason:  fmt.Sprintf("panic: %v", panicObj),
			})
		}
	}()

	node, err := w.store.GetTask(ctx, job.TaskID)
	if err != nil {
		logger.Error(ctx, "Job references unknown task", "job", job.ID, "task", job.TaskID, "error", err)
		return
	}
	if node.Status.IsTerminal() {
		// Cancelled or already completed while queued; drop silently.
		logger.Debug(ctx, "Skipping job for terminal task", "job", job.ID, "task", node.Name, "status", node.Status.String())
		return
	}
	if _, err := w.store.StartTask(ctx, job.TaskID); err != nil {
		logger.Error(ctx, "Failed to start task", "task", node.Name, "error", err)
	}

	executor, err := w.registry.Get(job.Executor)
	if err != nil {
		w.report(ctx, models.Completion{NodeID: job.TaskID, Outcome: models.OutcomeFailure, Reason: err.Error()})
		return
	}

	var meta map[string]string
	execErr := backoff.Retry(ctx, func(ctx context.Context) error {
		var err error
		meta, err = executor.Execute(ctx, *job)
		return err
	}, backoff.WithJitter(w.policy, backoff.FullJitter), models.IsRetryable)

	if execErr != nil {
		logger.Warn(ctx, "Job failed", "job", job.ID, "task", node.Name, "error", execErr)
		w.report(ctx, models.Completion{
			NodeID:  job.TaskID,
			Outcome: models.OutcomeFailure,
			Reason:  execErr.Error(),
		})
		return
	}

	logger.Debug(ctx, "Job succeeded", "job", job.ID, "task", node.Name)
	w.report(ctx, models.Completion{
		NodeID:  job.TaskID,
		Outcome: models.OutcomeSuccess,
		Meta:    meta,
	})
}

func (w *Worker) report(ctx context.Context, c models.Completion) {
	if err := w.handler.HandleCompletion(ctx, c); err != nil {
		logger.Error(ctx, "Completion handling failed", "task", c.NodeID, "outcome", c.Outcome.String(), "error", err)
	}
}
