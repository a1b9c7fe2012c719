// Package aggregator consumes leaf completion events, rolls group completion
// up the task tree, and advances each course occurrence's sync status. It is
// the sole writer of occurrence sync columns.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/uroborus2s/campus-sync/internal/dispatch"
	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
)

var _ models.CompletionHandler = (*Aggregator)(nil)

// Aggregator is the single status-update consumer. Group completion is
// recomputed from live child rows on every event; cached counters can drift
// across crashes, live truth cannot.
type Aggregator struct {
	tasks       models.TaskStore
	occurrences models.OccurrenceStore
	dispatcher  *dispatch.Dispatcher

	// locks serializes rollups per occurrence so two siblings completing
	// concurrently cannot both observe "not yet complete" and drop the
	// group transition.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Aggregator. The dispatcher is used to schedule deletion jobs
// during the soft-delete lifecycle.
func New(tasks models.TaskStore, occurrences models.OccurrenceStore, dispatcher *dispatch.Dispatcher) *Aggregator {
	return &Aggregator{
		tasks:       tasks,
		occurrences: occurrences,
		dispatcher:  dispatcher,
		locks:       make(map[string]*sync.Mutex),
	}
}

// HandleCompletion implements models.CompletionHandler. The leaf transition
// goes through the task store only; a completion against an already-terminal
// node is a no-op.
func (a *Aggregator) HandleCompletion(ctx context.Context, c models.Completion) error {
	var (
		changed bool
		err     error
	)
	switch c.Outcome {
	case models.OutcomeSuccess:
		changed, err = a.tasks.SucceedTask(ctx, c.NodeID, c.Meta)
	default:
		changed, err = a.tasks.FailTask(ctx, c.NodeID, c.Reason)
	}
	if err != nil {
		return fmt.Errorf("failed to transition task %s: %w", c.NodeID, err)
	}
	if !changed {
		// Replayed callback or cancelled node.
		logger.Debug(ctx, "Completion ignored for terminal task", "task", c.NodeID)
		return nil
	}

	leaf, err := a.tasks.GetTask(ctx, c.NodeID)
	if err != nil {
		return err
	}
	occurrenceID := occurrenceIDOf(leaf)
	if occurrenceID == "" {
		return nil
	}
	return a.rollup(ctx, occurrenceID, leaf)
}

// rollup recomputes completion bottom-up for one occurrence and advances its
// sync status from live tree state.
func (a *Aggregator) rollup(ctx context.Context, occurrenceID string, leaf *models.TaskNode) error {
	lock := a.lockFor(occurrenceID)
	lock.Lock()
	defer lock.Unlock()

	if err := a.finalizeAncestors(ctx, leaf); err != nil {
		return err
	}
	if err := a.advanceOccurrence(ctx, occurrenceID); err != nil {
		return err
	}
	if leaf.Type == models.TaskTypeDeleteLeaf {
		if err := a.sweepOccurrence(ctx, occurrenceID); err != nil {
			return err
		}
	}
	return nil
}

// finalizeAncestors walks the parent chain, finishing every ancestor whose
// children are now all terminal. A group with failed children finishes failed
// with the failed count as reason.
func (a *Aggregator) finalizeAncestors(ctx context.Context, node *models.TaskNode) error {
	parentID := node.ParentID
	for parentID != "" {
		parent, err := a.tasks.GetTask(ctx, parentID)
		if err != nil {
			return err
		}
		children, err := a.tasks.ListChildren(ctx, parent.ID)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			break
		}
		if lo.SomeBy(children, func(c *models.TaskNode) bool { return !c.Status.IsTerminal() }) {
			break
		}

		failed := lo.CountBy(children, func(c *models.TaskNode) bool {
			return c.Status == models.TaskStatusFailed || c.Status == models.TaskStatusCancelled
		})
		if failed == 0 {
			if _, err := a.tasks.SucceedTask(ctx, parent.ID, nil); err != nil {
				return err
			}
		} else {
			reason := fmt.Sprintf("%d of %d child tasks failed", failed, len(children))
			if _, err := a.tasks.FailTask(ctx, parent.ID, reason); err != nil {
				return err
			}
		}
		logger.Debug(ctx, "Group completed", "task", parent.Name, "failed", failed, "children", len(children))
		parentID = parent.ParentID
	}
	return nil
}

// advanceOccurrence moves sync status forward once the relevant branches are
// terminal. A branch that was never created (zero enrolled students) counts
// as complete; a group with no children can never satisfy "all children
// terminal", so that branch must not exist at all.
func (a *Aggregator) advanceOccurrence(ctx context.Context, occurrenceID string) error {
	attendanceDone, err := a.branchTerminal(ctx, models.AttendanceTaskName(occurrenceID))
	if err != nil {
		return err
	}
	teachersDone, err := a.branchTerminal(ctx, models.TeacherGroupName(occurrenceID))
	if err != nil {
		return err
	}
	if !attendanceDone || !teachersDone {
		return nil
	}

	now := time.Now()
	if err := a.occurrences.SetSyncStatus(ctx, occurrenceID, models.SyncStatusTeacherSynced, now); err != nil {
		return err
	}

	studentsDone, err := a.branchTerminal(ctx, models.StudentGroupName(occurrenceID))
	if err != nil {
		return err
	}
	if !studentsDone {
		return nil
	}
	if err := a.occurrences.SetSyncStatus(ctx, occurrenceID, models.SyncStatusStudentSynced, now); err != nil {
		return err
	}
	logger.Info(ctx, "Occurrence fully synced", "occurrence", occurrenceID)
	return nil
}

// branchTerminal reports whether the named node is terminal. Absent branches
// read as terminal.
func (a *Aggregator) branchTerminal(ctx context.Context, name string) (bool, error) {
	node, err := a.tasks.GetTaskByName(ctx, name)
	if err != nil {
		if models.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return node.Status.IsTerminal(), nil
}

func (a *Aggregator) lockFor(occurrenceID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[occurrenceID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[occurrenceID] = lock
	}
	return lock
}

// occurrenceIDOf extracts the occurrence a leaf belongs to from its payload.
func occurrenceIDOf(node *models.TaskNode) string {
	switch {
	case node.Data.Schedule != nil:
		return node.Data.Schedule.OccurrenceID
	case node.Data.Attendance != nil:
		return node.Data.Attendance.OccurrenceID
	case node.Data.Deletion != nil:
		return node.Data.Deletion.OccurrenceID
	case node.Data.Course != nil:
		return node.Data.Course.OccurrenceID
	default:
		return ""
	}
}
