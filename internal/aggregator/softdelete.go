package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
)

// SoftDelete marks the targeted occurrences soft-deleted-pending and
// schedules a deletion job for every calendar event that was created for
// them. Failures are per occurrence; already-processed occurrences keep
// their state.
func (a *Aggregator) SoftDelete(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := a.softDeleteOne(ctx, id); err != nil {
			logger.Error(ctx, "Soft delete failed", "occurrence", id, "error", err)
			errs = append(errs, fmt.Errorf("occurrence %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (a *Aggregator) softDeleteOne(ctx context.Context, id string) error {
	lock := a.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	occ, err := a.occurrences.GetOccurrence(ctx, id)
	if err != nil {
		return err
	}
	if occ.DeleteState == models.DeleteStateDone {
		return nil
	}
	if err := a.occurrences.SetDeleteState(ctx, id, models.DeleteStatePending); err != nil {
		return err
	}

	course, err := a.tasks.GetTaskByName(ctx, models.CourseTaskName(occ.Term, occ.ID))
	if err != nil {
		if models.IsNotFound(err) {
			// Never synced; nothing to delete remotely.
			return a.occurrences.SetDeleteState(ctx, id, models.DeleteStateDone)
		}
		return err
	}

	scheduled, err := a.scheduleDeletions(ctx, occ, course.ID)
	if err != nil {
		return err
	}
	if scheduled == 0 {
		return a.sweepOccurrence(ctx, id)
	}
	logger.Info(ctx, "Soft delete scheduled", "occurrence", id, "deletionJobs", scheduled)
	return nil
}

// scheduleDeletions creates one delete-leaf per successfully created calendar
// event under the occurrence's course task and enqueues its job. Re-running
// soft delete attaches to existing delete leaves instead of duplicating them.
func (a *Aggregator) scheduleDeletions(ctx context.Context, occ *models.CourseOccurrence, courseTaskID string) (int, error) {
	nodes, err := a.tasks.ListDescendants(ctx, courseTaskID)
	if err != nil {
		return 0, err
	}

	var scheduled int
	for _, node := range nodes {
		if node.Type != models.TaskTypeTeacherLeaf && node.Type != models.TaskTypeStudentLeaf {
			continue
		}
		if node.Status != models.TaskStatusSuccess || node.Data.Schedule == nil {
			continue
		}
		eventID := node.Meta["eventId"]
		if eventID == "" {
			continue
		}

		p := node.Data.Schedule
		leaf, err := a.tasks.CreateTask(ctx, models.TaskInput{
			Name:     models.DeleteLeafName(occ.ID, p.ParticipantID, eventID),
			ParentID: courseTaskID,
			Type:     models.TaskTypeDeleteLeaf,
			Data: models.TaskData{
				Kind: models.TaskTypeDeleteLeaf,
				Deletion: &models.DeletionPayload{
					OccurrenceID:  occ.ID,
					ParticipantID: p.ParticipantID,
					CalendarID:    p.CalendarID,
					EventID:       eventID,
					Summary:       p.CourseName,
				},
			},
		})
		if errors.Is(err, models.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return scheduled, err
		}
		if err := a.dispatcher.Dispatch(ctx, leaf); err != nil {
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, nil
}

// CompleteSoftDelete sweeps the term's pending rows and flips every one whose
// deletion jobs are all terminal to soft-deleted-done.
func (a *Aggregator) CompleteSoftDelete(ctx context.Context, term string) error {
	rows, err := a.occurrences.ListByDeleteState(ctx, term, models.DeleteStatePending)
	if err != nil {
		return err
	}
	var errs []error
	for _, occ := range rows {
		lock := a.lockFor(occ.ID)
		lock.Lock()
		err := a.sweepOccurrence(ctx, occ.ID)
		lock.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("occurrence %s: %w", occ.ID, err))
		}
	}
	return errors.Join(errs...)
}

// sweepOccurrence flips one pending row to done when no deletion job is still
// in flight. Zero deletion jobs counts as done. Caller holds the occurrence
// lock.
func (a *Aggregator) sweepOccurrence(ctx context.Context, id string) error {
	occ, err := a.occurrences.GetOccurrence(ctx, id)
	if err != nil {
		return err
	}
	if occ.DeleteState != models.DeleteStatePending {
		return nil
	}

	course, err := a.tasks.GetTaskByName(ctx, models.CourseTaskName(occ.Term, occ.ID))
	if err != nil && !models.IsNotFound(err) {
		return err
	}
	if course != nil {
		children, err := a.tasks.ListChildren(ctx, course.ID)
		if err != nil {
			return err
		}
		pending := lo.CountBy(children, func(c *models.TaskNode) bool {
			return c.Type == models.TaskTypeDeleteLeaf && !c.Status.IsTerminal()
		})
		if pending > 0 {
			return nil
		}
	}

	if err := a.occurrences.SetDeleteState(ctx, id, models.DeleteStateDone); err != nil {
		return err
	}
	logger.Info(ctx, "Soft delete completed", "occurrence", id)
	return nil
}
