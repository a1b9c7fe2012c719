package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
	"github.com/uroborus2s/campus-sync/internal/timeutil"
)

// IncrementalSync reconciles every occurrence whose source data changed since
// the term's checkpoint: stale events of dropped participants get deletion
// jobs, newly added participants get schedule leaves, and the checkpoint
// advances to the newest row seen. A missing checkpoint reads as the zero
// time, so the first run degenerates to a full scan.
func (e *Engine) IncrementalSync(ctx context.Context, term string) error {
	since, err := e.checkpoints.GetCheckpoint(ctx, term)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint for term %s: %w", term, err)
	}
	rows, err := e.occurrences.ListChangedSince(ctx, term, since)
	if err != nil {
		return fmt.Errorf("failed to list changed occurrences: %w", err)
	}
	if len(rows) == 0 {
		logger.Debug(ctx, "Incremental sync found no changes", "term", term, "since", since)
		return nil
	}

	idx := newNameIndex(e.tasks)
	root, _, err := idx.findOrCreate(ctx, models.TaskInput{
		Name: models.RootTaskName(term),
		Type: models.TaskTypeRoot,
		Data: models.TaskData{Kind: models.TaskTypeRoot},
	})
	if err != nil {
		return fmt.Errorf("failed to ensure root task: %w", err)
	}
	if err := idx.preload(ctx, root.ID); err != nil {
		return err
	}

	logger.Info(ctx, "Incremental sync starting", "term", term, "since", since, "changed", len(rows))

	checkpoint := since
	for _, occ := range rows {
		if occ.UpdatedAt.After(checkpoint) {
			checkpoint = occ.UpdatedAt
		}
		if occ.DeleteState != models.DeleteStateNone {
			continue
		}
		if err := e.reconcileOccurrence(ctx, idx, root.ID, occ); err != nil {
			logger.Error(ctx, "Skipping occurrence", "course", occ.CourseID, "occurrence", occ.ID, "error", err)
		}
	}

	if checkpoint.After(since) {
		if err := e.checkpoints.SetCheckpoint(ctx, term, checkpoint); err != nil {
			return fmt.Errorf("failed to advance checkpoint: %w", err)
		}
	}
	return nil
}

// reconcileOccurrence deletes events of participants no longer on the roster,
// then re-expands the subtree so new participants get leaves. Deletion runs
// first so a participant swap cannot briefly hold two events.
func (e *Engine) reconcileOccurrence(ctx context.Context, idx *nameIndex, rootID string, occ *models.CourseOccurrence) error {
	teachers, err := e.roster.FindTeachers(ctx, occ.CourseID)
	if err != nil {
		return fmt.Errorf("failed to resolve teachers: %w", err)
	}
	students, err := e.roster.FindStudents(ctx, occ.CourseID, occ.Term)
	if err != nil {
		return fmt.Errorf("failed to resolve students: %w", err)
	}
	current := lo.SliceToMap(append(teachers, students...), func(p *models.Participant) (string, struct{}) {
		return p.ID, struct{}{}
	})

	course, err := e.tasks.GetTaskByName(ctx, models.CourseTaskName(occ.Term, occ.ID))
	if err != nil && !models.IsNotFound(err) {
		return err
	}
	if course != nil {
		if err := e.deleteStaleLeaves(ctx, occ, course.ID, current); err != nil {
			return err
		}
	}
	return e.syncOccurrence(ctx, idx, rootID, occ)
}

// deleteStaleLeaves schedules a deletion job for every successful schedule
// leaf whose participant left the roster.
func (e *Engine) deleteStaleLeaves(ctx context.Context, occ *models.CourseOccurrence, courseTaskID string, current map[string]struct{}) error {
	nodes, err := e.tasks.ListDescendants(ctx, courseTaskID)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if node.Type != models.TaskTypeTeacherLeaf && node.Type != models.TaskTypeStudentLeaf {
			continue
		}
		p := node.Data.Schedule
		if p == nil || node.Status != models.TaskStatusSuccess {
			continue
		}
		if _, still := current[p.ParticipantID]; still {
			continue
		}

		eventID := node.Meta["eventId"]
		if eventID == "" {
			// Leaf predates event-id write-back; locate the event by its
			// time window and summary.
			eventID, err = e.findEventByWindow(ctx, p)
			if err != nil {
				return err
			}
			if eventID == "" {
				logger.Warn(ctx, "Stale event not found on calendar", "occurrence", occ.ID, "participant", p.ParticipantID)
				continue
			}
		}

		leaf, err := e.tasks.CreateTask(ctx, models.TaskInput{
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
			return err
		}
		if err := e.dispatcher.Dispatch(ctx, leaf); err != nil {
			return err
		}
		logger.Info(ctx, "Stale event deletion scheduled", "occurrence", occ.ID, "participant", p.ParticipantID, "event", eventID)
	}
	return nil
}

// findEventByWindow matches a calendar event by start time and summary. The
// lookup spans the leaf's original window padded by a day on each side to
// absorb provider-side rounding.
func (e *Engine) findEventByWindow(ctx context.Context, p *models.SchedulePayload) (string, error) {
	window := timeutil.Compute(e.location, p.Date, p.StartTime, p.EndTime)
	start, err := time.Parse(time.RFC3339, window.Start)
	if err != nil {
		return "", nil
	}
	events, err := e.gateway.ListSchedules(ctx, p.CalendarID, start.Add(-24*time.Hour), start.Add(24*time.Hour))
	if err != nil {
		return "", err
	}
	for _, ev := range events {
		if ev.Summary == p.CourseName && ev.Start == window.Start {
			return ev.ID, nil
		}
	}
	return "", nil
}
