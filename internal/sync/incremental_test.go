package sync

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uroborus2s/campus-sync/internal/models"
)

func TestIncrementalSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("FirstRunActsAsFullScan", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		seedCourse(h, "occ-1", "cs101", participants("t", 1), participants("s", 2))

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))

		root, err := h.tasks.GetTaskByName(ctx, models.RootTaskName("2026-spring"))
		require.NoError(t, err)
		nodes, err := h.tasks.ListDescendants(ctx, root.ID)
		require.NoError(t, err)
		assert.Len(t, nodes, 6)

		// The checkpoint advanced past the seeded row.
		checkpoint, err := h.checkpoints.GetCheckpoint(ctx, "2026-spring")
		require.NoError(t, err)
		assert.False(t, checkpoint.IsZero())
	})

	t.Run("UnchangedRowsAreSkipped", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		seedCourse(h, "occ-1", "cs101", participants("t", 1), nil)

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))
		jobsAfterFirst := len(h.queue.jobs)

		// Nothing changed since the checkpoint; the second pass is a no-op.
		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))
		assert.Equal(t, jobsAfterFirst, len(h.queue.jobs))
	})

	t.Run("DroppedParticipantGetsDeletionJob", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		students := participants("s", 2)
		seedCourse(h, "occ-1", "cs101", participants("t", 1), students)

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))

		// The dropped student's leaf completed with a recorded event id.
		leaf, err := h.tasks.GetTaskByName(ctx, models.StudentLeafName("occ-1", "s-02"))
		require.NoError(t, err)
		_, err = h.tasks.SucceedTask(ctx, leaf.ID, map[string]string{"eventId": "evt-s02"})
		require.NoError(t, err)

		// s-02 drops the course; the row's update timestamp moves forward.
		h.roster.SetStudents("cs101", students[0])
		h.occurrences.Put(&models.CourseOccurrence{
			ID:         "occ-1",
			CourseID:   "cs101",
			CourseName: "Operating Systems",
			Term:       "2026-spring",
			Date:       "2026-03-02",
			StartTime:  "08:00:00",
			EndTime:    "09:40:00",
			UpdatedAt:  time.Now().Add(time.Minute),
		})

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))

		deletions := lo.Filter(h.queue.jobs, func(j models.Job, _ int) bool {
			return j.Executor == models.ExecutorScheduleDelete
		})
		require.Len(t, deletions, 1)
		assert.Equal(t, "evt-s02", deletions[0].Payload.Deletion.EventID)
		assert.Equal(t, "s-02", deletions[0].Payload.Deletion.ParticipantID)

		// The delete leaf hangs off the course task.
		_, err = h.tasks.GetTaskByName(ctx, models.DeleteLeafName("occ-1", "s-02", "evt-s02"))
		require.NoError(t, err)
	})

	t.Run("MissingEventIDFallsBackToCalendarLookup", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		teachers := participants("t", 1)
		seedCourse(h, "occ-1", "cs101", teachers, nil)

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))

		// The leaf succeeded before event ids were written back.
		leaf, err := h.tasks.GetTaskByName(ctx, models.TeacherLeafName("occ-1", "t-01"))
		require.NoError(t, err)
		_, err = h.tasks.SucceedTask(ctx, leaf.ID, nil)
		require.NoError(t, err)

		h.gateway.events["cal-t-01"] = []*models.ScheduleEvent{
			{ID: "evt-legacy", Summary: "Operating Systems", Start: "2026-03-02T08:00:00+08:00"},
			{ID: "evt-other", Summary: "Another Course", Start: "2026-03-02T08:00:00+08:00"},
		}

		h.roster.SetTeachers("cs101")
		h.occurrences.Put(&models.CourseOccurrence{
			ID:         "occ-1",
			CourseID:   "cs101",
			CourseName: "Operating Systems",
			Term:       "2026-spring",
			Date:       "2026-03-02",
			StartTime:  "08:00:00",
			EndTime:    "09:40:00",
			UpdatedAt:  time.Now().Add(time.Minute),
		})

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))

		deletions := lo.Filter(h.queue.jobs, func(j models.Job, _ int) bool {
			return j.Executor == models.ExecutorScheduleDelete
		})
		require.Len(t, deletions, 1)
		assert.Equal(t, "evt-legacy", deletions[0].Payload.Deletion.EventID)
	})

	t.Run("SoftDeletedRowsAreIgnored", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		seedCourse(h, "occ-1", "cs101", participants("t", 1), nil)
		h.occurrences.Put(&models.CourseOccurrence{
			ID:          "occ-1",
			CourseID:    "cs101",
			CourseName:  "Operating Systems",
			Term:        "2026-spring",
			Date:        "2026-03-02",
			StartTime:   "08:00:00",
			EndTime:     "09:40:00",
			DeleteState: models.DeleteStatePending,
			UpdatedAt:   time.Now(),
		})

		require.NoError(t, h.engine.IncrementalSync(ctx, "2026-spring"))
		assert.Empty(t, h.queue.jobs)
	})
}
