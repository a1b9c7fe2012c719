package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uroborus2s/campus-sync/internal/models"
)

// recordingQueue captures enqueued jobs.
type recordingQueue struct {
	jobs []models.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job models.Job) (string, error) {
	q.jobs = append(q.jobs, job)
	return "job-1", nil
}

func TestDispatcher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("AttendanceGoesOutHighPriority", func(t *testing.T) {
		t.Parallel()
		q := &recordingQueue{}
		d := NewDispatcher(q)

		err := d.Dispatch(ctx, &models.TaskNode{
			ID:   "task-1",
			Name: models.AttendanceTaskName("occ-1"),
			Type: models.TaskTypeAttendanceTable,
			Data: models.TaskData{
				Kind: models.TaskTypeAttendanceTable,
				Attendance: &models.AttendancePayload{
					OccurrenceID: "occ-1",
					CourseName:   "Operating Systems",
					Date:         "2026-03-02",
					StartTime:    "08:00:00",
					EndTime:      "09:40:00",
				},
			},
		})
		require.NoError(t, err)
		require.Len(t, q.jobs, 1)
		assert.Equal(t, models.ExecutorAttendanceCreate, q.jobs[0].Executor)
		assert.Equal(t, models.PriorityHigh, q.jobs[0].Priority)
	})

	t.Run("InvalidPayloadNeverEnqueued", func(t *testing.T) {
		t.Parallel()
		q := &recordingQueue{}
		d := NewDispatcher(q)

		err := d.Dispatch(ctx, &models.TaskNode{
			ID:   "task-2",
			Name: models.StudentLeafName("occ-1", "s-1"),
			Type: models.TaskTypeStudentLeaf,
			Data: models.TaskData{Kind: models.TaskTypeStudentLeaf},
		})
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Empty(t, q.jobs)
	})

	t.Run("NonLeafHasNoExecutor", func(t *testing.T) {
		t.Parallel()
		q := &recordingQueue{}
		d := NewDispatcher(q)

		err := d.Dispatch(ctx, &models.TaskNode{
			ID:   "task-3",
			Name: models.TeacherGroupName("occ-1"),
			Type: models.TaskTypeTeacherGroup,
		})
		assert.Error(t, err)
		assert.Empty(t, q.jobs)
	})
}
