package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uroborus2s/campus-sync/internal/models"
)

func rootInput(term string) models.TaskInput {
	return models.TaskInput{
		Name: models.RootTaskName(term),
		Type: models.TaskTypeRoot,
		Data: models.TaskData{Kind: models.TaskTypeRoot},
	}
}

func TestTaskStoreCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("NameCollisionReturnsAlreadyExists", func(t *testing.T) {
		t.Parallel()
		store := NewTaskStore()
		_, err := store.CreateTask(ctx, rootInput("2026-spring"))
		require.NoError(t, err)

		_, err = store.CreateTask(ctx, rootInput("2026-spring"))
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	})

	t.Run("UnknownParentRejected", func(t *testing.T) {
		t.Parallel()
		store := NewTaskStore()
		_, err := store.CreateTask(ctx, models.TaskInput{
			Name:     "course:2026-spring:occ-1",
			ParentID: "missing",
			Type:     models.TaskTypeCourse,
			Data: models.TaskData{
				Kind:   models.TaskTypeCourse,
				Course: &models.CoursePayload{OccurrenceID: "occ-1"},
			},
		})
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("InvalidPayloadRejected", func(t *testing.T) {
		t.Parallel()
		store := NewTaskStore()
		_, err := store.CreateTask(ctx, models.TaskInput{
			Name: "attend:occ-1",
			Type: models.TaskTypeAttendanceTable,
			Data: models.TaskData{Kind: models.TaskTypeAttendanceTable},
		})
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestTaskStoreTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("TerminalTransitionIsOneShot", func(t *testing.T) {
		t.Parallel()
		store := NewTaskStore()
		node, err := store.CreateTask(ctx, rootInput("2026-spring"))
		require.NoError(t, err)

		changed, err := store.StartTask(ctx, node.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = store.SucceedTask(ctx, node.ID, map[string]string{"eventId": "evt-1"})
		require.NoError(t, err)
		assert.True(t, changed)

		// Replayed callbacks are no-ops with no error.
		changed, err = store.SucceedTask(ctx, node.ID, nil)
		require.NoError(t, err)
		assert.False(t, changed)
		changed, err = store.FailTask(ctx, node.ID, "late failure")
		require.NoError(t, err)
		assert.False(t, changed)

		got, err := store.GetTask(ctx, node.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusSuccess, got.Status)
		assert.Equal(t, "evt-1", got.Meta["eventId"])
		assert.Empty(t, got.Reason)
	})

	t.Run("StartRequiresPending", func(t *testing.T) {
		t.Parallel()
		store := NewTaskStore()
		node, err := store.CreateTask(ctx, rootInput("2026-fall"))
		require.NoError(t, err)

		changed, err := store.StartTask(ctx, node.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = store.StartTask(ctx, node.ID)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("CancelRecordsReason", func(t *testing.T) {
		t.Parallel()
		store := NewTaskStore()
		node, err := store.CreateTask(ctx, rootInput("2027-spring"))
		require.NoError(t, err)

		changed, err := store.CancelTask(ctx, node.ID, "cancelled by operator")
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := store.GetTask(ctx, node.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCancelled, got.Status)
		assert.Equal(t, "cancelled by operator", got.Reason)
	})
}

func TestTaskStoreTraversal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	root, err := store.CreateTask(ctx, rootInput("2026-spring"))
	require.NoError(t, err)
	course, err := store.CreateTask(ctx, models.TaskInput{
		Name:     models.CourseTaskName("2026-spring", "occ-1"),
		ParentID: root.ID,
		Type:     models.TaskTypeCourse,
		Data: models.TaskData{
			Kind:   models.TaskTypeCourse,
			Course: &models.CoursePayload{OccurrenceID: "occ-1"},
		},
	})
	require.NoError(t, err)
	group, err := store.CreateTask(ctx, models.TaskInput{
		Name:     models.TeacherGroupName("occ-1"),
		ParentID: course.ID,
		Type:     models.TaskTypeTeacherGroup,
		Data: models.TaskData{
			Kind:   models.TaskTypeTeacherGroup,
			Course: &models.CoursePayload{OccurrenceID: "occ-1"},
		},
	})
	require.NoError(t, err)

	children, err := store.ListChildren(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, course.ID, children[0].ID)

	descendants, err := store.ListDescendants(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, descendants, 2)

	byName, err := store.GetTaskByName(ctx, models.TeacherGroupName("occ-1"))
	require.NoError(t, err)
	assert.Equal(t, group.ID, byName.ID)

	_, err = store.GetTaskByName(ctx, "nope")
	assert.True(t, models.IsNotFound(err))
}
