package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uroborus2s/campus-sync/internal/dispatch"
	"github.com/uroborus2s/campus-sync/internal/models"
	"github.com/uroborus2s/campus-sync/internal/persistence/memory"
)

// recordingQueue captures jobs the aggregator schedules during soft delete.
type recordingQueue struct {
	jobs []models.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job models.Job) (string, error) {
	q.jobs = append(q.jobs, job)
	return fmt.Sprintf("job-%d", len(q.jobs)), nil
}

type fixture struct {
	tasks       *memory.TaskStore
	occurrences *memory.OccurrenceStore
	queue       *recordingQueue
	agg         *Aggregator

	root  *models.TaskNode
	nodes map[string]*models.TaskNode
}

func occurrenceRow(id string) *models.CourseOccurrence {
	return &models.CourseOccurrence{
		ID:         id,
		CourseID:   "cs101",
		CourseName: "Operating Systems",
		Term:       "2026-spring",
		Date:       "2026-03-02",
		StartTime:  "08:00:00",
		EndTime:    "09:40:00",
	}
}

// newFixture builds an occurrence subtree with the given participants. Empty
// participant slices mean the branch is not created at all.
func newFixture(t *testing.T, occID string, teacherIDs, studentIDs []string) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		tasks:       memory.NewTaskStore(),
		occurrences: memory.NewOccurrenceStore(occurrenceRow(occID)),
		queue:       &recordingQueue{},
		nodes:       make(map[string]*models.TaskNode),
	}
	f.agg = New(f.tasks, f.occurrences, dispatch.NewDispatcher(f.queue))

	course := &models.CoursePayload{
		OccurrenceID: occID,
		CourseID:     "cs101",
		CourseName:   "Operating Systems",
		Term:         "2026-spring",
	}

	root, err := f.tasks.CreateTask(ctx, models.TaskInput{
		Name: models.RootTaskName("2026-spring"),
		Type: models.TaskTypeRoot,
		Data: models.TaskData{Kind: models.TaskTypeRoot},
	})
	require.NoError(t, err)
	f.root = root

	courseNode := f.create(t, models.TaskInput{
		Name:     models.CourseTaskName("2026-spring", occID),
		ParentID: root.ID,
		Type:     models.TaskTypeCourse,
		Data:     models.TaskData{Kind: models.TaskTypeCourse, Course: course},
	})

	f.create(t, models.TaskInput{
		Name:     models.AttendanceTaskName(occID),
		ParentID: courseNode.ID,
		Type:     models.TaskTypeAttendanceTable,
		Data: models.TaskData{
			Kind: models.TaskTypeAttendanceTable,
			Attendance: &models.AttendancePayload{
				OccurrenceID: occID,
				CourseID:     "cs101",
				CourseName:   "Operating Systems",
				Term:         "2026-spring",
				Date:         "2026-03-02",
				StartTime:    "08:00:00",
				EndTime:      "09:40:00",
			},
		},
	})

	f.createBranch(t, courseNode.ID, occID, models.RoleTeacher, teacherIDs)
	f.createBranch(t, courseNode.ID, occID, models.RoleStudent, studentIDs)
	return f
}

func (f *fixture) create(t *testing.T, in models.TaskInput) *models.TaskNode {
	t.Helper()
	node, err := f.tasks.CreateTask(context.Background(), in)
	require.NoError(t, err)
	f.nodes[in.Name] = node
	return node
}

func (f *fixture) createBranch(t *testing.T, courseTaskID, occID string, role models.Role, ids []string) {
	t.Helper()
	if len(ids) == 0 {
		return
	}
	groupName, groupType, leafType := models.TeacherGroupName(occID), models.TaskTypeTeacherGroup, models.TaskTypeTeacherLeaf
	if role == models.RoleStudent {
		groupName, groupType, leafType = models.StudentGroupName(occID), models.TaskTypeStudentGroup, models.TaskTypeStudentLeaf
	}
	group := f.create(t, models.TaskInput{
		Name:     groupName,
		ParentID: courseTaskID,
		Type:     groupType,
		Data: models.TaskData{
			Kind:   groupType,
			Course: &models.CoursePayload{OccurrenceID: occID, CourseID: "cs101", CourseName: "Operating Systems", Term: "2026-spring"},
		},
	})
	for _, id := range ids {
		leafName := models.TeacherLeafName(occID, id)
		if role == models.RoleStudent {
			leafName = models.StudentLeafName(occID, id)
		}
		f.create(t, models.TaskInput{
			Name:     leafName,
			ParentID: group.ID,
			Type:     leafType,
			Data: models.TaskData{
				Kind: leafType,
				Schedule: &models.SchedulePayload{
					OccurrenceID:  occID,
					CourseID:      "cs101",
					CourseName:    "Operating Systems",
					Term:          "2026-spring",
					ParticipantID: id,
					CalendarID:    "cal-" + id,
					Role:          role,
					Date:          "2026-03-02",
					StartTime:     "08:00:00",
					EndTime:       "09:40:00",
				},
			},
		})
	}
}

func (f *fixture) succeed(t *testing.T, name string, meta map[string]string) {
	t.Helper()
	require.NoError(t, f.agg.HandleCompletion(context.Background(), models.Completion{
		NodeID:  f.nodes[name].ID,
		Outcome: models.OutcomeSuccess,
		Meta:    meta,
	}))
}

func (f *fixture) fail(t *testing.T, name, reason string) {
	t.Helper()
	require.NoError(t, f.agg.HandleCompletion(context.Background(), models.Completion{
		NodeID:  f.nodes[name].ID,
		Outcome: models.OutcomeFailure,
		Reason:  reason,
	}))
}

func (f *fixture) status(t *testing.T, occID string) models.SyncStatus {
	t.Helper()
	occ, err := f.occurrences.GetOccurrence(context.Background(), occID)
	require.NoError(t, err)
	return occ.SyncStatus
}

func (f *fixture) nodeStatus(t *testing.T, name string) models.TaskStatus {
	t.Helper()
	node, err := f.tasks.GetTaskByName(context.Background(), name)
	require.NoError(t, err)
	return node.Status
}

func TestAggregatorAdvancesStatus(t *testing.T) {
	t.Parallel()

	t.Run("TeacherSyncedThenStudentSynced", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-1", []string{"t-1", "t-2"}, []string{"s-1", "s-2"})

		f.succeed(t, models.AttendanceTaskName("occ-1"), map[string]string{"sheetId": "sheet-1"})
		assert.Equal(t, models.SyncStatusUnsynced, f.status(t, "occ-1"))

		f.succeed(t, models.TeacherLeafName("occ-1", "t-1"), map[string]string{"eventId": "evt-t1"})
		assert.Equal(t, models.SyncStatusUnsynced, f.status(t, "occ-1"))

		f.succeed(t, models.TeacherLeafName("occ-1", "t-2"), map[string]string{"eventId": "evt-t2"})
		assert.Equal(t, models.SyncStatusTeacherSynced, f.status(t, "occ-1"))
		assert.Equal(t, models.TaskStatusSuccess, f.nodeStatus(t, models.TeacherGroupName("occ-1")))

		f.succeed(t, models.StudentLeafName("occ-1", "s-1"), map[string]string{"eventId": "evt-s1"})
		assert.Equal(t, models.SyncStatusTeacherSynced, f.status(t, "occ-1"))

		f.succeed(t, models.StudentLeafName("occ-1", "s-2"), map[string]string{"eventId": "evt-s2"})
		assert.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-1"))

		// The whole subtree rolled up.
		assert.Equal(t, models.TaskStatusSuccess, f.nodeStatus(t, models.CourseTaskName("2026-spring", "occ-1")))
		root, err := f.tasks.GetTask(context.Background(), f.root.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusSuccess, root.Status)
	})

	t.Run("StudentsFinishingFirstDoesNotSkipStages", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-2", []string{"t-1"}, []string{"s-1"})

		f.succeed(t, models.StudentLeafName("occ-2", "s-1"), map[string]string{"eventId": "evt-s1"})
		assert.Equal(t, models.SyncStatusUnsynced, f.status(t, "occ-2"))

		f.succeed(t, models.AttendanceTaskName("occ-2"), nil)
		assert.Equal(t, models.SyncStatusUnsynced, f.status(t, "occ-2"))

		// The last completion observes every branch terminal and advances
		// through both stages.
		f.succeed(t, models.TeacherLeafName("occ-2", "t-1"), map[string]string{"eventId": "evt-t1"})
		assert.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-2"))
	})

	t.Run("ReplayedCompletionIsNoOp", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-3", []string{"t-1"}, nil)

		f.succeed(t, models.TeacherLeafName("occ-3", "t-1"), map[string]string{"eventId": "evt-1"})
		f.succeed(t, models.AttendanceTaskName("occ-3"), nil)
		require.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-3"))

		// A duplicate callback, as at-least-once delivery produces, changes
		// nothing and reports no error.
		f.fail(t, models.TeacherLeafName("occ-3", "t-1"), "late duplicate")
		assert.Equal(t, models.TaskStatusSuccess, f.nodeStatus(t, models.TeacherLeafName("occ-3", "t-1")))
		assert.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-3"))
	})

	t.Run("AbsentStudentBranchCountsAsComplete", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-4", []string{"t-1"}, nil)

		f.succeed(t, models.AttendanceTaskName("occ-4"), nil)
		f.succeed(t, models.TeacherLeafName("occ-4", "t-1"), map[string]string{"eventId": "evt-1"})

		// No student group exists, so the occurrence goes straight to
		// student-synced.
		assert.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-4"))
	})
}

func TestAggregatorGroupCompletion(t *testing.T) {
	t.Parallel()

	t.Run("FailedChildFailsGroupWithCount", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-5", []string{"t-1"}, []string{"s-1", "s-2", "s-3"})

		f.succeed(t, models.AttendanceTaskName("occ-5"), nil)
		f.succeed(t, models.TeacherLeafName("occ-5", "t-1"), nil)
		f.succeed(t, models.StudentLeafName("occ-5", "s-1"), nil)
		f.fail(t, models.StudentLeafName("occ-5", "s-2"), "calendar rejected participant")
		f.succeed(t, models.StudentLeafName("occ-5", "s-3"), nil)

		group, err := f.tasks.GetTaskByName(context.Background(), models.StudentGroupName("occ-5"))
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusFailed, group.Status)
		assert.Equal(t, "1 of 3 child tasks failed", group.Reason)

		// Terminal is terminal: the occurrence still advances even though a
		// leaf failed, and the failure stays visible on the tree.
		assert.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-5"))
	})

	t.Run("GroupStaysOpenWhileChildrenRun", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-6", []string{"t-1", "t-2"}, nil)

		f.succeed(t, models.TeacherLeafName("occ-6", "t-1"), nil)
		assert.Equal(t, models.TaskStatusPending, f.nodeStatus(t, models.TeacherGroupName("occ-6")))
	})
}

func TestSoftDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	completeAll := func(t *testing.T, f *fixture, occID string, teacherIDs, studentIDs []string) {
		t.Helper()
		f.succeed(t, models.AttendanceTaskName(occID), map[string]string{"sheetId": "sheet-1"})
		for _, id := range teacherIDs {
			f.succeed(t, models.TeacherLeafName(occID, id), map[string]string{"eventId": "evt-" + id})
		}
		for _, id := range studentIDs {
			f.succeed(t, models.StudentLeafName(occID, id), map[string]string{"eventId": "evt-" + id})
		}
	}

	t.Run("SchedulesDeletionPerCreatedEvent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-7", []string{"t-1"}, []string{"s-1"})
		completeAll(t, f, "occ-7", []string{"t-1"}, []string{"s-1"})

		require.NoError(t, f.agg.SoftDelete(ctx, []string{"occ-7"}))

		occ, err := f.occurrences.GetOccurrence(ctx, "occ-7")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteStatePending, occ.DeleteState)

		var deletions []models.Job
		for _, job := range f.queue.jobs {
			if job.Executor == models.ExecutorScheduleDelete {
				deletions = append(deletions, job)
			}
		}
		require.Len(t, deletions, 2)

		// Deletion jobs completing flips the occurrence to done.
		for _, job := range deletions {
			node, err := f.tasks.GetTask(ctx, job.TaskID)
			require.NoError(t, err)
			require.NoError(t, f.agg.HandleCompletion(ctx, models.Completion{
				NodeID:  node.ID,
				Outcome: models.OutcomeSuccess,
				Meta:    map[string]string{"deletedEventId": job.Payload.Deletion.EventID},
			}))
		}
		occ, err = f.occurrences.GetOccurrence(ctx, "occ-7")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteStateDone, occ.DeleteState)
	})

	t.Run("RerunAttachesToExistingDeleteLeaves", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-8", []string{"t-1"}, nil)
		completeAll(t, f, "occ-8", []string{"t-1"}, nil)

		require.NoError(t, f.agg.SoftDelete(ctx, []string{"occ-8"}))
		jobsAfterFirst := len(f.queue.jobs)
		require.NoError(t, f.agg.SoftDelete(ctx, []string{"occ-8"}))
		assert.Equal(t, jobsAfterFirst, len(f.queue.jobs))
	})

	t.Run("NeverSyncedGoesStraightToDone", func(t *testing.T) {
		t.Parallel()
		occurrences := memory.NewOccurrenceStore(occurrenceRow("occ-9"))
		tasks := memory.NewTaskStore()
		agg := New(tasks, occurrences, dispatch.NewDispatcher(&recordingQueue{}))

		require.NoError(t, agg.SoftDelete(ctx, []string{"occ-9"}))
		occ, err := occurrences.GetOccurrence(ctx, "occ-9")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteStateDone, occ.DeleteState)
	})

	t.Run("NoCreatedEventsGoesStraightToDone", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-10", []string{"t-1"}, nil)
		// The leaf failed, so no calendar event exists to delete.
		f.succeed(t, models.AttendanceTaskName("occ-10"), nil)
		f.fail(t, models.TeacherLeafName("occ-10", "t-1"), "provider rejected")

		require.NoError(t, f.agg.SoftDelete(ctx, []string{"occ-10"}))
		occ, err := f.occurrences.GetOccurrence(ctx, "occ-10")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteStateDone, occ.DeleteState)
	})

	t.Run("CompleteSoftDeleteSweepsPendingRows", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "occ-11", []string{"t-1"}, nil)
		completeAll(t, f, "occ-11", []string{"t-1"}, nil)
		require.NoError(t, f.agg.SoftDelete(ctx, []string{"occ-11"}))

		// Finish the deletion leaf directly in the store, simulating a crash
		// between the job callback and the sweep.
		course, err := f.tasks.GetTaskByName(ctx, models.CourseTaskName("2026-spring", "occ-11"))
		require.NoError(t, err)
		children, err := f.tasks.ListChildren(ctx, course.ID)
		require.NoError(t, err)
		for _, c := range children {
			if c.Type == models.TaskTypeDeleteLeaf {
				_, err := f.tasks.SucceedTask(ctx, c.ID, nil)
				require.NoError(t, err)
			}
		}

		require.NoError(t, f.agg.CompleteSoftDelete(ctx, "2026-spring"))
		occ, err := f.occurrences.GetOccurrence(ctx, "occ-11")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteStateDone, occ.DeleteState)
	})
}

func TestConcurrentSiblingCompletions(t *testing.T) {
	t.Parallel()

	// Many siblings completing at once must still produce exactly one group
	// transition and a fully advanced occurrence.
	studentIDs := make([]string, 30)
	for i := range studentIDs {
		studentIDs[i] = fmt.Sprintf("s-%02d", i)
	}
	f := newFixture(t, "occ-12", []string{"t-1", "t-2"}, studentIDs)

	f.succeed(t, models.AttendanceTaskName("occ-12"), nil)
	f.succeed(t, models.TeacherLeafName("occ-12", "t-1"), nil)
	f.succeed(t, models.TeacherLeafName("occ-12", "t-2"), nil)

	errCh := make(chan error, len(studentIDs))
	for _, id := range studentIDs {
		go func(id string) {
			errCh <- f.agg.HandleCompletion(context.Background(), models.Completion{
				NodeID:  f.nodes[models.StudentLeafName("occ-12", id)].ID,
				Outcome: models.OutcomeSuccess,
				Meta:    map[string]string{"eventId": "evt-" + id},
			})
		}(id)
	}
	for range studentIDs {
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for completions")
		}
	}

	assert.Equal(t, models.TaskStatusSuccess, f.nodeStatus(t, models.StudentGroupName("occ-12")))
	assert.Equal(t, models.SyncStatusStudentSynced, f.status(t, "occ-12"))
}
