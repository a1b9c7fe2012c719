package sync

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
)

// StartFullSync expands every pending occurrence of the term into the task
// tree and enqueues jobs for newly created leaves. Re-running is safe: the
// deterministic names attach the run to the existing tree, and only nodes
// created by this run produce jobs. Returns the root task id.
func (e *Engine) StartFullSync(ctx context.Context, term string, opts Options) (string, error) {
	if term == "" {
		return "", models.NewValidationError("term", "required")
	}

	rows, err := e.occurrences.ListPendingSync(ctx, term)
	if err != nil {
		return "", fmt.Errorf("failed to list pending occurrences for term %s: %w", term, err)
	}
	if len(opts.CourseIDs) > 0 {
		rows = lo.Filter(rows, func(occ *models.CourseOccurrence, _ int) bool {
			return lo.Contains(opts.CourseIDs, occ.CourseID)
		})
	}

	idx := newNameIndex(e.tasks)
	root, _, err := idx.findOrCreate(ctx, models.TaskInput{
		Name: models.RootTaskName(term),
		Type: models.TaskTypeRoot,
		Data: models.TaskData{Kind: models.TaskTypeRoot},
	})
	if err != nil {
		return "", fmt.Errorf("failed to ensure root task: %w", err)
	}
	if err := idx.preload(ctx, root.ID); err != nil {
		return "", err
	}

	logger.Info(ctx, "Full sync starting", "term", term, "root", root.ID, "occurrences", len(rows))

	var skipped int
	for _, occ := range rows {
		if err := e.syncOccurrence(ctx, idx, root.ID, occ); err != nil {
			// One bad course must not sink the term; record and move on.
			logger.Error(ctx, "Skipping occurrence", "course", occ.CourseID, "occurrence", occ.ID, "error", err)
			skipped++
		}
	}
	logger.Info(ctx, "Full sync expanded", "term", term, "root", root.ID, "occurrences", len(rows), "skipped", skipped)
	return root.ID, nil
}

// syncOccurrence builds one occurrence's subtree: the attendance leaf, the
// teacher group with one leaf per teacher, and the student group with one
// leaf per enrolled student. A branch with zero members is not created at
// all; an empty group could never complete.
func (e *Engine) syncOccurrence(ctx context.Context, idx *nameIndex, rootID string, occ *models.CourseOccurrence) error {
	teachers, err := e.roster.FindTeachers(ctx, occ.CourseID)
	if err != nil {
		return fmt.Errorf("failed to resolve teachers: %w", err)
	}
	students, err := e.roster.FindStudents(ctx, occ.CourseID, occ.Term)
	if err != nil {
		return fmt.Errorf("failed to resolve students: %w", err)
	}

	coursePayload := &models.CoursePayload{
		OccurrenceID: occ.ID,
		CourseID:     occ.CourseID,
		CourseName:   occ.CourseName,
		Term:         occ.Term,
	}
	course, _, err := idx.findOrCreate(ctx, models.TaskInput{
		Name:     models.CourseTaskName(occ.Term, occ.ID),
		ParentID: rootID,
		Type:     models.TaskTypeCourse,
		Data:     models.TaskData{Kind: models.TaskTypeCourse, Course: coursePayload},
	})
	if err != nil {
		return err
	}

	if err := e.ensureLeaf(ctx, idx, models.TaskInput{
		Name:     models.AttendanceTaskName(occ.ID),
		ParentID: course.ID,
		Type:     models.TaskTypeAttendanceTable,
		Data: models.TaskData{
			Kind: models.TaskTypeAttendanceTable,
			Attendance: &models.AttendancePayload{
				OccurrenceID: occ.ID,
				CourseID:     occ.CourseID,
				CourseName:   occ.CourseName,
				Term:         occ.Term,
				Date:         occ.Date,
				StartTime:    occ.StartTime,
				EndTime:      occ.EndTime,
				Location:     occ.Location,
			},
		},
	}); err != nil {
		return err
	}

	if err := e.ensureParticipantBranch(ctx, idx, course.ID, occ, models.RoleTeacher, teachers); err != nil {
		return err
	}
	return e.ensureParticipantBranch(ctx, idx, course.ID, occ, models.RoleStudent, students)
}

// ensureParticipantBranch creates the group node and one schedule leaf per
// participant. Zero participants means no branch.
func (e *Engine) ensureParticipantBranch(ctx context.Context, idx *nameIndex, courseTaskID string, occ *models.CourseOccurrence, role models.Role, participants []*models.Participant) error {
	if len(participants) == 0 {
		logger.Debug(ctx, "No participants for branch", "occurrence", occ.ID, "role", string(role))
		return nil
	}

	groupName := models.TeacherGroupName(occ.ID)
	groupType := models.TaskTypeTeacherGroup
	leafType := models.TaskTypeTeacherLeaf
	if role == models.RoleStudent {
		groupName = models.StudentGroupName(occ.ID)
		groupType = models.TaskTypeStudentGroup
		leafType = models.TaskTypeStudentLeaf
	}

	group, _, err := idx.findOrCreate(ctx, models.TaskInput{
		Name:     groupName,
		ParentID: courseTaskID,
		Type:     groupType,
		Data: models.TaskData{
			Kind: groupType,
			Course: &models.CoursePayload{
				OccurrenceID: occ.ID,
				CourseID:     occ.CourseID,
				CourseName:   occ.CourseName,
				Term:         occ.Term,
			},
		},
	})
	if err != nil {
		return err
	}

	for _, p := range participants {
		leafName := models.TeacherLeafName(occ.ID, p.ID)
		if role == models.RoleStudent {
			leafName = models.StudentLeafName(occ.ID, p.ID)
		}
		err := e.ensureLeaf(ctx, idx, models.TaskInput{
			Name:     leafName,
			ParentID: group.ID,
			Type:     leafType,
			Data: models.TaskData{
				Kind: leafType,
				Schedule: &models.SchedulePayload{
					OccurrenceID:    occ.ID,
					CourseID:        occ.CourseID,
					CourseName:      occ.CourseName,
					Term:            occ.Term,
					ParticipantID:   p.ID,
					ParticipantName: p.Name,
					CalendarID:      p.CalendarID,
					Role:            role,
					Date:            occ.Date,
					StartTime:       occ.StartTime,
					EndTime:         occ.EndTime,
					Location:        occ.Location,
				},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ensureLeaf finds or creates a leaf node and enqueues its job only on
// creation. Pre-existing leaves already had their job; re-enqueueing would
// break the one-call-per-participant guarantee.
func (e *Engine) ensureLeaf(ctx context.Context, idx *nameIndex, in models.TaskInput) error {
	node, created, err := idx.findOrCreate(ctx, in)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	return e.dispatcher.Dispatch(ctx, node)
}
