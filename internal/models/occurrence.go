package models

import (
	"context"
	"fmt"
	"time"
)

// SyncStatus tracks how far an occurrence's calendar fan-out has progressed.
// It only ever advances: unsynced -> teacher-synced -> student-synced.
type SyncStatus int

const (
	SyncStatusUnsynced SyncStatus = iota
	SyncStatusTeacherSynced
	SyncStatusStudentSynced
)

func (s SyncStatus) String() string {
	switch s {
	case SyncStatusUnsynced:
		return "unsynced"
	case SyncStatusTeacherSynced:
		return "teacher-synced"
	case SyncStatusStudentSynced:
		return "student-synced"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DeleteState is the soft-delete lifecycle, orthogonal to SyncStatus.
type DeleteState int

const (
	DeleteStateNone DeleteState = iota
	DeleteStatePending
	DeleteStateDone
)

func (s DeleteState) String() string {
	switch s {
	case DeleteStateNone:
		return "none"
	case DeleteStatePending:
		return "soft-deleted-pending"
	case DeleteStateDone:
		return "soft-deleted-done"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CourseOccurrence is one scheduled meeting of a course section, owned by the
// timetable system. Date and times are local civil values with no offset and
// may arrive slash-separated or without seconds. Rows are never physically
// deleted, only soft-deleted.
type CourseOccurrence struct {
	ID          string      `json:"id"`
	CourseID    string      `json:"courseId"`
	CourseName  string      `json:"courseName"`
	Term        string      `json:"term"`
	Date        string      `json:"date"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	Location    string      `json:"location,omitempty"`
	TeacherIDs  []string    `json:"teacherIds"`
	SyncStatus  SyncStatus  `json:"syncStatus"`
	DeleteState DeleteState `json:"deleteState"`
	LastSyncAt  time.Time   `json:"lastSyncAt,omitzero"`
	UpdatedAt   time.Time   `json:"updatedAt,omitzero"`
}

// OccurrenceStore reads timetable rows and writes sync columns. The status
// aggregator is the sole writer; the orchestrator only reads.
type OccurrenceStore interface {
	GetOccurrence(ctx context.Context, id string) (*CourseOccurrence, error)
	// ListPendingSync returns rows of the term that have not reached
	// student-synced and are not soft-deleted.
	ListPendingSync(ctx context.Context, term string) ([]*CourseOccurrence, error)
	// ListChangedSince returns rows of the term whose source data changed
	// after the checkpoint.
	ListChangedSince(ctx context.Context, term string, since time.Time) ([]*CourseOccurrence, error)
	// ListByDeleteState returns rows of the term in the given delete state.
	ListByDeleteState(ctx context.Context, term string, state DeleteState) ([]*CourseOccurrence, error)
	// SetSyncStatus advances the sync status. Implementations must refuse
	// regressions so status stays monotonic under any completion order.
	SetSyncStatus(ctx context.Context, id string, status SyncStatus, at time.Time) error
	SetDeleteState(ctx context.Context, id string, state DeleteState) error
}
