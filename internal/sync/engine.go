// Package sync is the orchestration engine: it expands a term's pending
// course occurrences into the idempotent task tree and hands each leaf to the
// dispatcher. It never talks to the calendar provider and never writes
// occurrence status; those belong to the executors and the aggregator.
package sync

import (
	"time"

	"github.com/uroborus2s/campus-sync/internal/dispatch"
	"github.com/uroborus2s/campus-sync/internal/models"
)

// Engine builds and resumes sync task trees for a term.
type Engine struct {
	tasks       models.TaskStore
	occurrences models.OccurrenceStore
	roster      models.RosterRepository
	checkpoints models.CheckpointStore
	dispatcher  *dispatch.Dispatcher
	gateway     models.CalendarGateway
	location    *time.Location
}

// Options tunes one full-sync run.
type Options struct {
	// CourseIDs restricts the run to the given course ids. Empty means the
	// whole term.
	CourseIDs []string
}

// New creates an Engine. The gateway is only consulted during incremental
// sync, to locate stale events whose ids were never recorded.
func New(
	tasks models.TaskStore,
	occurrences models.OccurrenceStore,
	roster models.RosterRepository,
	checkpoints models.CheckpointStore,
	dispatcher *dispatch.Dispatcher,
	gateway models.CalendarGateway,
	loc *time.Location,
) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		tasks:       tasks,
		occurrences: occurrences,
		roster:      roster,
		checkpoints: checkpoints,
		dispatcher:  dispatcher,
		gateway:     gateway,
		location:    loc,
	}
}
