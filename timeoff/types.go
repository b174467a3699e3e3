// Package timeoff implements the leave lifecycle: applying, deciding,
// cancelling and auto-approving leave requests, plus the team read views.
// It uses the generic package for entities, errors and persistence.
package timeoff

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// OBSERVER - Metrics hook
// =============================================================================

// Observer receives lifecycle events. The metrics package implements it.
type Observer interface {
	LeaveApplied()
	LeaveTransitioned(to generic.Status, source string)
	LeaveCancelled()
	BulkDecided(updated, skipped int)
	SweepCompleted(approved int, took time.Duration)
}

// Transition sources passed to Observer.LeaveTransitioned.
const (
	SourceManager = "manager"
	SourceSystem  = "system"
)

type noopObserver struct{}

func (noopObserver) LeaveApplied()                            {}
func (noopObserver) LeaveTransitioned(generic.Status, string) {}
func (noopObserver) LeaveCancelled()                          {}
func (noopObserver) BulkDecided(int, int)                     {}
func (noopObserver) SweepCompleted(int, time.Duration)        {}

// =============================================================================
// RESULT TYPES
// =============================================================================

// BulkResult reports a partially successful batch. Skipped is a designed
// outcome, not an error.
type BulkResult struct {
	Updated []generic.LeaveID
	Skipped []SkippedLeave
}

type SkippedLeave struct {
	ID     generic.LeaveID
	Reason error
}

// LeaveView is a request plus the values derived at read time.
type LeaveView struct {
	generic.LeaveRequest
	EmployeeName string

	// Remaining and Deadline are zero for non-Pending requests.
	Remaining time.Duration
	Deadline  *time.Time
}
