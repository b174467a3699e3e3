/*
store.go - Persistence interfaces for leave requests, employees and audit

PURPOSE:

	Defines the interface between the lifecycle service and the database.
	Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:

	Store:     Leave request persistence with compare-and-set transitions
	Directory: Employee records (local adapter of the identity provider)
	AuditLog:  Append-only history of who did what to which leave

COMPARE-AND-SET CONTRACT:

	Decide, Cancel and the auto-approval sweep race on the same Pending edge.
	The store arbitrates:
	- TransitionPending(): sets the terminal status only if still Pending
	- DeletePending():     removes the row only if still Pending
	Both return ErrNotFound if the row is gone and an InvalidStateError if it
	has already left Pending. Exactly one caller wins.

	There is no general Update method. No other field ever changes.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (guarded UPDATE/DELETE ... WHERE status = 'Pending')
  - generic/store/memory.go: In-memory for tests and development

SEE ALSO:
  - request.go: LeaveRequest
  - timeoff/service.go: the only writer
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Leave request persistence
// =============================================================================

type Store interface {
	// Insert persists a new Pending request.
	Insert(ctx context.Context, req LeaveRequest) error

	// Get returns the request or a NotFoundError.
	Get(ctx context.Context, id LeaveID) (*LeaveRequest, error)

	// TransitionPending atomically moves a Pending request into a terminal
	// status and returns the updated record.
	TransitionPending(ctx context.Context, id LeaveID, to Status, decidedBy EmployeeID, at time.Time) (*LeaveRequest, error)

	// DeletePending atomically removes a Pending request and returns what
	// was removed.
	DeletePending(ctx context.Context, id LeaveID) (*LeaveRequest, error)

	// List returns requests matching filter, ordered by FromDate then CreatedAt.
	List(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error)

	// ListExpiredPending returns Pending requests created at or before cutoff.
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]LeaveRequest, error)
}

// LeaveFilter narrows List. Zero values mean "no constraint"; a nil
// EmployeeIDs slice matches everyone while an empty non-nil one matches nobody.
type LeaveFilter struct {
	EmployeeIDs []EmployeeID
	Statuses    []Status
	Overlapping *DateRange
}

// Matches applies the filter in memory.
func (f LeaveFilter) Matches(req LeaveRequest) bool {
	if f.EmployeeIDs != nil && !containsID(f.EmployeeIDs, req.EmployeeID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, req.Status) {
		return false
	}
	if f.Overlapping != nil && !req.Range.Overlaps(*f.Overlapping) {
		return false
	}
	return true
}

func containsID(ids []EmployeeID, id EmployeeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []Status, s Status) bool {
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}

// =============================================================================
// DIRECTORY - Employee records
// =============================================================================

type Directory interface {
	// GetEmployee returns the employee or a NotFoundError.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// ListEmployees returns everyone, ordered by name.
	ListEmployees(ctx context.Context) ([]Employee, error)

	// SaveEmployee inserts or replaces a record.
	SaveEmployee(ctx context.Context, emp Employee) error
}

// =============================================================================
// AUDIT LOG - Separate from leave rows, tracks who did what when
// =============================================================================

// AuditEntry records who did what when. Cancelled requests are deleted from
// the store, so the audit log is their only remaining trace.
type AuditEntry struct {
	ID         AuditID
	Timestamp  time.Time
	ActorID    EmployeeID
	Action     AuditAction
	LeaveID    LeaveID
	EmployeeID EmployeeID
	Payload    map[string]string
}

type AuditAction string

const (
	AuditLeaveCreated      AuditAction = "leave_created"
	AuditLeaveApproved     AuditAction = "leave_approved"
	AuditLeaveRejected     AuditAction = "leave_rejected"
	AuditLeaveAutoApproved AuditAction = "leave_auto_approved"
	AuditLeaveCancelled    AuditAction = "leave_cancelled"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	LeaveID    *LeaveID
	EmployeeID *EmployeeID
	ActorID    *EmployeeID
	Actions    []AuditAction
	From       *time.Time
	To         *time.Time
}

// Matches applies the filter in memory.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.LeaveID != nil && e.LeaveID != *f.LeaveID {
		return false
	}
	if f.EmployeeID != nil && e.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
