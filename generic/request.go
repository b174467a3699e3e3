/*
request.go - Leave request entity and its status machine

PURPOSE:

	A LeaveRequest is created Pending and leaves Pending exactly once.

STATE MACHINE:

	┌──────────────────────────────────────────────────────────────────┐
	│                                                                  │
	│   apply ──▶ Pending ──decide(Approved)──▶ Approved               │
	│                │    ──decide(Rejected)──▶ Rejected               │
	│                │    ──window elapsed───▶ Approved (by system)    │
	│                └────cancel by owner────▶ (row deleted)           │
	│                                                                  │
	└──────────────────────────────────────────────────────────────────┘

	Approved and Rejected are terminal. Nothing leaves them.

IMMUTABILITY:

	ID, EmployeeID, Range, Reason and CreatedAt never change. The only update
	a record ever sees is the Pending -> terminal transition, which sets
	Status, DecidedBy and DecidedAt together.

SEE ALSO:
  - store.go: TransitionPending / DeletePending compare-and-set contract
  - timeoff/service.go: lifecycle operations
*/
package generic

import (
	"strings"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus accepts any casing of the three status names.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "rejected":
		return StatusRejected, true
	default:
		return "", false
	}
}

func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

// IsDecision reports whether s is a legal target of a manager decision.
func (s Status) IsDecision() bool { return s.IsTerminal() }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID         LeaveID
	EmployeeID EmployeeID
	Range      DateRange
	Reason     string
	Status     Status
	CreatedAt  time.Time

	// Set by the single terminal transition.
	DecidedBy *EmployeeID
	DecidedAt *time.Time
}

// Days is the number of calendar days covered, both ends included.
func (r LeaveRequest) Days() Amount { return Days(r.Range.Len()) }

func (r LeaveRequest) IsPending() bool { return r.Status == StatusPending }

// AutoApproved reports whether the system, not a person, decided the request.
func (r LeaveRequest) AutoApproved() bool {
	return r.Status == StatusApproved && r.DecidedBy != nil && *r.DecidedBy == SystemActorID
}

// Decided returns a copy of r moved into the terminal status.
func (r LeaveRequest) Decided(to Status, by EmployeeID, at time.Time) LeaveRequest {
	r.Status = to
	r.DecidedBy = &by
	r.DecidedAt = &at
	return r
}

// ValidateApplication checks the inputs of an apply call.
func ValidateApplication(rng DateRange, reason string) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Message: "must not be blank"}
	}
	return nil
}
