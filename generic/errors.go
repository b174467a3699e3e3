/*
errors.go - Centralized error types for the leave engine

PURPOSE:

	All error kinds in one place. Callers classify with errors.Is against the
	sentinels; the structured types carry context for messages and logs.

ERROR KINDS:

	ErrValidation    - malformed input (dates, blank reason, bad status)
	ErrNotFound      - unknown leave or employee
	ErrUnauthorized  - actor lacks rights over the record
	ErrInvalidState  - transition attempted on a record that is not Pending

	Every kind is reported synchronously. Nothing in the engine retries.

SEE ALSO:
  - api/handlers.go: maps kinds to HTTP status codes
  - timeoff/service.go: downgrades per-item errors into BulkResult.Skipped
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not authorized")

	// ErrInvalidState is also what the loser of a transition race observes.
	ErrInvalidState = errors.New("invalid state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverlapError is returned by Apply when the overlap policy is enforced and the
// new range collides with an existing Pending or Approved request.
type OverlapError struct {
	EmployeeID EmployeeID
	Requested  DateRange
	Existing   LeaveID
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("leave %s overlaps existing request %s", e.Requested, e.Existing)
}

func (e *OverlapError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "leave", "employee"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AuthorizationError records who tried what.
type AuthorizationError struct {
	ActorID EmployeeID
	Action  string
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s may not %s: %s", e.ActorID, e.Action, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// InvalidStateError carries the status the record was found in.
type InvalidStateError struct {
	LeaveID LeaveID
	Status  Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("leave %s is %s, not %s", e.LeaveID, e.Status, StatusPending)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or rights.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotFound)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// LeaveNotFound is the common NotFoundError for leave ids.
func LeaveNotFound(id LeaveID) error {
	return &NotFoundError{Kind: "leave", ID: string(id)}
}

// EmployeeNotFound is the common NotFoundError for employee ids.
func EmployeeNotFound(id EmployeeID) error {
	return &NotFoundError{Kind: "employee", ID: string(id)}
}
