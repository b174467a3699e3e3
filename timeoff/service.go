/*
service.go - Leave lifecycle manager

PURPOSE:

	Owns every write to leave requests:
	1. Apply:      employee creates a Pending request
	2. Decide:     manager/HR approves or rejects a Pending request
	3. BulkDecide: Decide over many ids, partial success reported as Skipped
	4. Cancel:     owner deletes their own Pending request
	5. Sweep:      system approves requests whose window elapsed (sweep.go)

EXACTLY-ONCE:

	Every terminal transition goes through Store.TransitionPending or
	Store.DeletePending, which compare-and-set on status == Pending. Checks
	done before that call (scope, ownership, deadline) are advisory; the
	store has the final word and the loser sees InvalidState or NotFound.

DEADLINE AT DECISION TIME:

	The auto-approval deadline is recomputed from CreatedAt and server time on
	every Decide and Cancel. A decision arriving after the deadline, before the
	background sweep ran, first applies the auto-approval and then fails with
	InvalidState, exactly as if the sweep had won the race.

EXAMPLE:

	svc := timeoff.NewService(store, store, store)
	req, err := svc.Apply(ctx, employee, generic.DateRange{...}, "family event")
	req, err = svc.Decide(ctx, manager, req.ID, generic.StatusRejected)

SEE ALSO:
  - sweep.go: AutoApproveSweep
  - queries.go, calendar.go, balance.go: read views
  - generic/store.go: compare-and-set contract
*/
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store     generic.Store
	Directory generic.Directory
	Audit     generic.AuditLog
	Policy    generic.Policy

	Now      func() time.Time
	NewID    func() generic.LeaveID
	Log      logrus.FieldLogger
	Observer Observer
}

// NewService wires a service with the default policy, wall clock and a
// discarding logger. Fields may be overridden after construction.
func NewService(store generic.Store, directory generic.Directory, audit generic.AuditLog) *Service {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return &Service{
		Store:     store,
		Directory: directory,
		Audit:     audit,
		Policy:    generic.DefaultPolicy(),
		Now:       time.Now,
		NewID:     func() generic.LeaveID { return generic.LeaveID(uuid.NewString()) },
		Log:       log,
		Observer:  noopObserver{},
	}
}

// =============================================================================
// APPLY
// =============================================================================

// Apply creates a Pending request for the acting employee.
func (s *Service) Apply(ctx context.Context, actor generic.Actor, rng generic.DateRange, reason string) (*generic.LeaveRequest, error) {
	if !actor.CanApply() {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "apply for leave", Reason: "role " + string(actor.Role) + " cannot apply"}
	}
	if err := generic.ValidateApplication(rng, reason); err != nil {
		return nil, err
	}

	if !s.Policy.AllowOverlap {
		if err := s.checkOverlap(ctx, actor.ID, rng); err != nil {
			return nil, err
		}
	}

	req := generic.LeaveRequest{
		ID:         s.NewID(),
		EmployeeID: actor.ID,
		Range:      rng,
		Reason:     strings.TrimSpace(reason),
		Status:     generic.StatusPending,
		CreatedAt:  s.Now().UTC(),
	}

	if err := s.Store.Insert(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save leave request: %w", err)
	}

	s.audit(ctx, actor.ID, generic.AuditLeaveCreated, req, map[string]string{
		"from_date": rng.Start.String(),
		"to_date":   rng.End.String(),
	})
	s.Observer.LeaveApplied()
	s.Log.WithFields(logrus.Fields{
		"leave_id":    req.ID,
		"employee_id": req.EmployeeID,
		"range":       rng.String(),
	}).Info("leave applied")

	return &req, nil
}

func (s *Service) checkOverlap(ctx context.Context, employeeID generic.EmployeeID, rng generic.DateRange) error {
	existing, err := s.Store.List(ctx, generic.LeaveFilter{
		EmployeeIDs: []generic.EmployeeID{employeeID},
		Statuses:    []generic.Status{generic.StatusPending, generic.StatusApproved},
		Overlapping: &rng,
	})
	if err != nil {
		return fmt.Errorf("failed to check overlapping leaves: %w", err)
	}
	if len(existing) > 0 {
		return &generic.OverlapError{EmployeeID: employeeID, Requested: rng, Existing: existing[0].ID}
	}
	return nil
}

// =============================================================================
// DECIDE
// =============================================================================

// Decide approves or rejects a Pending request on behalf of a manager or HR.
func (s *Service) Decide(ctx context.Context, actor generic.Actor, id generic.LeaveID, to generic.Status) (*generic.LeaveRequest, error) {
	if !to.IsDecision() {
		return nil, &generic.ValidationError{Field: "status", Message: "must be Approved or Rejected"}
	}
	if !actor.CanDecide() {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "decide leave", Reason: "role " + string(actor.Role) + " cannot decide"}
	}

	req, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID == actor.ID {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "decide leave", Reason: "cannot decide own request"}
	}
	if err := s.authorizeFor(ctx, actor, req.EmployeeID, "decide leave"); err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, &generic.InvalidStateError{LeaveID: id, Status: req.Status}
	}
	if err := s.expireIfDue(ctx, *req); err != nil {
		return nil, err
	}

	decided, err := s.Store.TransitionPending(ctx, id, to, actor.ID, s.Now().UTC())
	if err != nil {
		return nil, err
	}

	action := generic.AuditLeaveApproved
	if to == generic.StatusRejected {
		action = generic.AuditLeaveRejected
	}
	s.audit(ctx, actor.ID, action, *decided, nil)
	s.Observer.LeaveTransitioned(to, SourceManager)
	s.Log.WithFields(logrus.Fields{
		"leave_id":   id,
		"status":     to,
		"decided_by": actor.ID,
	}).Info("leave decided")

	return decided, nil
}

// BulkDecide applies Decide to each id independently. Ids failing a client
// guard (not found, authorization, state) are collected in Skipped; any
// other error aborts the batch and is returned with the partial result.
func (s *Service) BulkDecide(ctx context.Context, actor generic.Actor, ids []generic.LeaveID, to generic.Status) (*BulkResult, error) {
	if !to.IsDecision() {
		return nil, &generic.ValidationError{Field: "status", Message: "must be Approved or Rejected"}
	}
	if !actor.CanDecide() {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "decide leave", Reason: "role " + string(actor.Role) + " cannot decide"}
	}
	if len(ids) == 0 {
		return nil, &generic.ValidationError{Field: "leave_ids", Message: "must not be empty"}
	}

	result := &BulkResult{Updated: []generic.LeaveID{}, Skipped: []SkippedLeave{}}
	seen := make(map[generic.LeaveID]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		_, err := s.Decide(ctx, actor, id, to)
		switch {
		case err == nil:
			result.Updated = append(result.Updated, id)
		case generic.IsClientError(err):
			result.Skipped = append(result.Skipped, SkippedLeave{ID: id, Reason: err})
		default:
			s.Observer.BulkDecided(len(result.Updated), len(result.Skipped))
			return result, fmt.Errorf("bulk decision stopped at %s: %w", id, err)
		}
	}

	s.Observer.BulkDecided(len(result.Updated), len(result.Skipped))
	s.Log.WithFields(logrus.Fields{
		"actor":   actor.ID,
		"status":  to,
		"updated": len(result.Updated),
		"skipped": len(result.Skipped),
	}).Info("bulk decision")

	return result, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel permanently removes the owner's Pending request. The audit log keeps
// the only trace of it.
func (s *Service) Cancel(ctx context.Context, actor generic.Actor, id generic.LeaveID) error {
	req, err := s.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.EmployeeID != actor.ID {
		return &generic.AuthorizationError{ActorID: actor.ID, Action: "cancel leave", Reason: "not the owner"}
	}
	if !req.IsPending() {
		return &generic.InvalidStateError{LeaveID: id, Status: req.Status}
	}
	if err := s.expireIfDue(ctx, *req); err != nil {
		return err
	}

	removed, err := s.Store.DeletePending(ctx, id)
	if err != nil {
		return err
	}

	s.audit(ctx, actor.ID, generic.AuditLeaveCancelled, *removed, map[string]string{
		"from_date": removed.Range.Start.String(),
		"to_date":   removed.Range.End.String(),
		"reason":    removed.Reason,
	})
	s.Observer.LeaveCancelled()
	s.Log.WithFields(logrus.Fields{
		"leave_id":    id,
		"employee_id": actor.ID,
	}).Info("leave cancelled")

	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// expireIfDue applies the auto-approval to a request whose deadline has
// passed and reports the resulting state to the caller.
func (s *Service) expireIfDue(ctx context.Context, req generic.LeaveRequest) error {
	if !s.Policy.Expired(req.CreatedAt, s.Now()) {
		return nil
	}
	if _, err := s.autoApprove(ctx, req.ID); err != nil && !errors.Is(err, generic.ErrInvalidState) {
		return err
	}
	current, err := s.Store.Get(ctx, req.ID)
	if err != nil {
		return err
	}
	return &generic.InvalidStateError{LeaveID: req.ID, Status: current.Status}
}

// authorizeFor checks that employeeID is inside actor's scope.
func (s *Service) authorizeFor(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID, action string) error {
	if actor.Role == generic.RoleHR {
		return nil
	}
	if actor.Role != generic.RoleManager {
		return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Reason: "role " + string(actor.Role) + " has no team scope"}
	}

	emp, err := s.Directory.GetEmployee(ctx, employeeID)
	if err != nil {
		if generic.IsNotFound(err) {
			return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Reason: "employee " + string(employeeID) + " is not in scope"}
		}
		return fmt.Errorf("failed to resolve employee: %w", err)
	}
	if !generic.InScope(actor, *emp) {
		return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Reason: "employee " + string(employeeID) + " is not in scope"}
	}
	return nil
}

// audit appends an entry. Failures are logged, never surfaced: the
// transition has already happened.
func (s *Service) audit(ctx context.Context, actorID generic.EmployeeID, action generic.AuditAction, req generic.LeaveRequest, payload map[string]string) {
	if s.Audit == nil {
		return
	}
	entry := generic.AuditEntry{
		ID:         generic.AuditID(uuid.NewString()),
		Timestamp:  s.Now().UTC(),
		ActorID:    actorID,
		Action:     action,
		LeaveID:    req.ID,
		EmployeeID: req.EmployeeID,
		Payload:    payload,
	}
	if err := s.Audit.AppendAudit(ctx, entry); err != nil {
		s.Log.WithError(err).WithField("leave_id", req.ID).Warn("failed to append audit entry")
	}
}
