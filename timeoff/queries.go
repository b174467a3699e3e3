package timeoff

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// READ VIEWS
// =============================================================================

// MyLeaves returns the actor's requests, newest leave first.
func (s *Service) MyLeaves(ctx context.Context, actor generic.Actor) ([]LeaveView, error) {
	leaves, err := s.listFresh(ctx, generic.LeaveFilter{
		EmployeeIDs: []generic.EmployeeID{actor.ID},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(leaves, func(i, j int) bool {
		a, b := leaves[i], leaves[j]
		if !a.Range.Start.Equal(b.Range.Start) {
			return a.Range.Start.After(b.Range.Start)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(leaves, names), nil
}

// PendingForTeam returns Pending requests the actor may decide, earliest
// leave first. The actor's own requests are never included.
func (s *Service) PendingForTeam(ctx context.Context, actor generic.Actor) ([]LeaveView, error) {
	if !actor.CanDecide() {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "view team requests", Reason: "role " + string(actor.Role) + " has no team scope"}
	}

	team, names, err := s.team(ctx, actor)
	if err != nil {
		return nil, err
	}

	leaves, err := s.listFresh(ctx, generic.LeaveFilter{
		EmployeeIDs: team,
		Statuses:    []generic.Status{generic.StatusPending},
	})
	if err != nil {
		return nil, err
	}

	pending := leaves[:0]
	for _, req := range leaves {
		if req.EmployeeID != actor.ID {
			pending = append(pending, req)
		}
	}
	return s.views(pending, names), nil
}

// Get returns a single request to its owner or to a decider in scope.
func (s *Service) Get(ctx context.Context, actor generic.Actor, id generic.LeaveID) (*LeaveView, error) {
	req, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsPending() && s.Policy.Expired(req.CreatedAt, s.Now()) {
		if _, err := s.sweepIfDue(ctx, []generic.LeaveRequest{*req}); err != nil {
			return nil, err
		}
		if req, err = s.Store.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	if req.EmployeeID != actor.ID {
		if err := s.authorizeFor(ctx, actor, req.EmployeeID, "view leave"); err != nil {
			return nil, err
		}
	}

	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}
	view := s.views([]generic.LeaveRequest{*req}, names)[0]
	return &view, nil
}

// History returns the audit trail of a request, oldest first. It still works
// after the request was cancelled and deleted.
func (s *Service) History(ctx context.Context, actor generic.Actor, id generic.LeaveID) ([]generic.AuditEntry, error) {
	if s.Audit == nil {
		return nil, generic.LeaveNotFound(id)
	}

	entries, err := s.Audit.QueryAudit(ctx, generic.AuditFilter{LeaveID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	if len(entries) == 0 {
		return nil, generic.LeaveNotFound(id)
	}

	owner := entries[0].EmployeeID
	if owner != actor.ID {
		if err := s.authorizeFor(ctx, actor, owner, "view leave history"); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// AuditTrail returns audit entries across requests, oldest first. Only HR
// sees the whole log.
func (s *Service) AuditTrail(ctx context.Context, actor generic.Actor, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	if actor.Role != generic.RoleHR {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "read audit log", Reason: "role " + string(actor.Role) + " is not hr"}
	}
	if s.Audit == nil {
		return []generic.AuditEntry{}, nil
	}

	entries, err := s.Audit.QueryAudit(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// listFresh lists and, if the listing holds overdue Pending requests, sweeps
// and lists again.
func (s *Service) listFresh(ctx context.Context, filter generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	leaves, err := s.Store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}

	stale, err := s.sweepIfDue(ctx, leaves)
	if err != nil {
		return nil, err
	}
	if !stale {
		return leaves, nil
	}

	leaves, err = s.Store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}
	return leaves, nil
}

// team resolves the employees in actor's scope. A nil id slice means
// everyone, which is what HR gets.
func (s *Service) team(ctx context.Context, actor generic.Actor) ([]generic.EmployeeID, map[generic.EmployeeID]string, error) {
	employees, err := s.Directory.ListEmployees(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list employees: %w", err)
	}

	names := make(map[generic.EmployeeID]string, len(employees))
	for _, emp := range employees {
		names[emp.ID] = emp.Name
	}
	if actor.Role == generic.RoleHR {
		return nil, names, nil
	}

	ids := []generic.EmployeeID{}
	for _, emp := range employees {
		if generic.InScope(actor, emp) {
			ids = append(ids, emp.ID)
		}
	}
	return ids, names, nil
}

func (s *Service) names(ctx context.Context) (map[generic.EmployeeID]string, error) {
	employees, err := s.Directory.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	names := make(map[generic.EmployeeID]string, len(employees))
	for _, emp := range employees {
		names[emp.ID] = emp.Name
	}
	return names, nil
}

func (s *Service) views(leaves []generic.LeaveRequest, names map[generic.EmployeeID]string) []LeaveView {
	now := s.Now()
	out := make([]LeaveView, 0, len(leaves))
	for _, req := range leaves {
		v := LeaveView{LeaveRequest: req, EmployeeName: displayName(names, req.EmployeeID)}
		if req.IsPending() {
			deadline := s.Policy.Deadline(req.CreatedAt)
			v.Deadline = &deadline
			v.Remaining = s.Policy.Remaining(req.CreatedAt, now)
		}
		out = append(out, v)
	}
	return out
}

func displayName(names map[generic.EmployeeID]string, id generic.EmployeeID) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return string(id)
}
