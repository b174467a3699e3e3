package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// AUTO-APPROVAL SWEEP
// =============================================================================

// AutoApproveSweep approves every Pending request whose window has elapsed at
// now and returns how many it approved. Records a concurrent Decide or Cancel
// got to first are skipped silently, so running it twice is harmless.
func (s *Service) AutoApproveSweep(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()

	expired, err := s.Store.ListExpiredPending(ctx, s.Policy.ExpiryCutoff(now))
	if err != nil {
		return 0, fmt.Errorf("failed to list expired requests: %w", err)
	}

	approved := 0
	for _, req := range expired {
		if err := ctx.Err(); err != nil {
			return approved, err
		}
		_, err := s.autoApprove(ctx, req.ID)
		switch {
		case err == nil:
			approved++
		case errors.Is(err, generic.ErrInvalidState), errors.Is(err, generic.ErrNotFound):
			// Decided or cancelled since the listing.
		default:
			return approved, err
		}
	}

	s.Observer.SweepCompleted(approved, time.Since(started))
	if approved > 0 {
		s.Log.WithFields(logrus.Fields{
			"approved": approved,
			"expired":  len(expired),
		}).Info("auto-approval sweep")
	}
	return approved, nil
}

// autoApprove moves a single request to Approved on behalf of the system.
func (s *Service) autoApprove(ctx context.Context, id generic.LeaveID) (*generic.LeaveRequest, error) {
	approved, err := s.Store.TransitionPending(ctx, id, generic.StatusApproved, generic.SystemActorID, s.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.audit(ctx, generic.SystemActorID, generic.AuditLeaveAutoApproved, *approved, map[string]string{
		"created_at": approved.CreatedAt.Format(time.RFC3339),
	})
	s.Observer.LeaveTransitioned(generic.StatusApproved, SourceSystem)
	s.Log.WithField("leave_id", id).Debug("leave auto-approved")

	return approved, nil
}

// sweepIfDue runs the sweep when any of leaves is Pending past its deadline,
// so readers never observe a request that should already be Approved. It
// reports whether the caller's listing is stale.
func (s *Service) sweepIfDue(ctx context.Context, leaves []generic.LeaveRequest) (bool, error) {
	now := s.Now()
	due := false
	for _, req := range leaves {
		if req.IsPending() && s.Policy.Expired(req.CreatedAt, now) {
			due = true
			break
		}
	}
	if !due {
		return false, nil
	}

	if _, err := s.AutoApproveSweep(ctx, now); err != nil {
		return false, err
	}
	return true, nil
}
