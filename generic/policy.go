package generic

import "time"

// AutoApproveWindow is how long a request may stay Pending before the system
// approves it.
const AutoApproveWindow = 5 * time.Minute

// DefaultTotalLeaves is the annual allowance for employees without one.
const DefaultTotalLeaves = 20

// =============================================================================
// POLICY - Lifecycle rules
// =============================================================================

// Policy holds the tunable lifecycle rules.
type Policy struct {
	// AutoApproveWindow is measured from CreatedAt against server time.
	AutoApproveWindow time.Duration

	// AllowOverlap permits an employee to hold several Pending/Approved
	// requests covering the same day.
	AllowOverlap bool

	DefaultTotalLeaves int
}

func DefaultPolicy() Policy {
	return Policy{
		AutoApproveWindow:  AutoApproveWindow,
		AllowOverlap:       true,
		DefaultTotalLeaves: DefaultTotalLeaves,
	}
}

// Deadline is when a request created at createdAt auto-approves.
func (p Policy) Deadline(createdAt time.Time) time.Time {
	return createdAt.Add(p.AutoApproveWindow)
}

// Expired reports whether now - createdAt >= window.
func (p Policy) Expired(createdAt, now time.Time) bool {
	return !now.Before(p.Deadline(createdAt))
}

// Remaining is the display countdown, max(0, window - (now - createdAt)).
// It is derived on every read and never stored.
func (p Policy) Remaining(createdAt, now time.Time) time.Duration {
	left := p.Deadline(createdAt).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ExpiryCutoff returns the newest CreatedAt that is expired at now.
func (p Policy) ExpiryCutoff(now time.Time) time.Time {
	return now.Add(-p.AutoApproveWindow)
}

// TotalFor returns an employee's allowance, falling back to the default.
func (p Policy) TotalFor(emp Employee) Amount {
	if emp.TotalLeaves > 0 {
		return Days(emp.TotalLeaves)
	}
	return Days(p.DefaultTotalLeaves)
}
