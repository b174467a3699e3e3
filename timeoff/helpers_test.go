package timeoff_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/generic/store"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	john  = generic.Actor{ID: "john", Role: generic.RoleEmployee, Department: "Engineering"}
	bob   = generic.Actor{ID: "bob", Role: generic.RoleEmployee, Department: "Engineering"}
	alice = generic.Actor{ID: "alice", Role: generic.RoleEmployee, Department: "Sales"}
	jane  = generic.Actor{ID: "jane", Role: generic.RoleManager, Department: "Engineering"}
	admin = generic.Actor{ID: "admin", Role: generic.RoleHR, Department: "HR"}
)

// fixture is a service over a memory store with a hand-driven clock.
type fixture struct {
	svc   *timeoff.Service
	store *store.Memory
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	f := &fixture{
		store: mem,
		now:   time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = timeoff.NewService(mem, mem, mem)
	f.svc.Now = func() time.Time { return f.now }

	// Sequential ids keep same-instant requests in creation order.
	var seq int64
	f.svc.NewID = func() generic.LeaveID {
		return generic.LeaveID(fmt.Sprintf("leave-%04d", atomic.AddInt64(&seq, 1)))
	}

	ctx := context.Background()
	for _, emp := range []generic.Employee{
		{ID: "john", Name: "John Employee", Role: generic.RoleEmployee, Department: "Engineering", ManagerID: "jane", TotalLeaves: 20},
		{ID: "bob", Name: "Bob Developer", Role: generic.RoleEmployee, Department: "Engineering", ManagerID: "jane", TotalLeaves: 20},
		{ID: "alice", Name: "Alice Sales", Role: generic.RoleEmployee, Department: "Sales", TotalLeaves: 15},
		{ID: "jane", Name: "Jane Manager", Role: generic.RoleManager, Department: "Engineering", TotalLeaves: 25},
		{ID: "admin", Name: "Admin HR", Role: generic.RoleHR, Department: "HR"},
	} {
		require.NoError(t, mem.SaveEmployee(ctx, emp))
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func span(from, to generic.Date) generic.DateRange {
	return generic.DateRange{Start: from, End: to}
}

// apply submits a request and fails the test on error.
func (f *fixture) apply(t *testing.T, actor generic.Actor, rng generic.DateRange) *generic.LeaveRequest {
	t.Helper()
	req, err := f.svc.Apply(context.Background(), actor, rng, "personal")
	require.NoError(t, err)
	return req
}

// approved submits a request and has jane approve it inside the window.
func (f *fixture) approved(t *testing.T, actor generic.Actor, rng generic.DateRange) *generic.LeaveRequest {
	t.Helper()
	req := f.apply(t, actor, rng)
	decided, err := f.svc.Decide(context.Background(), jane, req.ID, generic.StatusApproved)
	require.NoError(t, err)
	return decided
}

func (f *fixture) status(t *testing.T, id generic.LeaveID) generic.Status {
	t.Helper()
	req, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}
