package timeoff

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// BALANCES
// =============================================================================

// Balance is one employee's yearly allowance picture.
//
//	Used      = calendar days of Approved requests falling inside the year
//	Remaining = Total - Used (may go negative; nothing blocks over-use)
//
// Pending requests are reported separately and do not count as used.
type Balance struct {
	EmployeeID   generic.EmployeeID
	EmployeeName string
	Year         int
	Total        generic.Amount
	Used         generic.Amount
	Pending      generic.Amount
	Remaining    generic.Amount
}

// Balances returns a Balance for every employee in the actor's scope,
// ordered by name.
func (s *Service) Balances(ctx context.Context, actor generic.Actor, year int) ([]Balance, error) {
	if !actor.CanDecide() {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "view team balances", Reason: "role " + string(actor.Role) + " has no team scope"}
	}
	if year < 1 || year > 9999 {
		return nil, &generic.ValidationError{Field: "year", Message: "is out of range"}
	}

	employees, err := s.Directory.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	var scoped []generic.Employee
	ids := []generic.EmployeeID{}
	for _, emp := range employees {
		if generic.InScope(actor, emp) {
			scoped = append(scoped, emp)
			ids = append(ids, emp.ID)
		}
	}

	yr := generic.Year(year)
	leaves, err := s.listFresh(ctx, generic.LeaveFilter{
		EmployeeIDs: ids,
		Statuses:    []generic.Status{generic.StatusPending, generic.StatusApproved},
		Overlapping: &yr,
	})
	if err != nil {
		return nil, err
	}

	used := map[generic.EmployeeID]generic.Amount{}
	pending := map[generic.EmployeeID]generic.Amount{}
	for _, req := range leaves {
		inYear, ok := req.Range.Intersect(yr)
		if !ok {
			continue
		}
		days := generic.Days(inYear.Len())
		switch req.Status {
		case generic.StatusApproved:
			used[req.EmployeeID] = addDays(used[req.EmployeeID], days)
		case generic.StatusPending:
			pending[req.EmployeeID] = addDays(pending[req.EmployeeID], days)
		}
	}

	result := make([]Balance, 0, len(scoped))
	for _, emp := range scoped {
		b := Balance{
			EmployeeID:   emp.ID,
			EmployeeName: emp.Name,
			Year:         year,
			Total:        s.Policy.TotalFor(emp),
			Used:         addDays(used[emp.ID], generic.Days(0)),
			Pending:      addDays(pending[emp.ID], generic.Days(0)),
		}
		if b.EmployeeName == "" {
			b.EmployeeName = string(emp.ID)
		}
		b.Remaining = b.Total.Sub(b.Used)
		result = append(result, b)
	}
	return result, nil
}

// addDays treats the zero Amount as zero days.
func addDays(a, b generic.Amount) generic.Amount {
	if a.Unit == "" {
		a = generic.Days(0)
	}
	return a.Add(b)
}
