package timeoff

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// MaxCalendarSpan bounds the number of days a single calendar query expands.
const MaxCalendarSpan = 370

// =============================================================================
// TEAM CALENDAR
// =============================================================================

// CalendarEvent is one Pending or Approved request seen through the calendar.
// HasConflict is set when any day of the event (within the queried range) is
// shared with another employee's event.
type CalendarEvent struct {
	LeaveID      generic.LeaveID
	EmployeeID   generic.EmployeeID
	EmployeeName string
	Range        generic.DateRange
	Status       generic.Status
	HasConflict  bool
}

// CalendarDay lists the events covering one date. Conflict is true when two
// or more distinct employees are off that day.
type CalendarDay struct {
	Date     generic.Date
	Events   []CalendarEvent
	Conflict bool
}

type TeamCalendar struct {
	Range     generic.DateRange
	Days      []CalendarDay
	Events    []CalendarEvent
	Conflicts []generic.Date
}

// TeamCalendar expands the team's Pending and Approved leaves over rng into
// one entry per day.
func (s *Service) TeamCalendar(ctx context.Context, actor generic.Actor, rng generic.DateRange) (*TeamCalendar, error) {
	if !actor.CanDecide() {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "view team calendar", Reason: "role " + string(actor.Role) + " has no team scope"}
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if rng.Len() > MaxCalendarSpan {
		return nil, &generic.ValidationError{Field: "end_date", Message: "range is longer than the calendar allows"}
	}

	team, names, err := s.team(ctx, actor)
	if err != nil {
		return nil, err
	}

	leaves, err := s.listFresh(ctx, generic.LeaveFilter{
		EmployeeIDs: team,
		Statuses:    []generic.Status{generic.StatusPending, generic.StatusApproved},
		Overlapping: &rng,
	})
	if err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, len(leaves))
	for i, req := range leaves {
		events[i] = CalendarEvent{
			LeaveID:      req.ID,
			EmployeeID:   req.EmployeeID,
			EmployeeName: displayName(names, req.EmployeeID),
			Range:        req.Range,
			Status:       req.Status,
		}
	}

	cal := &TeamCalendar{
		Range:     rng,
		Days:      make([]CalendarDay, 0, rng.Len()),
		Events:    events,
		Conflicts: []generic.Date{},
	}

	// First pass marks conflicts so the per-day copies carry final flags.
	days := rng.Days()
	covering := make([][]int, len(days))
	conflict := make([]bool, len(days))

	for d, day := range days {
		off := map[generic.EmployeeID]bool{}
		for i, ev := range events {
			if ev.Range.Contains(day) {
				covering[d] = append(covering[d], i)
				off[ev.EmployeeID] = true
			}
		}
		if len(off) > 1 {
			conflict[d] = true
			for _, i := range covering[d] {
				events[i].HasConflict = true
			}
		}
	}

	for d, day := range days {
		entry := CalendarDay{Date: day, Events: make([]CalendarEvent, 0, len(covering[d])), Conflict: conflict[d]}
		for _, i := range covering[d] {
			entry.Events = append(entry.Events, events[i])
		}
		if entry.Conflict {
			cal.Conflicts = append(cal.Conflicts, day)
		}
		cal.Days = append(cal.Days, entry)
	}

	return cal, nil
}
