/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a small
	company (Engineering and Sales, one manager, one HR admin) and leave
	requests in interesting states.

AVAILABLE SCENARIOS:

	directory:      People only, no requests
	pending-queue:  Fresh Pending requests waiting on the manager
	conflicts:      Overlapping approved/pending leave in one team
	auto-approval:  Requests past the approval window, plus one still open

HOW SCENARIOS WORK:
 1. Reset the store (leaves, employees, audit log)
 2. Seed the directory
 3. Apply and decide requests through timeoff.Service, so the audit log
    reads exactly as it would for real traffic

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "conflicts"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: route wiring
  - cmd/server: the seed command
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "directory",
		Name:        "Directory Only",
		Description: "Five people across Engineering, Sales and HR; no leave requests",
		Category:    "setup",
	},
	{
		ID:          "pending-queue",
		Name:        "Pending Queue",
		Description: "Two fresh requests waiting on the Engineering manager",
		Category:    "approvals",
	},
	{
		ID:          "conflicts",
		Name:        "Team Conflicts",
		Description: "Overlapping leave in Engineering next week, one approved and one pending",
		Category:    "calendar",
	},
	{
		ID:          "auto-approval",
		Name:        "Auto-Approval",
		Description: "Requests older than the approval window waiting for the sweep",
		Category:    "approvals",
	},
}

// Seed employee ids.
const (
	SeedJohn  generic.EmployeeID = "emp-john"
	SeedJane  generic.EmployeeID = "emp-jane"
	SeedAdmin generic.EmployeeID = "emp-admin"
	SeedBob   generic.EmployeeID = "emp-bob"
	SeedAlice generic.EmployeeID = "emp-alice"
)

// SeedEmployees returns the demo directory.
func SeedEmployees() []generic.Employee {
	return []generic.Employee{
		{ID: SeedJohn, Name: "John Employee", Email: "employee@company.com", Role: generic.RoleEmployee, Department: "Engineering", ManagerID: SeedJane, TotalLeaves: 20},
		{ID: SeedJane, Name: "Jane Manager", Email: "manager@company.com", Role: generic.RoleManager, Department: "Engineering", TotalLeaves: 25},
		{ID: SeedAdmin, Name: "Admin HR", Email: "hr@company.com", Role: generic.RoleHR, Department: "HR"},
		{ID: SeedBob, Name: "Bob Developer", Email: "bob@company.com", Role: generic.RoleEmployee, Department: "Engineering", ManagerID: SeedJane, TotalLeaves: 20},
		{ID: SeedAlice, Name: "Alice Sales", Email: "alice@company.com", Role: generic.RoleEmployee, Department: "Sales", TotalLeaves: 15},
	}
}

// ActorFor builds the actor the identity provider would issue for emp.
func ActorFor(emp generic.Employee) generic.Actor {
	return generic.Actor{ID: emp.ID, Role: emp.Role, Department: emp.Department}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"current":   current,
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.ApplyScenario(r.Context(), req.ScenarioID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ApplyScenario resets the store and loads scenario id.
func (h *Handler) ApplyScenario(ctx context.Context, id string) error {
	loader, ok := scenarioLoaders[id]
	if !ok {
		return &generic.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	h.currentScenario = ""

	if err := h.seedDirectory(ctx); err != nil {
		return err
	}
	if err := loader(ctx, h); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.currentScenario = id
	h.Log.WithField("scenario", id).Info("scenario loaded")
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var scenarioLoaders = map[string]func(ctx context.Context, h *Handler) error{
	"directory":     func(context.Context, *Handler) error { return nil },
	"pending-queue": loadPendingQueueScenario,
	"conflicts":     loadConflictsScenario,
	"auto-approval": loadAutoApprovalScenario,
}

func (h *Handler) seedDirectory(ctx context.Context) error {
	for _, emp := range SeedEmployees() {
		if err := h.Service.Directory.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("seed employee %s: %w", emp.ID, err)
		}
	}
	return nil
}

func loadPendingQueueScenario(ctx context.Context, h *Handler) error {
	today := generic.DateOf(h.Service.Now())
	john, bob := seedActor(SeedJohn), seedActor(SeedBob)

	if _, err := h.Service.Apply(ctx, john, weekFrom(today.AddDays(14), 3), "Family trip"); err != nil {
		return err
	}
	_, err := h.Service.Apply(ctx, bob, weekFrom(today.AddDays(21), 2), "Moving house")
	return err
}

func loadConflictsScenario(ctx context.Context, h *Handler) error {
	monday := nextMonday(generic.DateOf(h.Service.Now()))
	john, bob, alice, jane := seedActor(SeedJohn), seedActor(SeedBob), seedActor(SeedAlice), seedActor(SeedJane)

	// John Mon-Wed (approved), Bob Tue-Thu (pending): Tue and Wed conflict.
	johnLeave, err := h.Service.Apply(ctx, john, weekFrom(monday, 3), "Conference")
	if err != nil {
		return err
	}
	if _, err := h.Service.Decide(ctx, jane, johnLeave.ID, generic.StatusApproved); err != nil {
		return err
	}
	if _, err := h.Service.Apply(ctx, bob, weekFrom(monday.AddDays(1), 3), "Vacation"); err != nil {
		return err
	}

	// Rejected leave never shows on the calendar.
	rejected, err := h.Service.Apply(ctx, bob, weekFrom(monday.AddDays(4), 1), "Long weekend")
	if err != nil {
		return err
	}
	if _, err := h.Service.Decide(ctx, jane, rejected.ID, generic.StatusRejected); err != nil {
		return err
	}

	// Alice is in Sales, outside Jane's team.
	_, err = h.Service.Apply(ctx, alice, weekFrom(monday.AddDays(1), 2), "Offsite")
	return err
}

func loadAutoApprovalScenario(ctx context.Context, h *Handler) error {
	now := h.Service.Now()
	today := generic.DateOf(now)

	// A copy of the service whose clock sits past the window.
	past := *h.Service
	past.Now = func() time.Time { return now.Add(-2 * h.Service.Policy.AutoApproveWindow) }

	if _, err := past.Apply(ctx, seedActor(SeedJohn), weekFrom(today.AddDays(30), 5), "Summer holiday"); err != nil {
		return err
	}
	if _, err := past.Apply(ctx, seedActor(SeedAlice), weekFrom(today.AddDays(10), 1), "Dentist"); err != nil {
		return err
	}
	_, err := h.Service.Apply(ctx, seedActor(SeedBob), weekFrom(today.AddDays(7), 2), "Wedding")
	return err
}

func seedActor(id generic.EmployeeID) generic.Actor {
	for _, emp := range SeedEmployees() {
		if emp.ID == id {
			return ActorFor(emp)
		}
	}
	panic("api: unknown seed employee " + string(id))
}

func weekFrom(start generic.Date, days int) generic.DateRange {
	return generic.DateRange{Start: start, End: start.AddDays(days - 1)}
}

func nextMonday(d generic.Date) generic.Date {
	offset := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return d.AddDays(offset)
}
