/*
handlers.go - HTTP API handlers for the leave lifecycle

PURPOSE:

	Exposes timeoff.Service via REST. Handles HTTP request/response and JSON
	serialization, and delegates every rule to the service. The acting user
	always comes from the verified token (see auth.go), never from the body.

ENDPOINTS:

	Leaves:
	  POST   /api/leaves                  Apply (employee, manager)
	  GET    /api/leaves/mine             My requests, newest first
	  GET    /api/leaves/{id}             One request (owner or in scope)
	  GET    /api/leaves/{id}/history     Audit trail
	  DELETE /api/leaves/{id}             Cancel while Pending (owner)
	  POST   /api/leaves/{id}/decision    Approve or reject
	  POST   /api/leaves/bulk-decision    Approve or reject many

	Team (manager, hr):
	  GET    /api/team/pending            Pending queue with countdown
	  GET    /api/team/calendar           Per-day events and conflicts
	  GET    /api/team/balances           Per-employee total/used/remaining

	Directory, scenarios, admin (hr):
	  GET    /api/employees               List directory
	  POST   /api/employees               Create or replace employee
	  GET    /api/scenarios               List demo scenarios
	  POST   /api/scenarios/load          Load a demo scenario
	  POST   /api/admin/sweep             Run the auto-approval sweep now

ERROR HANDLING:

	Service errors are classified with errors.Is:
	- 400: ErrValidation (bad dates, blank reason, overlap, bad status)
	- 403: ErrUnauthorized (wrong role, out of scope, not the owner)
	- 404: ErrNotFound
	- 409: ErrInvalidState (already decided, cancelled or auto-approved)
	- 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all stored data. Both store implementations satisfy it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pinger is optionally implemented by stores that can report health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service *timeoff.Service
	Store   Resetter
	Log     logrus.FieldLogger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(svc *timeoff.Service, store Resetter, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = svc.Log
	}
	return &Handler{
		Service: svc,
		Store:   store,
		Log:     log,
	}
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ApplyLeave creates a Pending request for the caller.
func (h *Handler) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)

	var req ApplyLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, err := parseRange(req.FromDate, req.ToDate, "from_date", "to_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	leave, err := h.Service.Apply(r.Context(), actor, rng, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	view := timeoff.LeaveView{LeaveRequest: *leave}
	if emp, err := h.Service.Directory.GetEmployee(r.Context(), leave.EmployeeID); err == nil {
		view.EmployeeName = emp.Name
	}
	deadline := h.Service.Policy.Deadline(leave.CreatedAt)
	view.Deadline = &deadline
	view.Remaining = h.Service.Policy.Remaining(leave.CreatedAt, h.Service.Now())

	writeJSON(w, http.StatusCreated, toLeaveViewDTO(view))
}

// ListMyLeaves returns the caller's own requests.
func (h *Handler) ListMyLeaves(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.MyLeaves(r.Context(), mustActor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveViewDTOs(views))
}

// GetLeave returns one request.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context(), mustActor(r), leaveID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveViewDTO(*view))
}

// GetLeaveHistory returns the audit trail of one request, including
// cancelled ones.
func (h *Handler) GetLeaveHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.History(r.Context(), mustActor(r), leaveID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntryDTOs(entries))
}

// CancelLeave withdraws a Pending request.
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Cancel(r.Context(), mustActor(r), leaveID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DecideLeave approves or rejects one request.
func (h *Handler) DecideLeave(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status, err := parseDecision(req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	leave, err := h.Service.Decide(r.Context(), mustActor(r), leaveID(r), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	name := ""
	if emp, err := h.Service.Directory.GetEmployee(r.Context(), leave.EmployeeID); err == nil {
		name = emp.Name
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*leave, name))
}

// BulkDecide approves or rejects many requests. Items that cannot be
// decided are reported as skipped; the response is still 200. A store
// failure mid-batch answers 500 with the items processed so far.
func (h *Handler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	var req BulkDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status, err := parseDecision(req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ids := make([]generic.LeaveID, 0, len(req.LeaveIDs))
	for _, id := range req.LeaveIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, generic.LeaveID(id))
		}
	}

	res, err := h.Service.BulkDecide(r.Context(), mustActor(r), ids, status)
	if err != nil && res == nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err != nil {
		// The batch stopped part way. Decisions already stored are final,
		// so report them with the failure.
		h.Log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"updated":    len(res.Updated),
			"skipped":    len(res.Skipped),
		}).WithError(err).Error("bulk decision aborted")

		resp := toBulkDecisionResponse(res)
		resp.Error = "Bulk decision aborted"
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, toBulkDecisionResponse(res))
}

// =============================================================================
// TEAM HANDLERS
// =============================================================================

// ListTeamPending returns Pending requests in the caller's scope.
func (h *Handler) ListTeamPending(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.PendingForTeam(r.Context(), mustActor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveViewDTOs(views))
}

// GetTeamCalendar returns the team calendar for start_date..end_date.
func (h *Handler) GetTeamCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("start_date"), q.Get("end_date"), "start_date", "end_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	cal, err := h.Service.TeamCalendar(r.Context(), mustActor(r), rng)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarResponse(cal))
}

// GetTeamBalances returns balances for ?year= (default: current year).
func (h *Handler) GetTeamBalances(w http.ResponseWriter, r *http.Request) {
	year := h.Service.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			h.writeServiceError(w, r, &generic.ValidationError{Field: "year", Message: "must be a number"})
			return
		}
		year = y
	}

	balances, err := h.Service.Balances(r.Context(), mustActor(r), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListEmployees returns the directory.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Directory.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result := make([]EmployeeDTO, 0, len(employees))
	for _, emp := range employees {
		result = append(result, toEmployeeDTO(emp))
	}
	writeJSON(w, http.StatusOK, result)
}

// SaveEmployee creates or replaces a directory record.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	emp, err := req.toEmployee()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.Service.Directory.SaveEmployee(r.Context(), emp); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"employee_id": emp.ID,
		"role":        emp.Role,
		"actor":       mustActor(r).ID,
	}).Info("employee saved")

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func (req SaveEmployeeRequest) toEmployee() (generic.Employee, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return generic.Employee{}, &generic.ValidationError{Field: "id", Message: "is required"}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return generic.Employee{}, &generic.ValidationError{Field: "name", Message: "is required"}
	}
	role, ok := generic.ParseRole(req.Role)
	if !ok {
		return generic.Employee{}, &generic.ValidationError{Field: "role", Message: "must be employee, manager or hr"}
	}
	if req.TotalLeaves < 0 {
		return generic.Employee{}, &generic.ValidationError{Field: "total_leaves", Message: "must not be negative"}
	}

	return generic.Employee{
		ID:          generic.EmployeeID(id),
		Name:        name,
		Email:       strings.TrimSpace(req.Email),
		Role:        role,
		Department:  strings.TrimSpace(req.Department),
		ManagerID:   generic.EmployeeID(strings.TrimSpace(req.ManagerID)),
		TotalLeaves: req.TotalLeaves,
	}, nil
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs one auto-approval pass immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	now := h.Service.Now()
	n, err := h.Service.AutoApproveSweep(r.Context(), now)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Approved: n, RanAt: now.UTC().Format(time.RFC3339)})
}

// GetAuditLog returns audit entries filtered by ?leave_id, ?employee_id,
// ?actor_id, repeated ?action and RFC 3339 ?from / ?to.
func (h *Handler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	entries, err := h.Service.AuditTrail(r.Context(), mustActor(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntryDTOs(entries))
}

// Health reports liveness and, when the store supports it, connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error onto a status code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *generic.ValidationError
		invalid    *generic.InvalidStateError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"field": validation.Field, "message": validation.Message},
		})
	case errors.Is(err, generic.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, generic.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Leave request is no longer pending",
			Details: map[string]string{"leave_id": string(invalid.LeaveID), "status": string(invalid.Status)},
		})
	default:
		h.Log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// mustActor returns the actor set by Authenticate. Routes using it are
// always mounted behind that middleware.
func mustActor(r *http.Request) generic.Actor {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		panic("api: handler mounted without Authenticate")
	}
	return actor
}

func leaveID(r *http.Request) generic.LeaveID {
	return generic.LeaveID(chi.URLParam(r, "id"))
}

// parseRange parses two YYYY-MM-DD values. Empty values are left zero so
// DateRange.Validate reports them as missing.
func parseRange(from, to, fromField, toField string) (generic.DateRange, error) {
	var rng generic.DateRange
	var err error

	if from = strings.TrimSpace(from); from != "" {
		if rng.Start, err = parseDateField(from, fromField); err != nil {
			return rng, err
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if rng.End, err = parseDateField(to, toField); err != nil {
			return rng, err
		}
	}
	if err := rng.Validate(); err != nil {
		var v *generic.ValidationError
		if errors.As(err, &v) {
			switch v.Field {
			case "from_date":
				v.Field = fromField
			case "to_date":
				v.Field = toField
			}
		}
		return rng, err
	}
	return rng, nil
}

// parseDateField rejects years before generic.MinYear here, since
// 0001-01-01 parses to the zero Date and would read as missing.
func parseDateField(s, field string) (generic.Date, error) {
	d, err := generic.ParseDate(s)
	if err != nil {
		return d, &generic.ValidationError{Field: field, Message: "must be a date (YYYY-MM-DD)"}
	}
	if d.Year() < generic.MinYear {
		return d, &generic.ValidationError{Field: field, Message: fmt.Sprintf("must be in %d or later", generic.MinYear)}
	}
	return d, nil
}

var auditActions = map[generic.AuditAction]bool{
	generic.AuditLeaveCreated:      true,
	generic.AuditLeaveApproved:     true,
	generic.AuditLeaveRejected:     true,
	generic.AuditLeaveAutoApproved: true,
	generic.AuditLeaveCancelled:    true,
}

func parseAuditFilter(r *http.Request) (generic.AuditFilter, error) {
	q := r.URL.Query()
	var filter generic.AuditFilter

	if v := strings.TrimSpace(q.Get("leave_id")); v != "" {
		id := generic.LeaveID(v)
		filter.LeaveID = &id
	}
	if v := strings.TrimSpace(q.Get("employee_id")); v != "" {
		id := generic.EmployeeID(v)
		filter.EmployeeID = &id
	}
	if v := strings.TrimSpace(q.Get("actor_id")); v != "" {
		id := generic.EmployeeID(v)
		filter.ActorID = &id
	}
	for _, v := range q["action"] {
		action := generic.AuditAction(strings.TrimSpace(v))
		if !auditActions[action] {
			return filter, &generic.ValidationError{Field: "action", Message: "unknown action " + v}
		}
		filter.Actions = append(filter.Actions, action)
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, &generic.ValidationError{Field: p.name, Message: "must be an RFC 3339 timestamp"}
		}
		*p.dst = &ts
	}
	return filter, nil
}

func parseDecision(s string) (generic.Status, error) {
	status, ok := generic.ParseStatus(s)
	if !ok || !status.IsDecision() {
		return "", &generic.ValidationError{Field: "status", Message: "must be Approved or Rejected"}
	}
	return status, nil
}
