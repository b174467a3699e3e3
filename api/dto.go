/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication, decoupled from the
	domain types in generic/ and timeoff/.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:

	Leaves:
	  ApplyLeaveRequest, DecisionRequest, BulkDecisionRequest
	  LeaveDTO, BulkDecisionResponse, AuditEntryDTO

	Team:
	  CalendarResponse, CalendarDayDTO, CalendarEventDTO, BalanceDTO

	Employees:
	  EmployeeDTO, SaveEmployeeRequest

	Scenarios:
	  ScenarioDTO, LoadScenarioRequest

VALIDATION:

	Validation is done in handlers and the service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"errors"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ApplyLeaveRequest is the body of POST /api/leaves.
type ApplyLeaveRequest struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Reason   string `json:"reason"`
}

// DecisionRequest is the body of POST /api/leaves/{id}/decision.
type DecisionRequest struct {
	Status string `json:"status"`
}

// BulkDecisionRequest is the body of POST /api/leaves/bulk-decision.
type BulkDecisionRequest struct {
	LeaveIDs []string `json:"leave_ids"`
	Status   string   `json:"status"`
}

// SaveEmployeeRequest creates or replaces a directory record.
type SaveEmployeeRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	ManagerID   string `json:"manager_id,omitempty"`
	TotalLeaves int    `json:"total_leaves"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LeaveDTO represents a leave request in API responses.
type LeaveDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name,omitempty"`
	FromDate     string  `json:"from_date"`
	ToDate       string  `json:"to_date"`
	Days         float64 `json:"days"`
	Reason       string  `json:"reason"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	DecidedBy    string  `json:"decided_by,omitempty"`
	DecidedAt    string  `json:"decided_at,omitempty"`
	AutoApproved bool    `json:"auto_approved,omitempty"`

	// Countdown fields, Pending only.
	RemainingSeconds *int64 `json:"remaining_seconds,omitempty"`
	Deadline         string `json:"deadline,omitempty"`
}

// BulkDecisionResponse reports per-item outcomes of a bulk decision. Error
// is set only when the batch stopped early.
type BulkDecisionResponse struct {
	Updated []string         `json:"updated"`
	Skipped []SkippedItemDTO `json:"skipped"`
	Error   string           `json:"error,omitempty"`
}

type SkippedItemDTO struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

// AuditEntryDTO is one line of a request's history.
type AuditEntryDTO struct {
	ID         string            `json:"id"`
	Timestamp  string            `json:"timestamp"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	LeaveID    string            `json:"leave_id"`
	EmployeeID string            `json:"employee_id"`
	Payload    map[string]string `json:"payload,omitempty"`
}

type CalendarEventDTO struct {
	LeaveID      string `json:"leave_id"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	FromDate     string `json:"from_date"`
	ToDate       string `json:"to_date"`
	Status       string `json:"status"`
	HasConflict  bool   `json:"has_conflict"`
}

type CalendarDayDTO struct {
	Date     string             `json:"date"`
	Events   []CalendarEventDTO `json:"events"`
	Conflict bool               `json:"conflict"`
}

// CalendarResponse is the team calendar for a date range.
type CalendarResponse struct {
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	Days      []CalendarDayDTO   `json:"days"`
	Events    []CalendarEventDTO `json:"events"`
	Conflicts []string           `json:"conflicts"`
}

// BalanceDTO is one employee's leave-day counts for a year.
type BalanceDTO struct {
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name"`
	Year         int     `json:"year"`
	Total        float64 `json:"total"`
	Used         float64 `json:"used"`
	Pending      float64 `json:"pending"`
	Remaining    float64 `json:"remaining"`
}

// EmployeeDTO represents a directory record in API responses.
type EmployeeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	ManagerID   string `json:"manager_id,omitempty"`
	TotalLeaves int    `json:"total_leaves"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// SweepResponse is returned by the manual sweep trigger.
type SweepResponse struct {
	Approved int    `json:"approved"`
	RanAt    string `json:"ran_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLeaveDTO(req generic.LeaveRequest, name string) LeaveDTO {
	dto := LeaveDTO{
		ID:           string(req.ID),
		EmployeeID:   string(req.EmployeeID),
		EmployeeName: name,
		FromDate:     req.Range.Start.String(),
		ToDate:       req.Range.End.String(),
		Days:         req.Days().Float64(),
		Reason:       req.Reason,
		Status:       string(req.Status),
		CreatedAt:    req.CreatedAt.UTC().Format(time.RFC3339),
		AutoApproved: req.AutoApproved(),
	}
	if req.DecidedBy != nil {
		dto.DecidedBy = string(*req.DecidedBy)
	}
	if req.DecidedAt != nil {
		dto.DecidedAt = req.DecidedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toLeaveViewDTO(v timeoff.LeaveView) LeaveDTO {
	dto := toLeaveDTO(v.LeaveRequest, v.EmployeeName)
	if v.Deadline != nil {
		secs := int64(v.Remaining / time.Second)
		dto.RemainingSeconds = &secs
		dto.Deadline = v.Deadline.UTC().Format(time.RFC3339)
	}
	return dto
}

func toLeaveViewDTOs(views []timeoff.LeaveView) []LeaveDTO {
	out := make([]LeaveDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toLeaveViewDTO(v))
	}
	return out
}

func toBulkDecisionResponse(res *timeoff.BulkResult) BulkDecisionResponse {
	resp := BulkDecisionResponse{
		Updated: make([]string, 0, len(res.Updated)),
		Skipped: make([]SkippedItemDTO, 0, len(res.Skipped)),
	}
	for _, id := range res.Updated {
		resp.Updated = append(resp.Updated, string(id))
	}
	for _, s := range res.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedItemDTO{
			ID:     string(s.ID),
			Reason: s.Reason.Error(),
			Code:   skipCode(s.Reason),
		})
	}
	return resp
}

func skipCode(err error) string {
	switch {
	case errors.Is(err, generic.ErrNotFound):
		return "not_found"
	case errors.Is(err, generic.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, generic.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, generic.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

func toAuditEntryDTOs(entries []generic.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryDTO{
			ID:         string(e.ID),
			Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
			ActorID:    string(e.ActorID),
			Action:     string(e.Action),
			LeaveID:    string(e.LeaveID),
			EmployeeID: string(e.EmployeeID),
			Payload:    e.Payload,
		})
	}
	return out
}

func toCalendarEventDTO(ev timeoff.CalendarEvent) CalendarEventDTO {
	return CalendarEventDTO{
		LeaveID:      string(ev.LeaveID),
		EmployeeID:   string(ev.EmployeeID),
		EmployeeName: ev.EmployeeName,
		FromDate:     ev.Range.Start.String(),
		ToDate:       ev.Range.End.String(),
		Status:       string(ev.Status),
		HasConflict:  ev.HasConflict,
	}
}

func toCalendarResponse(cal *timeoff.TeamCalendar) CalendarResponse {
	resp := CalendarResponse{
		StartDate: cal.Range.Start.String(),
		EndDate:   cal.Range.End.String(),
		Days:      make([]CalendarDayDTO, 0, len(cal.Days)),
		Events:    make([]CalendarEventDTO, 0, len(cal.Events)),
		Conflicts: make([]string, 0, len(cal.Conflicts)),
	}
	for _, day := range cal.Days {
		dto := CalendarDayDTO{
			Date:     day.Date.String(),
			Events:   make([]CalendarEventDTO, 0, len(day.Events)),
			Conflict: day.Conflict,
		}
		for _, ev := range day.Events {
			dto.Events = append(dto.Events, toCalendarEventDTO(ev))
		}
		resp.Days = append(resp.Days, dto)
	}
	for _, ev := range cal.Events {
		resp.Events = append(resp.Events, toCalendarEventDTO(ev))
	}
	for _, d := range cal.Conflicts {
		resp.Conflicts = append(resp.Conflicts, d.String())
	}
	return resp
}

func toBalanceDTOs(balances []timeoff.Balance) []BalanceDTO {
	out := make([]BalanceDTO, 0, len(balances))
	for _, b := range balances {
		out = append(out, BalanceDTO{
			EmployeeID:   string(b.EmployeeID),
			EmployeeName: b.EmployeeName,
			Year:         b.Year,
			Total:        b.Total.Float64(),
			Used:         b.Used.Float64(),
			Pending:      b.Pending.Float64(),
			Remaining:    b.Remaining.Float64(),
		})
	}
	return out
}

func toEmployeeDTO(emp generic.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:          string(emp.ID),
		Name:        emp.Name,
		Email:       emp.Email,
		Role:        string(emp.Role),
		Department:  emp.Department,
		ManagerID:   string(emp.ManagerID),
		TotalLeaves: emp.TotalLeaves,
	}
}
