// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.Store, generic.Directory and generic.AuditLog.
// A single mutex serializes writers, which makes every compare-and-set atomic.
type Memory struct {
	mu        sync.RWMutex
	leaves    map[generic.LeaveID]generic.LeaveRequest
	employees map[generic.EmployeeID]generic.Employee
	audit     []generic.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		leaves:    make(map[generic.LeaveID]generic.LeaveRequest),
		employees: make(map[generic.EmployeeID]generic.Employee),
	}
}

var (
	_ generic.Store     = (*Memory)(nil)
	_ generic.Directory = (*Memory)(nil)
	_ generic.AuditLog  = (*Memory)(nil)
)

// Insert adds a new request. IDs must be unique.
func (m *Memory) Insert(_ context.Context, req generic.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.leaves[req.ID]; exists {
		return &generic.ValidationError{Field: "id", Message: "already exists"}
	}
	m.leaves[req.ID] = req
	return nil
}

func (m *Memory) Get(_ context.Context, id generic.LeaveID) (*generic.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.leaves[id]
	if !ok {
		return nil, generic.LeaveNotFound(id)
	}
	return &req, nil
}

// TransitionPending is the compare-and-set on status == Pending.
func (m *Memory) TransitionPending(_ context.Context, id generic.LeaveID, to generic.Status, decidedBy generic.EmployeeID, at time.Time) (*generic.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.leaves[id]
	if !ok {
		return nil, generic.LeaveNotFound(id)
	}
	if !req.IsPending() {
		return nil, &generic.InvalidStateError{LeaveID: id, Status: req.Status}
	}

	updated := req.Decided(to, decidedBy, at)
	m.leaves[id] = updated
	return &updated, nil
}

// DeletePending removes the request only while it is Pending.
func (m *Memory) DeletePending(_ context.Context, id generic.LeaveID) (*generic.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.leaves[id]
	if !ok {
		return nil, generic.LeaveNotFound(id)
	}
	if !req.IsPending() {
		return nil, &generic.InvalidStateError{LeaveID: id, Status: req.Status}
	}

	delete(m.leaves, id)
	return &req, nil
}

func (m *Memory) List(_ context.Context, filter generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.LeaveRequest
	for _, req := range m.leaves {
		if filter.Matches(req) {
			result = append(result, req)
		}
	}
	sortLeaves(result)
	return result, nil
}

func (m *Memory) ListExpiredPending(_ context.Context, cutoff time.Time) ([]generic.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.LeaveRequest
	for _, req := range m.leaves {
		if req.IsPending() && !req.CreatedAt.After(cutoff) {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func sortLeaves(leaves []generic.LeaveRequest) {
	sort.Slice(leaves, func(i, j int) bool {
		a, b := leaves[i], leaves[j]
		if !a.Range.Start.Equal(b.Range.Start) {
			return a.Range.Start.Before(b.Range.Start)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, generic.EmployeeNotFound(id)
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !strings.EqualFold(result[i].Name, result[j].Name) {
			return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveEmployee(_ context.Context, emp generic.Employee) error {
	if emp.ID == "" {
		return &generic.ValidationError{Field: "id", Message: "is required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.AuditEntry
	for _, e := range m.audit {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves = make(map[generic.LeaveID]generic.LeaveRequest)
	m.employees = make(map[generic.EmployeeID]generic.Employee)
	m.audit = nil
	return nil
}
