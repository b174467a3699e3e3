package generic

import "strings"

// =============================================================================
// ROLES AND ACTORS
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
)

// ParseRole normalizes a role name coming from a token or a form.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleEmployee, RoleManager, RoleHR:
		return r, true
	default:
		return "", false
	}
}

// Actor is the authenticated caller, as resolved by the identity provider.
// It is passed explicitly into every lifecycle operation.
type Actor struct {
	ID         EmployeeID
	Role       Role
	Department string
}

// CanApply reports whether the role may submit leave requests.
func (a Actor) CanApply() bool {
	return a.Role == RoleEmployee || a.Role == RoleManager
}

// CanDecide reports whether the role may approve or reject at all.
// Whether a specific record is in scope is checked separately.
func (a Actor) CanDecide() bool {
	return a.Role == RoleManager || a.Role == RoleHR
}

// =============================================================================
// EMPLOYEE - Directory record
// =============================================================================

// Employee is what the directory knows about a person. TotalLeaves is the
// annual allowance supplied by HR policy; zero means "use the default".
type Employee struct {
	ID          EmployeeID
	Name        string
	Email       string
	Role        Role
	Department  string
	ManagerID   EmployeeID
	TotalLeaves int
}

// InScope reports whether actor may decide for, and see team views of, emp.
//
//	hr      -> everyone
//	manager -> same department, or direct reports
//	other   -> nobody
func InScope(actor Actor, emp Employee) bool {
	switch actor.Role {
	case RoleHR:
		return true
	case RoleManager:
		if emp.ManagerID != "" && emp.ManagerID == actor.ID {
			return true
		}
		return actor.Department != "" && strings.EqualFold(emp.Department, actor.Department)
	default:
		return false
	}
}
