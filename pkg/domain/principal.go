package domain

import "strings"

// Role is the coarse access level carried by an authenticated principal.
type Role string

const (
	RoleAdmin             Role = "ADMIN"
	RoleDepartmentManager Role = "DEPARTMENT_MANAGER"
	RoleUser              Role = "USER"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDepartmentManager, RoleUser:
		return true
	}
	return false
}

// ParseRole normalizes a raw role string, defaulting unknown values to
// RoleUser so a malformed token can never escalate.
func ParseRole(raw string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if r.IsValid() {
		return r
	}
	return RoleUser
}

// Principal is the authenticated identity passed explicitly into every
// service operation. It is assembled by the auth middleware from validated
// token claims and trusted unconditionally per call.
type Principal struct {
	UserID         UserID
	Role           Role
	DepartmentID   DepartmentID
	DepartmentName string
	Email          string
}

func (p Principal) IsAdmin() bool             { return p.Role == RoleAdmin }
func (p Principal) IsDepartmentManager() bool { return p.Role == RoleDepartmentManager }
