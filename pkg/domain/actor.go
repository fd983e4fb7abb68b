package domain

import dErrors "caseflow/pkg/domain-errors"

// Role is the coarse permission level of an authenticated actor.
type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

var validRoles = map[Role]bool{
	RoleMember: true,
	RoleStaff:  true,
	RoleAdmin:  true,
}

// ParseRole validates a role claim from an external token.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

// Actor is the authenticated identity on whose behalf an operation runs.
// Every repository read is scoped by TenantID.
type Actor struct {
	ID       UserID
	TenantID TenantID
	Role     Role
}

// IsStaff reports whether the actor may take review decisions and run automation.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// Validate rejects actors without identity or tenant.
func (a Actor) Validate() error {
	if a.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "actor id is required")
	}
	if a.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "actor tenant is required")
	}
	if !validRoles[a.Role] {
		return dErrors.New(dErrors.CodeUnauthorized, "actor role is invalid")
	}
	return nil
}
