package domain

import dErrors "civreg/pkg/domain-errors"

// Role is a domain value naming what an actor may do at their office.
// Invariant: the value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

// Supported roles. Clerks act for their own office; divisional officers
// approve or reject transfers originating from offices inside their division.
const (
	RoleClerk             Role = "clerk"
	RoleDivisionalOfficer Role = "divisional_officer"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleClerk:             true,
	RoleDivisionalOfficer: true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
