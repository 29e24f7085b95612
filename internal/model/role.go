package model

import "strings"

// Role is the closed set of profile roles.
type Role string

const (
	RoleAgent     Role = "agent"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAgent, RoleDeveloper, RoleAdmin:
		return r, true
	}
	return "", false
}

// IsAdmin reports whether the role grants the admin area.  Agents and
// developers are both standard users for access control.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// SignupRole returns the role a self-registering user receives.  Admin is
// never self-assignable; anything unknown becomes agent.
func SignupRole(s string) Role {
	if r, ok := ParseRole(s); ok && r != RoleAdmin {
		return r
	}
	return RoleAgent
}
