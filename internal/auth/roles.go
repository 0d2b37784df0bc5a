// Package auth implements JWT authentication and role checks for the
// operational HTTP surface.
package auth

import "strings"

// Role is an access level carried in the token.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// NormalizeRole canonicalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(value))) {
	case RoleViewer:
		return RoleViewer, true
	case RoleOperator:
		return RoleOperator, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Allows reports whether the role satisfies the requirement.
func (r Role) Allows(required Role) bool {
	return rank(r) >= rank(required)
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleOperator:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}
