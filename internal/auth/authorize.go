package auth

import (
	"fmt"
	"strings"
)

// Role is the single access level carried by a principal.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole normalizes raw into a known role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated identity a token speaks for.
type Principal struct {
	ID   string
	Role Role
}

// Authorize checks that the principal holds exactly the required role.
// There is no hierarchy: an admin does not satisfy a user requirement.
func (p Principal) Authorize(required Role) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrUnauthenticated
	}
	if p.Role != required {
		return ErrForbidden
	}
	return nil
}
