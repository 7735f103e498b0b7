package models

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a project member role. The set is closed.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleEditor   Role = "EDITOR"
	RoleOperator Role = "OPERATOR"
	RoleDesigner Role = "DESIGNER"
	RoleInvite   Role = "INVITE"
)

// ErrUnknownRole is returned when a string does not name a known role.
var ErrUnknownRole = errors.New("unknown role")

var allRoles = []Role{RoleOwner, RoleEditor, RoleOperator, RoleDesigner, RoleInvite}

var roleLabels = map[Role]string{
	RoleOwner:    "Owner",
	RoleEditor:   "Editor",
	RoleOperator: "Operator",
	RoleDesigner: "Designer",
	RoleInvite:   "Invited",
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// AssignableRoles returns the roles a stage may require. Owners can act on
// any stage, so OWNER is never offered as a requirement.
func AssignableRoles() []Role {
	out := make([]Role, 0, len(allRoles)-1)
	for _, r := range allRoles {
		if r != RoleOwner {
			out = append(out, r)
		}
	}
	return out
}

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(value string) (Role, error) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns a human readable name for display purposes.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}
