package domain

import (
	"fmt"
	"strconv"
)

// Role enumerates the fixed user hierarchy. Values match the stored role identifiers.
type Role int

const (
	RoleAdmin      Role = 1
	RoleLeader     Role = 2
	RoleTechnician Role = 3
	RoleStaff      Role = 4
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLeader, RoleTechnician, RoleStaff:
		return true
	default:
		return false
	}
}

// String returns the identifier used in logs and tokens.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleLeader:
		return "leader"
	case RoleTechnician:
		return "technician"
	case RoleStaff:
		return "staff"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// CanWorkTickets reports whether the role may be assigned tickets.
func (r Role) CanWorkTickets() bool {
	return r == RoleLeader || r == RoleTechnician
}

// ParseRole converts a numeric identifier into a Role.
func ParseRole(id int) (Role, error) {
	r := Role(id)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown role id %d", id)
	}
	return r, nil
}

// RoleLabels maps roles to the display names used in remark attributions.
type RoleLabels map[Role]string

// DefaultRoleLabels returns the labels used by the school IT team.
func DefaultRoleLabels() RoleLabels {
	return RoleLabels{
		RoleAdmin:      "Admin",
		RoleLeader:     "TSS Leader",
		RoleTechnician: "TSS",
		RoleStaff:      "Staff",
	}
}

// Label returns the display name for r, falling back to the role identifier.
func (l RoleLabels) Label(r Role) string {
	if name, ok := l[r]; ok && name != "" {
		return name
	}
	return r.String()
}

// Actor identifies who performs a ticket operation.
type Actor struct {
	UserID string
	Role   Role
}
