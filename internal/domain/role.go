package domain

import (
	"fmt"
	"strings"
)

// Role is one of the closed set of roles a cooperative member can be granted.
// The string value is the one stored in user_roles.role.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RolePresident     Role = "president"
	RoleManager       Role = "manager"
	RoleEmployee      Role = "employee"
	RolePartner       Role = "partner"
	RoleDriver        Role = "driver"
	RoleOfficial      Role = "official"
	RoleClient        Role = "client"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{
	RoleAdministrator,
	RolePresident,
	RoleManager,
	RoleEmployee,
	RolePartner,
	RoleDriver,
	RoleOfficial,
	RoleClient,
}

// ParseRole converts a raw value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", &ErrValidation{Field: "role", Message: fmt.Sprintf("rol desconocido: %q", s)}
	}
	return r, nil
}

// ParseRoles parses a list of raw role names, rejecting duplicates.
func ParseRoles(raw []string) ([]Role, error) {
	seen := make(map[Role]bool, len(raw))
	roles := make([]Role, 0, len(raw))
	for _, s := range raw {
		r, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			return nil, &ErrValidation{Field: "roles", Message: fmt.Sprintf("rol repetido: %s", r)}
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return roles, nil
}

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RolePresident, RoleManager, RoleEmployee,
		RolePartner, RoleDriver, RoleOfficial, RoleClient:
		return true
	}
	return false
}

// Label returns the Spanish UI label for the role.
func (r Role) Label() string {
	switch r {
	case RoleAdministrator:
		return "Administrador"
	case RolePresident:
		return "Presidente"
	case RoleManager:
		return "Gerente"
	case RoleEmployee:
		return "Empleado"
	case RolePartner:
		return "Socio"
	case RoleDriver:
		return "Conductor"
	case RoleOfficial:
		return "Oficial"
	case RoleClient:
		return "Cliente"
	}
	return string(r)
}

// Schedulable reports whether schedule windows may be defined for the role.
func (r Role) Schedulable() bool {
	switch r {
	case RoleEmployee, RoleDriver, RoleOfficial:
		return true
	case RoleAdministrator, RolePresident, RoleManager, RolePartner, RoleClient:
		return false
	}
	return false
}

func (r Role) String() string { return string(r) }

// HasRole reports whether roles contains r.
func HasRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

// RoleGrant ties an identity to one role (row of user_roles).
type RoleGrant struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// GrantedRoles extracts the roles of a grant list, preserving order.
func GrantedRoles(grants []RoleGrant) []Role {
	roles := make([]Role, 0, len(grants))
	for _, g := range grants {
		roles = append(roles, g.Role)
	}
	return roles
}
