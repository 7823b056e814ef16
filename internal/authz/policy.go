// Package authz defines the static role hierarchy and permission matrix.
// It is the only place permission semantics live; every guard consults it
// instead of re-encoding rules.
package authz

import "fmt"

// Role is a totally ordered permission tier within a tenant.
type Role int8

const (
	// RoleCarer is the least privileged tier and the default for principals
	// with no membership row.
	RoleCarer Role = 1
	// RoleCoordinator may manage records within assigned scope groups.
	RoleCoordinator Role = 2
	// RoleAdmin has every permission within the tenant.
	RoleAdmin Role = 3
)

// String returns the wire/storage form of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleCoordinator:
		return "coordinator"
	case RoleCarer:
		return "carer"
	}
	return fmt.Sprintf("role(%d)", int8(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCoordinator || r == RoleCarer
}

// ParseRole converts a stored role string back to a Role. Unknown values are
// an error, never a silent default: the original system carried extra "-ALL"
// role variants in type unions that were never implemented, and any such
// value reaching this code must surface loudly.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "coordinator":
		return RoleCoordinator, nil
	case "carer":
		return RoleCarer, nil
	}
	return 0, fmt.Errorf("authz: unknown role %q", s)
}

// Permission is an atomic action tag.
type Permission string

const (
	PermAnimalViewAll     Permission = "animal:view_all"
	PermAnimalCreate      Permission = "animal:create"
	PermAnimalUpdate      Permission = "animal:update"
	PermAnimalDelete      Permission = "animal:delete"
	PermUserManage        Permission = "user:manage"
	PermScopeGroupManage  Permission = "scope_group:manage"
	PermReportExport      Permission = "report:export"
	PermAuditView         Permission = "audit:view"
)

// Permissions lists every defined permission.
func Permissions() []Permission {
	return []Permission{
		PermAnimalViewAll,
		PermAnimalCreate,
		PermAnimalUpdate,
		PermAnimalDelete,
		PermUserManage,
		PermScopeGroupManage,
		PermReportExport,
		PermAuditView,
	}
}

// matrix maps each role to its baseline permission set. Built once, never
// mutated. Scope assignments narrow coordinator visibility; they never add
// entries here.
var matrix = map[Role]map[Permission]struct{}{
	RoleAdmin: permSet(
		PermAnimalViewAll,
		PermAnimalCreate,
		PermAnimalUpdate,
		PermAnimalDelete,
		PermUserManage,
		PermScopeGroupManage,
		PermReportExport,
		PermAuditView,
	),
	RoleCoordinator: permSet(
		PermAnimalViewAll,
		PermAnimalCreate,
		PermAnimalUpdate,
		PermAnimalDelete,
		PermReportExport,
	),
	RoleCarer: permSet(
		PermAnimalCreate,
		PermAnimalUpdate,
	),
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// HasPermission reports whether the role's baseline set contains the
// permission. Exact set membership, no wildcards.
func HasPermission(role Role, perm Permission) bool {
	set, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// HasMinimumRole reports whether role sits at or above min in the hierarchy.
func HasMinimumRole(role, min Role) bool {
	if !role.Valid() || !min.Valid() {
		return false
	}
	return role >= min
}
