package rbac

import "strings"

// Role is a canonical privilege level. Ranks are totally ordered; a guard
// check passes when the caller's rank is at least the required rank.
type Role int

const (
	// RoleNone means no recognised role; downstream this is treated as
	// unauthenticated.
	RoleNone Role = iota
	// RoleViewer may read tenant resources.
	RoleViewer
	// RoleEditor may edit menus and schedules.
	RoleEditor
	// RoleAdmin manages tenant users and settings.
	RoleAdmin
	// RoleSuperuser operates across tenants via impersonation.
	RoleSuperuser
)

// aliases is the exhaustive table mapping raw role spellings, legacy ones
// included, onto canonical roles. Resolution happens once at
// canonicalization, never at comparison sites.
var aliases = map[string]Role{
	"viewer":       RoleViewer,
	"cook":         RoleViewer,
	"unit_portal":  RoleViewer,
	"unit-portal":  RoleViewer,
	"editor":       RoleEditor,
	"kitchen":      RoleEditor,
	"admin":        RoleAdmin,
	"tenant_admin": RoleAdmin,
	"site_admin":   RoleAdmin,
	"superuser":    RoleSuperuser,
	"root":         RoleSuperuser,
}

// Canonicalize maps a raw role string onto its canonical Role. Matching is
// case- and whitespace-insensitive; unknown spellings yield RoleNone.
func Canonicalize(raw string) Role {
	return aliases[strings.ToLower(strings.TrimSpace(raw))]
}

// Rank returns the strictly increasing privilege rank of the role.
func (r Role) Rank() int { return int(r) }

// Valid reports whether r is one of the four canonical roles.
func (r Role) Valid() bool { return r >= RoleViewer && r <= RoleSuperuser }

// String returns the canonical spelling.
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleEditor:
		return "editor"
	case RoleAdmin:
		return "admin"
	case RoleSuperuser:
		return "superuser"
	}
	return "none"
}
