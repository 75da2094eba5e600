package rbac

import "testing"

func TestCanonicalizeAliases(t *testing.T) {
	cases := map[string]Role{
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
	for raw, want := range cases {
		if got := Canonicalize(raw); got != want {
			t.Errorf("Canonicalize(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestCanonicalizeNormalizesInput(t *testing.T) {
	if got := Canonicalize("  Kitchen "); got != RoleEditor {
		t.Fatalf("expected editor, got %v", got)
	}
	if got := Canonicalize("ROOT"); got != RoleSuperuser {
		t.Fatalf("expected superuser, got %v", got)
	}
}

func TestCanonicalizeUnknownYieldsNone(t *testing.T) {
	for _, raw := range []string{"", "chef", "super user", "admin2"} {
		if got := Canonicalize(raw); got != RoleNone {
			t.Errorf("Canonicalize(%q) = %v, want RoleNone", raw, got)
		}
	}
	if RoleNone.Valid() {
		t.Fatal("RoleNone must not be a valid role")
	}
}

func TestRankOrdering(t *testing.T) {
	order := []Role{RoleViewer, RoleEditor, RoleAdmin, RoleSuperuser}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("%v should rank below %v", order[i-1], order[i])
		}
	}
}

func TestRoleString(t *testing.T) {
	if RoleAdmin.String() != "admin" {
		t.Fatalf("unexpected spelling %q", RoleAdmin.String())
	}
	if RoleNone.String() != "none" {
		t.Fatalf("unexpected spelling %q", RoleNone.String())
	}
}
