package rbac

import "testing"

func TestAllowed(t *testing.T) {
	policy := NewPolicy([]Role{
		{Name: "responder", Permissions: []Permission{"incidents.view", "procedure.execute"}},
		{Name: "admin", Permissions: []Permission{"*"}},
	})

	cases := []struct {
		name  string
		roles []string
		perm  Permission
		want  bool
	}{
		{"direct grant", []string{"responder"}, "procedure.execute", true},
		{"missing grant", []string{"responder"}, "accounts.manage", false},
		{"wildcard", []string{"admin"}, "accounts.manage", true},
		{"any role suffices", []string{"responder", "admin"}, "templates.manage", true},
		{"unknown role", []string{"ghost"}, "incidents.view", false},
		{"no roles", nil, "incidents.view", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Allowed(tc.roles, tc.perm); got != tc.want {
				t.Fatalf("Allowed(%v, %q) = %v, want %v", tc.roles, tc.perm, got, tc.want)
			}
		})
	}
}

func TestRefreshReplacesGrants(t *testing.T) {
	policy := NewPolicy([]Role{{Name: "viewer", Permissions: []Permission{"incidents.view"}}})
	if !policy.Allowed([]string{"viewer"}, "incidents.view") {
		t.Fatal("expected initial grant")
	}
	policy.Refresh([]Role{{Name: "viewer", Permissions: []Permission{"templates.view"}}})
	if policy.Allowed([]string{"viewer"}, "incidents.view") {
		t.Fatal("stale grant survived refresh")
	}
	if !policy.Allowed([]string{"viewer"}, "templates.view") {
		t.Fatal("new grant missing after refresh")
	}
}

func TestNormalizePermissionNames(t *testing.T) {
	perms, invalid := NormalizePermissionNames([]string{"Incidents.View", "incidents.view", "bogus.perm", "", "procedure.execute"})
	if len(invalid) != 1 || invalid[0] != "bogus.perm" {
		t.Fatalf("invalid = %v", invalid)
	}
	if len(perms) != 2 || perms[0] != "incidents.view" || perms[1] != "procedure.execute" {
		t.Fatalf("perms = %v", perms)
	}
}

func TestDefaultRolesCoverProcedureExecution(t *testing.T) {
	policy := NewPolicy(DefaultRoles())
	if !policy.Allowed([]string{"responder"}, "procedure.escalate") {
		t.Fatal("responder should escalate")
	}
	if policy.Allowed([]string{"viewer"}, "procedure.execute") {
		t.Fatal("viewer should not execute steps")
	}
	if !policy.Allowed([]string{"admin"}, "shifts.manage") {
		t.Fatal("admin wildcard should cover shifts.manage")
	}
}
