package procedure

import "testing"

func TestCanExecute(t *testing.T) {
	cases := []struct {
		name       string
		actorRoles []string
		restricted bool
		allowed    []string
		want       bool
	}{
		{"unrestricted", []string{"viewer"}, false, []string{"responder"}, true},
		{"restricted empty list is unrestricted", []string{"viewer"}, true, nil, true},
		{"intersecting", []string{"viewer", "responder"}, true, []string{"responder"}, true},
		{"disjoint", []string{"viewer"}, true, []string{"responder"}, false},
		{"actor without roles", nil, true, []string{"responder"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := StepDefinition{ID: 1, Title: "S", Type: StepBasic, RoleRestricted: tc.restricted, AllowedRoles: tc.allowed}
			got := CanExecute(Actor{ID: 1, Roles: tc.actorRoles}, def)
			if got != tc.want {
				t.Fatalf("CanExecute = %v, want %v", got, tc.want)
			}
		})
	}
}
