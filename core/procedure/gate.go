package procedure

// CanExecute reports whether the actor may record an execution on the
// step. An absent or empty role list means unrestricted, not forbidden.
func CanExecute(actor Actor, def StepDefinition) bool {
	if !def.RoleRestricted || len(def.AllowedRoles) == 0 {
		return true
	}
	return rolesIntersect(actor.Roles, def.AllowedRoles)
}

func rolesIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, r := range a {
		set[r] = struct{}{}
	}
	for _, r := range b {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
