package rbac

import (
	"sort"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

// Permissions is the full catalog. Role editors validate against it.
var Permissions = []Permission{
	"accounts.manage",
	"audit.view",
	"incidents.view",
	"incidents.manage",
	"incidents.close",
	"procedure.execute",
	"procedure.escalate",
	"templates.view",
	"templates.manage",
	"forms.manage",
	"records.view",
	"records.manage",
	"shifts.view",
	"shifts.manage",
	"notifications.view",
}

type Role struct {
	Name        string
	Permissions []Permission
}

// DefaultRoles seeds a fresh install. The role editor can replace them.
func DefaultRoles() []Role {
	return []Role{
		{Name: "admin", Permissions: []Permission{"*"}},
		{Name: "responder", Permissions: []Permission{
			"incidents.view", "incidents.manage", "incidents.close",
			"procedure.execute", "procedure.escalate",
			"templates.view", "records.view", "shifts.view", "notifications.view",
		}},
		{Name: "analyst", Permissions: []Permission{
			"incidents.view", "procedure.execute",
			"templates.view", "records.view", "shifts.view", "notifications.view",
		}},
		{Name: "viewer", Permissions: []Permission{
			"incidents.view", "templates.view", "records.view", "shifts.view",
		}},
	}
}

// rbacModel grants when the role holds the exact permission or the "*"
// wildcard.
const rbacModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj)
`

// Policy answers role-set permission checks. Rebuilt wholesale on role
// edits via Refresh; reads take the lock briefly.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func NewPolicy(roles []Role) *Policy {
	p := &Policy{}
	p.Refresh(roles)
	return p
}

func buildEnforcer(roles []Role) *casbin.Enforcer {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		panic("rbac model: " + err.Error())
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		panic("rbac enforcer: " + err.Error())
	}
	for _, role := range roles {
		name := strings.TrimSpace(role.Name)
		if name == "" {
			continue
		}
		for _, perm := range role.Permissions {
			_, _ = e.AddPolicy(name, string(perm))
		}
	}
	return e
}

func (p *Policy) Refresh(roles []Role) {
	e := buildEnforcer(roles)
	p.mu.Lock()
	p.enforcer = e
	p.mu.Unlock()
}

// Allowed reports whether any of the given role names grants the
// permission.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	p.mu.RLock()
	e := p.enforcer
	p.mu.RUnlock()
	if e == nil {
		return false
	}
	for _, role := range roles {
		ok, err := e.Enforce(strings.TrimSpace(role), string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// NormalizePermissionNames maps raw names onto the catalog; unknown
// names are returned separately so callers can reject them.
func NormalizePermissionNames(raw []string) ([]Permission, []string) {
	known := make(map[Permission]struct{}, len(Permissions))
	for _, p := range Permissions {
		known[p] = struct{}{}
	}
	seen := make(map[Permission]struct{})
	var perms []Permission
	var invalid []string
	for _, name := range raw {
		p := Permission(strings.ToLower(strings.TrimSpace(name)))
		if p == "" {
			continue
		}
		if p == "*" {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				perms = append(perms, p)
			}
			continue
		}
		if _, ok := known[p]; !ok {
			invalid = append(invalid, name)
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms, invalid
}
