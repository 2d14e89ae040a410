package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"vigil-ird/core/procedure"
	"vigil-ird/core/rbac"
)

type RolesStore interface {
	CreateRole(ctx context.Context, name, description string, permissions []rbac.Permission) (int64, error)
	CountRoles(ctx context.Context) (int, error)
	// ListRoles is the engine's RoleDirectory contract.
	ListRoles(ctx context.Context) ([]procedure.Role, error)
	// ListRoleGrants feeds the rbac policy rebuild.
	ListRoleGrants(ctx context.Context) ([]rbac.Role, error)
}

type rolesStore struct {
	db *sql.DB
}

func NewRolesStore(db *sql.DB) RolesStore {
	return &rolesStore{db: db}
}

func (s *rolesStore) CreateRole(ctx context.Context, name, description string, permissions []rbac.Permission) (int64, error) {
	perms, err := json.Marshal(permissions)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO roles(name, description, permissions) VALUES(?,?,?)`,
		strings.TrimSpace(name), description, string(perms))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *rolesStore) CountRoles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n)
	return n, err
}

func (s *rolesStore) ListRoles(ctx context.Context) ([]procedure.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []procedure.Role
	for rows.Next() {
		var r procedure.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *rolesStore) ListRoleGrants(ctx context.Context) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, permissions FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		var role rbac.Role
		var perms string
		if err := rows.Scan(&role.Name, &perms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(perms), &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
