package appbootstrap

import (
	"context"
	"os"
	"strings"

	"vigil-ird/core/rbac"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

// seedDefaults provisions the default role set and an initial admin on
// a fresh database. Existing installs are left untouched.
func seedDefaults(ctx context.Context, users store.UsersStore, roles store.RolesStore, logger *utils.Logger) error {
	count, err := roles.CountRoles(ctx)
	if err != nil {
		return err
	}
	adminRoleID := int64(0)
	if count == 0 {
		for _, role := range rbac.DefaultRoles() {
			id, err := roles.CreateRole(ctx, role.Name, "", role.Permissions)
			if err != nil {
				return err
			}
			if role.Name == "admin" {
				adminRoleID = id
			}
		}
		if logger != nil {
			logger.Printf("seeded default roles")
		}
	}

	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	password := strings.TrimSpace(os.Getenv("VIGIL_ADMIN_PASSWORD"))
	generated := false
	if password == "" {
		password, err = utils.RandString(12)
		if err != nil {
			return err
		}
		generated = true
	}
	var roleIDs []int64
	if adminRoleID != 0 {
		roleIDs = []int64{adminRoleID}
	}
	if _, err := users.CreateUser(ctx, &store.User{Username: "admin", FullName: "Administrator"}, password, roleIDs); err != nil {
		return err
	}
	if logger != nil {
		if generated {
			logger.Printf("created default admin user, generated password: %s", password)
		} else {
			logger.Printf("created default admin user")
		}
	}
	return nil
}
