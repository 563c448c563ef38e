package db

import (
	"context"
	"fmt"

	"github.com/postboard/backend/internal/model"
)

type seedPermission struct {
	name, resource, action, description string
}

var seedRoles = []model.Role{
	{Name: model.RoleUser, Description: "Regular user with basic permissions"},
	{Name: model.RoleModerator, Description: "Moderator with extended permissions"},
	{Name: model.RoleAdmin, Description: "Administrator with full permissions"},
}

var seedPermissions = []seedPermission{
	{model.PermPostsCreate, "posts", "create", "Create new posts"},
	{model.PermPostsRead, "posts", "read", "Read posts"},
	{model.PermPostsUpdate, "posts", "update", "Update posts"},
	{model.PermPostsDelete, "posts", "delete", "Delete posts"},
	{model.PermUsersManage, "users", "manage", "Manage users"},
	{model.PermRolesManage, "roles", "manage", "Manage roles and permissions"},
}

// role -> 부여 권한. ADMIN 은 전체.
var seedGrants = map[string][]string{
	model.RoleUser: {model.PermPostsCreate, model.PermPostsRead, model.PermPostsUpdate},
	model.RoleModerator: {
		model.PermPostsCreate, model.PermPostsRead, model.PermPostsUpdate, model.PermPostsDelete,
		model.PermUsersManage,
	},
	model.RoleAdmin: {
		model.PermPostsCreate, model.PermPostsRead, model.PermPostsUpdate, model.PermPostsDelete,
		model.PermUsersManage, model.PermRolesManage,
	},
}

// SeedRBAC - 기본 역할/권한/매핑 upsert. 여러 번 실행해도 결과는 같다.
func (db *Postgres) SeedRBAC(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, role := range seedRoles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO roles (name, description) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, role.Name, role.Description); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}

	for _, p := range seedPermissions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO permissions (name, resource, action, description) VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, p.name, p.resource, p.action, p.description); err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", p.name, err)
		}
	}

	for role, perms := range seedGrants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p
			WHERE r.name = $1 AND p.name = ANY($2)
			ON CONFLICT (role_id, permission_id) DO NOTHING
		`, role, perms); err != nil {
			return fmt.Errorf("failed to seed grants for %s: %w", role, err)
		}
	}

	return tx.Commit(ctx)
}
