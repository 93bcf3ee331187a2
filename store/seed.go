package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatehouse-labs/gatehouse"
)

// Permission names granted to the seeded roles.
const (
	PermUserCreate    = "user:create"
	PermUserRead      = "user:read"
	PermUserUpdate    = "user:update"
	PermUserDelete    = "user:delete"
	PermProfileRead   = "profile:read"
	PermProfileUpdate = "profile:update"
)

var seedPermissions = []string{
	PermUserCreate,
	PermUserRead,
	PermUserUpdate,
	PermUserDelete,
	PermProfileRead,
	PermProfileUpdate,
	gatehouse.WildcardPermission,
}

var seedRoles = map[string][]string{
	gatehouse.AdminRole: seedPermissions,
	"MANAGER":           {PermUserRead, PermProfileRead, PermProfileUpdate},
	gatehouse.DefaultRole: {
		PermProfileRead,
		PermProfileUpdate,
	},
}

// Seed inserts the base permissions and roles. It is idempotent: existing
// rows are left untouched and only missing grants are added, so it can run
// on every deploy.
func Seed(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: seed: %w", err)
	}
	defer tx.Rollback()

	for _, perm := range seedPermissions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permissions (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			newID(), perm,
		); err != nil {
			return fmt.Errorf("store: seed permission %s: %w", perm, err)
		}
	}

	for role, perms := range seedRoles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roles (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			newID(), role,
		); err != nil {
			return fmt.Errorf("store: seed role %s: %w", role, err)
		}
		for _, perm := range perms {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO role_permissions (role_id, permission_id)
				 SELECT r.id, p.id FROM roles r, permissions p
				 WHERE r.name = $1 AND p.name = $2
				 ON CONFLICT DO NOTHING`,
				role, perm,
			); err != nil {
				return fmt.Errorf("store: seed grant %s/%s: %w", role, perm, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: seed: %w", err)
	}
	return nil
}
