package store

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id          text PRIMARY KEY,
		name        text NOT NULL UNIQUE,
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id          text PRIMARY KEY,
		name        text NOT NULL UNIQUE,
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS role_permissions (
		role_id        text NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		permission_id  text NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		PRIMARY KEY (role_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id             text PRIMARY KEY,
		email          text NOT NULL,
		password_hash  text NOT NULL,
		name           text,
		role_id        text NOT NULL REFERENCES roles(id),
		created_at     timestamptz NOT NULL DEFAULT now(),
		updated_at     timestamptz NOT NULL DEFAULT now(),
		deleted_at     timestamptz
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_live
		ON users (lower(email)) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS users_role_id ON users (role_id)`,
}

// Migrate applies the schema. Every statement is idempotent, so running it
// on every startup is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migration %d: %w", i, err)
		}
	}
	return nil
}
