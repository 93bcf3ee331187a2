package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gatehouse-labs/gatehouse"
)

// Roles implements [gatehouse.RoleStore].
type Roles struct {
	db *sql.DB
}

func NewRoles(db *sql.DB) *Roles {
	return &Roles{db: db}
}

const roleQuery = `SELECT r.id, r.name, coalesce(string_agg(p.name, ','), '')
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id`

func scanRole(row *sql.Row) (*gatehouse.Role, error) {
	var r gatehouse.Role
	var perms string
	if err := row.Scan(&r.ID, &r.Name, &perms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gatehouse.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan role: %w", err)
	}
	if perms != "" {
		r.Permissions = strings.Split(perms, ",")
	}
	return &r, nil
}

// ByID resolves a role and its permission set by id.
func (s *Roles) ByID(ctx context.Context, id string) (*gatehouse.Role, error) {
	row := s.db.QueryRowContext(ctx,
		roleQuery+` WHERE r.id = $1 GROUP BY r.id, r.name`, id)
	return scanRole(row)
}

// ByName resolves a role and its permission set by name.
func (s *Roles) ByName(ctx context.Context, name string) (*gatehouse.Role, error) {
	row := s.db.QueryRowContext(ctx,
		roleQuery+` WHERE r.name = $1 GROUP BY r.id, r.name`, name)
	return scanRole(row)
}
