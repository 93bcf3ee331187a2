package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gatehouse-labs/gatehouse"
)

// Users implements [gatehouse.UserStore]. Every read joins the role and its
// permissions so a single query yields a fully annotated record, and every
// query excludes soft-deleted rows.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

const userColumns = `u.id, u.email, u.password_hash, u.name, u.role_id, r.name,
		coalesce(string_agg(p.name, ','), ''), u.created_at`

const userJoins = `FROM users u
	JOIN roles r ON r.id = u.role_id
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id`

const userGroupBy = `GROUP BY u.id, u.email, u.password_hash, u.name, u.role_id, r.name, u.created_at`

func scanUser(row interface{ Scan(...any) error }) (*gatehouse.User, error) {
	var u gatehouse.User
	var name sql.NullString
	var perms string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &u.RoleID, &u.RoleName, &perms, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gatehouse.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	if name.Valid {
		u.Name = &name.String
	}
	if perms != "" {
		u.Permissions = strings.Split(perms, ",")
	}
	return &u, nil
}

// FindByEmail looks up a live user by email, case-insensitively.
func (s *Users) FindByEmail(ctx context.Context, email string) (*gatehouse.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` `+userJoins+`
		 WHERE lower(u.email) = lower($1) AND u.deleted_at IS NULL `+userGroupBy,
		email,
	)
	return scanUser(row)
}

// FindByID looks up a live user by id.
func (s *Users) FindByID(ctx context.Context, id string) (*gatehouse.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` `+userJoins+`
		 WHERE u.id = $1 AND u.deleted_at IS NULL `+userGroupBy,
		id,
	)
	return scanUser(row)
}

// Create inserts a user and returns the annotated record. The partial unique
// index on lower(email) enforces one live account per address; the caller's
// pre-check narrows the window, the index closes it.
func (s *Users) Create(ctx context.Context, email, passwordHash, roleID string, name *string) (*gatehouse.User, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, email, passwordHash, name, roleID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return s.FindByID(ctx, id)
}

// UpdateProfile sets the display name and returns the updated record.
func (s *Users) UpdateProfile(ctx context.Context, id string, name *string) (*gatehouse.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, updated_at = now()
		 WHERE id = $2 AND deleted_at IS NULL`,
		name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: update profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, gatehouse.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// SoftDelete marks a user deleted. The row stays for audit and the email
// becomes reusable through the partial unique index.
func (s *Users) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("store: soft delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return gatehouse.ErrNotFound
	}
	return nil
}

// List pages through live users, newest first, and reports the total count
// for pagination metadata. Page and limit are 1-based and clamped.
func (s *Users) List(ctx context.Context, page, limit int) ([]*gatehouse.User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM users WHERE deleted_at IS NULL`,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("store: count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` `+userJoins+`
		 WHERE u.deleted_at IS NULL `+userGroupBy+`
		 ORDER BY u.created_at DESC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var users []*gatehouse.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: list users: %w", err)
	}
	return users, total, nil
}
