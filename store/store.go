// Package store implements the relational side of gatehouse on PostgreSQL:
// users, roles, and permissions, plus schema migration and seeding.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gatehouse-labs/gatehouse"
)

var (
	_ gatehouse.UserStore = (*Users)(nil)
	_ gatehouse.RoleStore = (*Roles)(nil)
)

// Open connects with the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}
