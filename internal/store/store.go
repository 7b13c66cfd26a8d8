// Package store holds the database abstraction shared by the Postgres
// repositories: a minimal interface satisfied by both *sql.DB and *sql.Tx,
// so a repository can run inside a caller's transaction when needed.
package store

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
