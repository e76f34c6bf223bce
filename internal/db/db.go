// Package db is the hand-maintained query layer over Postgres. It follows the
// sqlc layout: a DBTX that both *sql.DB and *sql.Tx satisfy, a Queries struct
// bound to one DBTX, and a Querier interface that handlers and tests program
// against.
package db

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New returns Queries bound to db (a pool or a transaction).
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries implements Querier.
type Queries struct {
	db DBTX
}
