package pgmodel

import "context"

// Rows is a forward-only result cursor. It mirrors the subset of pgx.Rows
// the session and finders consume, so drivers stay thin and tests can swap
// in an in-memory implementation.
type Rows interface {
	Next() bool
	Columns() []string
	Values() ([]any, error)
	Close()
	Err() error
}

// Querier executes SQL with positional ($1, $2, ...) arguments. Both a
// Driver and an open Tx satisfy it; the session routes statements to
// whichever is active.
type Querier interface {
	// Exec runs a statement and reports the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// Query runs a statement and returns its result cursor.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Tx is an open database transaction.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Driver is the database access point a Session is built on. The postgres
// subpackage implements it over a pgx connection pool.
type Driver interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}
