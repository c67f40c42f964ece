package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConnectionFailed    = errors.New("pg: could not open connection")
	ErrInvalidConfig       = errors.New("pg: invalid pool config")
	ErrHealthcheckFailed   = errors.New("pg: healthcheck failed")
	ErrMigrationsFailed    = errors.New("pg: migrations failed")
	ErrMigrationsDirAbsent = errors.New("pg: migrations directory not found")
	ErrNoMigrationsPath    = errors.New("pg: migrations path not set")
)

// IsNotFound reports pgx.ErrNoRows.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsTxClosed reports use of an already finished transaction, typically a
// session committed or rolled back twice.
func IsTxClosed(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrTxClosed)
}

// IsDuplicateKey reports a unique-constraint violation (SQLSTATE 23505).
// Validation's CheckUnique lookup races with concurrent writers; the
// constraint is the backstop and this classifier recognizes it.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return err != nil && errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a referential-integrity violation
// (SQLSTATE 23503), e.g. a derived FK pointing at a row deleted since
// validation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return err != nil && errors.As(err, &pgErr) && pgErr.Code == "23503"
}
