package library

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the store-level constraints surface as.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// isUniqueViolation reports whether err is a unique-constraint failure,
// optionally on a specific constraint name. The unique indexes are the real
// serialization point for concurrent inserts: exactly one of two racing
// requests fails with this error.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
