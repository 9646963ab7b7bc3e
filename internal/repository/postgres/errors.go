package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE classes the content repositories translate into domain errors
const (
	uniqueViolation      = "23505"
	foreignKeyViolation  = "23503"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// IsNoRows reports a single-row query that matched nothing
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports a unique violation. A non-empty constraint narrows the match to
// that index, so callers can tell "second newest version" apart from a duplicate id.
func IsUniqueViolation(err error, constraint string) bool {
	pgErr, ok := asPgError(err)
	if !ok || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports a write that referenced a missing node, or a delete of a node
// that still owns versions or snapshot rows
func IsForeignKeyViolation(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == foreignKeyViolation
}

// IsRetryable reports a transaction Postgres rolled back to resolve a conflict with another
// one. Replaying it from the start is safe.
func IsRetryable(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && (pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected)
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
