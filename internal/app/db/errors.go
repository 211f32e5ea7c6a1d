package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"roomchat/internal/pkg/errs"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}

// IsForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == foreignKeyViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classify maps a driver error onto the store error taxonomy. Zero codes mean
// the corresponding condition is not expected for the query.
func classify(err error, notFoundCode, conflictCode int) error {
	switch {
	case err == nil:
		return nil
	case notFoundCode != 0 && errors.Is(err, pgx.ErrNoRows):
		return errs.NewError(notFoundCode)
	case conflictCode != 0 && IsUniqueViolation(err):
		return errs.NewError(conflictCode)
	case IsForeignKeyViolation(err):
		return errs.NewError(errs.ErrRoomNotFound)
	default:
		return errs.NewError(errs.ErrStoreUnavailable, err)
	}
}
