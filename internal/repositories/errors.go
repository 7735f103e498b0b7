package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rolliki/backend/internal/stages"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = stages.ErrNotFound
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
