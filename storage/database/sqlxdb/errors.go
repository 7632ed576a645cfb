package sqlxdb

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/kumbukumbu/core"
)

// postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// isConstraintErr tells whether err is a uniqueness or referential constraint violation.
func isConstraintErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation || pqErr.Code == pqForeignKeyViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// mapErr classifies a database error. Missing rows become notFound, constraint violations conflict
// (or `conflict` when given), anything else is wrapped with msg.
func mapErr(err error, msg string, notFound error, conflict ...error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case isConstraintErr(err):
		if len(conflict) > 0 {
			return conflict[0]
		}
		return core.NewConflictError("conflict", err)
	default:
		return errors.Wrap(err, msg)
	}
}
