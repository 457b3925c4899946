package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/registrar/internal/model"
)

// classify maps driver errors onto registrar error kinds.
// Lock contention and timeouts become TransactionAborted so callers know
// the whole operation can be resubmitted.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return model.Wrap(model.TransactionAborted, err, op)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Wrap(model.TransactionAborted, err, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound converts sql.ErrNoRows into a NotFound error naming the entity.
func notFound(err error, op, kind, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.Errorf(model.NotFound, "%s %q not found", kind, key)
	}
	return classify(op, err)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
