package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/registrar/internal/model"
)

// Tx is one unit of work against the store. Reads see the transaction's
// own writes. Mutations buffer change events that Update appends to the
// change log at commit.
type Tx struct {
	tx       *sql.Tx
	now      time.Time
	readOnly bool
	changes  []model.ChangeEvent
}

// Now returns the timestamp fixed for this transaction.
func (t *Tx) Now() time.Time {
	return t.now
}

// Changes returns the events buffered so far.
func (t *Tx) Changes() []model.ChangeEvent {
	return t.changes
}

func (t *Tx) record(ev model.ChangeEvent) {
	t.changes = append(t.changes, ev)
}

func (t *Tx) writable(op string) error {
	if t.readOnly {
		return fmt.Errorf("%s: read-only transaction", op)
	}
	return nil
}

// exec runs a mutation statement.
func (t *Tx) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	if err := t.writable(op); err != nil {
		return nil, err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}

// appendChange writes one buffered event into change_log.
func appendChange(ctx context.Context, tx *sql.Tx, ev model.ChangeEvent, cause model.Cause, at time.Time) error {
	before, err := marshalImage(ev.Before)
	if err != nil {
		return fmt.Errorf("append change: before image: %w", err)
	}
	after, err := marshalImage(ev.After)
	if err != nil {
		return fmt.Errorf("append change: after image: %w", err)
	}
	changed, err := marshalList(ev.Changed)
	if err != nil {
		return fmt.Errorf("append change: changed fields: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO change_log
		(collection, op, entity_id, before_image, after_image, changed, origin, reason, flow, depth, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(ev.Collection),
		string(ev.Op),
		ev.EntityID,
		before,
		after,
		changed,
		cause.Origin,
		cause.Reason,
		cause.Flow,
		cause.Depth,
		formatTime(at),
	)
	if err != nil {
		return classify("append change", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
