package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/registrar/internal/model"
)

const changeColumns = `seq, collection, op, entity_id, before_image, after_image, changed, origin, reason, flow, depth, committed_at`

// ReadChanges returns up to limit events of a collection with seq > after,
// in seq order. Rows are fully read before returning so the caller may
// write to the store while processing the batch.
func (s *Store) ReadChanges(ctx context.Context, collection model.Collection, after int64, limit int) ([]model.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+changeColumns+`
		FROM change_log
		WHERE collection = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, string(collection), after, limit)
	if err != nil {
		return nil, classify("read changes", err)
	}
	return collectChanges(rows, "read changes")
}

// ChangesByFlow returns every event caused by one flow, in seq order.
func (s *Store) ChangesByFlow(ctx context.Context, flow string) ([]model.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+changeColumns+`
		FROM change_log
		WHERE flow = ?
		ORDER BY seq ASC
	`, flow)
	if err != nil {
		return nil, classify("changes by flow", err)
	}
	return collectChanges(rows, "changes by flow")
}

// LastSeq returns the highest seq of a collection, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context, collection model.Collection) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM change_log WHERE collection = ?`, string(collection)).Scan(&seq)
	if err != nil {
		return 0, classify("last seq", err)
	}
	return seq.Int64, nil
}

func collectChanges(rows *sql.Rows, op string) ([]model.ChangeEvent, error) {
	defer rows.Close()

	var out []model.ChangeEvent
	for rows.Next() {
		ev, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanChange(r rowScanner) (model.ChangeEvent, error) {
	var ev model.ChangeEvent
	var collection, op, changed, committedAt string
	var before, after sql.NullString
	if err := r.Scan(&ev.Seq, &collection, &op, &ev.EntityID, &before, &after, &changed,
		&ev.Origin, &ev.Reason, &ev.Flow, &ev.Depth, &committedAt); err != nil {
		return model.ChangeEvent{}, err
	}
	ev.Collection = model.Collection(collection)
	ev.Op = model.Operation(op)

	var err error
	if ev.Before, err = unmarshalImage(before); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("seq %d before image: %w", ev.Seq, err)
	}
	if ev.After, err = unmarshalImage(after); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("seq %d after image: %w", ev.Seq, err)
	}
	if ev.Changed, err = unmarshalList[string](changed); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("seq %d changed: %w", ev.Seq, err)
	}
	if ev.CommittedAt, err = parseTime(committedAt); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("seq %d: %w", ev.Seq, err)
	}
	return ev, nil
}
