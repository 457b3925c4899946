package store

import (
	"context"
	"fmt"

	"github.com/roach88/registrar/internal/model"
)

// CursorState is the durable position of one subscriber in one collection.
type CursorState struct {
	Subscriber string           `json:"subscriber"`
	Collection model.Collection `json:"collection"`
	Position   int64            `json:"position"`
}

// Cursor returns the last consumed seq of a subscriber, or 0 when the
// subscriber has never committed a position.
func (s *Store) Cursor(ctx context.Context, subscriber string, collection model.Collection) (int64, error) {
	var pos int64
	err := s.db.QueryRowContext(ctx, `
		SELECT position FROM subscriber_cursors WHERE subscriber = ? AND collection = ?
	`, subscriber, string(collection)).Scan(&pos)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("cursor", err)
	}
	return pos, nil
}

// SaveCursor advances a subscriber's cursor. A position at or behind the
// stored one is ignored so a late writer can never rewind the cursor.
func (s *Store) SaveCursor(ctx context.Context, subscriber string, collection model.Collection, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriber_cursors (subscriber, collection, position, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subscriber, collection) DO UPDATE
		SET position = excluded.position, updated_at = excluded.updated_at
		WHERE excluded.position > subscriber_cursors.position
	`, subscriber, string(collection), position, formatTime(s.now()))
	if err != nil {
		return classify("save cursor", err)
	}
	return nil
}

// ResetCursor moves a subscriber's cursor to position, backwards if
// needed. Events after position are delivered again.
func (s *Store) ResetCursor(ctx context.Context, subscriber string, collection model.Collection, position int64) error {
	if position < 0 {
		return model.Errorf(model.InvalidArgument, "cursor position %d is negative", position)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriber_cursors (subscriber, collection, position, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subscriber, collection) DO UPDATE
		SET position = excluded.position, updated_at = excluded.updated_at
	`, subscriber, string(collection), position, formatTime(s.now()))
	if err != nil {
		return classify("reset cursor", err)
	}
	return nil
}

// Cursors lists every stored cursor ordered by subscriber and collection.
func (s *Store) Cursors(ctx context.Context) ([]CursorState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subscriber, collection, position FROM subscriber_cursors
		ORDER BY subscriber, collection
	`)
	if err != nil {
		return nil, classify("cursors", err)
	}
	defer rows.Close()

	var out []CursorState
	for rows.Next() {
		var c CursorState
		var collection string
		if err := rows.Scan(&c.Subscriber, &collection, &c.Position); err != nil {
			return nil, fmt.Errorf("cursors: %w", err)
		}
		c.Collection = model.Collection(collection)
		out = append(out, c)
	}
	return out, classify("cursors", rows.Err())
}
