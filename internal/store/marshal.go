package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/registrar/internal/model"
)

// timeLayout is used for every TEXT timestamp column. Fixed-width
// fractional seconds keep lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalList encodes a slice column. A nil slice encodes as [] so the
// column never holds null.
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList[T any](s string) ([]T, error) {
	out := []T{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// marshalImage encodes a snapshot image; nil images are stored as NULL.
func marshalImage(obj model.Object) (sql.NullString, error) {
	if obj == nil {
		return sql.NullString{}, nil
	}
	b, err := obj.MarshalJSON()
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalImage(ns sql.NullString) (model.Object, error) {
	if !ns.Valid {
		return nil, nil
	}
	var obj model.Object
	if err := obj.UnmarshalJSON([]byte(ns.String)); err != nil {
		return nil, err
	}
	return obj, nil
}

func nullGrade(g *model.Grade) sql.NullInt64 {
	if g == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*g), Valid: true}
}

func gradeFromNull(n sql.NullInt64) *model.Grade {
	if !n.Valid {
		return nil
	}
	g := model.Grade(n.Int64)
	return &g
}
