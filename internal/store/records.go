package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/registrar/internal/model"
)

// AppendAudit inserts an audit record. Uses ON CONFLICT(id) DO NOTHING so
// a redelivered event is harmless; inserted reports whether a row was
// written.
func (s *Store) AppendAudit(ctx context.Context, rec model.AuditRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, event_seq, recorded_at, operation, collection, entity_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.EventSeq,
		formatTime(rec.RecordedAt),
		string(rec.Operation),
		string(rec.Collection),
		rec.EntityID,
		rec.Description,
	)
	if err != nil {
		return false, classify("append audit", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// AuditFilter narrows AuditRecords. Zero fields match everything.
type AuditFilter struct {
	Collection model.Collection
	EntityID   string
	Operation  model.Operation
	Limit      int
}

// AuditRecords returns audit records in event order.
func (s *Store) AuditRecords(ctx context.Context, f AuditFilter) ([]model.AuditRecord, error) {
	var where []string
	var args []any
	if f.Collection != "" {
		where = append(where, "collection = ?")
		args = append(args, string(f.Collection))
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, string(f.Operation))
	}

	query := `SELECT id, event_seq, recorded_at, operation, collection, entity_id, description FROM audit_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_seq ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("audit records", err)
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var r model.AuditRecord
		var recordedAt, op, collection string
		if err := rows.Scan(&r.ID, &r.EventSeq, &recordedAt, &op, &collection, &r.EntityID, &r.Description); err != nil {
			return nil, fmt.Errorf("audit records: %w", err)
		}
		r.Operation = model.Operation(op)
		r.Collection = model.Collection(collection)
		if r.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("audit records: %w", err)
		}
		out = append(out, r)
	}
	return out, classify("audit records", rows.Err())
}

// AppendGradeHistory inserts a grade-history record, ignoring duplicates.
func (s *Store) AppendGradeHistory(ctx context.Context, rec model.GradeHistoryRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO grade_history (id, event_seq, enrollment_id, previous_grade, new_grade, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.EventSeq,
		rec.EnrollmentID,
		nullGrade(rec.Previous),
		int64(rec.New),
		formatTime(rec.RecordedAt),
	)
	if err != nil {
		return false, classify("append grade history", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// GradeHistory returns the grade changes of an enrollment in event order.
func (s *Store) GradeHistory(ctx context.Context, enrollmentID string) ([]model.GradeHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_seq, enrollment_id, previous_grade, new_grade, recorded_at
		FROM grade_history
		WHERE enrollment_id = ?
		ORDER BY event_seq ASC
	`, enrollmentID)
	if err != nil {
		return nil, classify("grade history", err)
	}
	defer rows.Close()

	var out []model.GradeHistoryRecord
	for rows.Next() {
		var r model.GradeHistoryRecord
		var prev sql.NullInt64
		var next int64
		var recordedAt string
		if err := rows.Scan(&r.ID, &r.EventSeq, &r.EnrollmentID, &prev, &next, &recordedAt); err != nil {
			return nil, fmt.Errorf("grade history: %w", err)
		}
		r.Previous = gradeFromNull(prev)
		r.New = model.Grade(next)
		if r.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("grade history: %w", err)
		}
		out = append(out, r)
	}
	return out, classify("grade history", rows.Err())
}

// Admission is an enrollment's position among the non-withdrawn
// enrollments of its (course, period).
type Admission struct {
	Enrollment model.Enrollment
	Rank       int
}

// AdmissionRank returns the 1-based admission rank of an enrollment.
// Withdrawn enrollments do not occupy a rank; for a withdrawn enrollment
// Rank is 0.
func (s *Store) AdmissionRank(ctx context.Context, enrollmentID string) (Admission, error) {
	var a Admission
	err := s.View(ctx, func(tx *Tx) error {
		e, err := tx.EnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		a.Enrollment = e
		if e.State == model.EnrollmentWithdrawn {
			return nil
		}
		return tx.tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM enrollments o
			WHERE o.course_id = ? AND o.period = ? AND o.state != 'withdrawn'
			  AND o.pos <= (SELECT pos FROM enrollments WHERE id = ?)
		`, e.CourseID, e.Period, e.ID).Scan(&a.Rank)
	})
	if err != nil {
		return Admission{}, err
	}
	return a, nil
}

// Student loads a student by code outside any caller transaction.
func (s *Store) Student(ctx context.Context, code string) (model.Student, error) {
	var out model.Student
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.StudentByCode(ctx, code)
		return err
	})
	return out, err
}

// Enrollment loads an enrollment by id outside any caller transaction.
func (s *Store) Enrollment(ctx context.Context, id string) (model.Enrollment, error) {
	var out model.Enrollment
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.EnrollmentByID(ctx, id)
		return err
	})
	return out, err
}

// Enrollments lists a student's enrollments by student code.
func (s *Store) Enrollments(ctx context.Context, studentCode string) ([]model.EnrollmentView, error) {
	var out []model.EnrollmentView
	err := s.View(ctx, func(tx *Tx) error {
		st, err := tx.StudentByCode(ctx, studentCode)
		if err != nil {
			return err
		}
		out, err = tx.StudentEnrollments(ctx, st.ID)
		return err
	})
	return out, err
}
