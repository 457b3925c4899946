package store

import (
	"context"
	"fmt"

	"github.com/roach88/registrar/internal/model"
)

// InsertEnrollment inserts a new enrollment and records an insert event.
// A second enrollment for the same (student, course, period) fails with
// DuplicateEnrollment.
func (t *Tx) InsertEnrollment(ctx context.Context, e model.Enrollment) error {
	if err := t.writable("insert enrollment"); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, course_id, period, state, grade, enrolled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.StudentID,
		e.CourseID,
		e.Period,
		string(e.State),
		nullGrade(e.Grade),
		formatTime(e.EnrolledAt),
	)
	if isUniqueViolation(err) {
		return model.Wrap(model.DuplicateEnrollment, err,
			fmt.Sprintf("student %s already enrolled in course %s for %s", e.StudentID, e.CourseID, e.Period))
	}
	if err != nil {
		return classify("insert enrollment", err)
	}

	t.record(model.NewChange(model.CollectionEnrollment, model.OpInsert, e.ID, nil, e.Snapshot()))
	return nil
}

// SaveEnrollment writes the mutable fields of an enrollment. Nothing is
// written and no event is recorded when the snapshots are equal.
func (t *Tx) SaveEnrollment(ctx context.Context, before, after model.Enrollment) error {
	ev := model.NewChange(model.CollectionEnrollment, model.OpUpdate, after.ID, before.Snapshot(), after.Snapshot())
	if len(ev.Changed) == 0 {
		return nil
	}
	_, err := t.exec(ctx, "save enrollment",
		`UPDATE enrollments SET state = ?, grade = ? WHERE id = ?`,
		string(after.State), nullGrade(after.Grade), after.ID)
	if err != nil {
		return err
	}
	t.record(ev)
	return nil
}

// DeleteEnrollment removes an enrollment and records a delete event.
func (t *Tx) DeleteEnrollment(ctx context.Context, e model.Enrollment) error {
	res, err := t.exec(ctx, "delete enrollment", `DELETE FROM enrollments WHERE id = ?`, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Errorf(model.NotFound, "enrollment %q not found", e.ID)
	}
	t.record(model.NewChange(model.CollectionEnrollment, model.OpDelete, e.ID, e.Snapshot(), nil))
	return nil
}

// SaveStudent writes a student's mutable fields. Nothing is written and
// no event is recorded when the snapshots are equal.
func (t *Tx) SaveStudent(ctx context.Context, before, after model.Student) error {
	ev := model.NewChange(model.CollectionStudent, model.OpUpdate, after.ID, before.Snapshot(), after.Snapshot())
	if len(ev.Changed) == 0 {
		return nil
	}
	completed, err := marshalList(after.Completed)
	if err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	_, err = t.exec(ctx, "save student", `
		UPDATE students
		SET name = ?, email = ?, program_id = ?, semester = ?, state = ?,
		    gpa = ?, credits = ?, grade_count = ?, completed = ?
		WHERE id = ?
	`,
		after.Name,
		after.Email,
		after.ProgramID,
		after.Semester,
		string(after.State),
		int64(after.GPA),
		after.Credits,
		after.GradeCount,
		completed,
		after.ID,
	)
	if err != nil {
		return err
	}
	t.record(ev)
	return nil
}

// ReserveSeat increments the reservation counter of a (course, period)
// and returns the new count.
func (t *Tx) ReserveSeat(ctx context.Context, courseID, period string) (int, error) {
	if err := t.writable("reserve seat"); err != nil {
		return 0, err
	}
	var reserved int
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO course_seats (course_id, period, reserved) VALUES (?, ?, 1)
		ON CONFLICT(course_id, period) DO UPDATE SET reserved = reserved + 1
		RETURNING reserved
	`, courseID, period).Scan(&reserved)
	if err != nil {
		return 0, classify("reserve seat", err)
	}
	return reserved, nil
}

// ReleaseSeat decrements the reservation counter, never below zero.
func (t *Tx) ReleaseSeat(ctx context.Context, courseID, period string) error {
	_, err := t.exec(ctx, "release seat", `
		UPDATE course_seats SET reserved = MAX(reserved - 1, 0)
		WHERE course_id = ? AND period = ?
	`, courseID, period)
	return err
}

// PutProgram inserts or updates a program keyed by code and returns the
// stored record. An existing program keeps its id.
func (t *Tx) PutProgram(ctx context.Context, p model.Program) (model.Program, error) {
	reqs, err := marshalList(p.Requirements)
	if err != nil {
		return model.Program{}, fmt.Errorf("put program: %w", err)
	}
	curriculum, err := marshalList(p.Curriculum)
	if err != nil {
		return model.Program{}, fmt.Errorf("put program: %w", err)
	}

	existing, err := t.ProgramByCode(ctx, p.Code)
	switch {
	case model.IsCode(err, model.NotFound):
		_, err = t.exec(ctx, "put program", `
			INSERT INTO programs (id, code, name, total_credits, semesters, requirements, curriculum)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Code, p.Name, p.TotalCredits, p.Semesters, reqs, curriculum)
		if err != nil {
			return model.Program{}, err
		}
		t.record(model.NewChange(model.CollectionProgram, model.OpInsert, p.ID, nil, p.Snapshot()))
		return p, nil
	case err != nil:
		return model.Program{}, err
	}

	p.ID = existing.ID
	ev := model.NewChange(model.CollectionProgram, model.OpUpdate, p.ID, existing.Snapshot(), p.Snapshot())
	if len(ev.Changed) == 0 {
		return p, nil
	}
	_, err = t.exec(ctx, "put program", `
		UPDATE programs SET name = ?, total_credits = ?, semesters = ?, requirements = ?, curriculum = ?
		WHERE id = ?
	`, p.Name, p.TotalCredits, p.Semesters, reqs, curriculum, p.ID)
	if err != nil {
		return model.Program{}, err
	}
	t.record(ev)
	return p, nil
}

// PutCourse inserts or updates a course keyed by code.
func (t *Tx) PutCourse(ctx context.Context, c model.Course) (model.Course, error) {
	prereq, err := marshalList(c.Prerequisites)
	if err != nil {
		return model.Course{}, fmt.Errorf("put course: %w", err)
	}

	existing, err := t.CourseByCode(ctx, c.Code)
	switch {
	case model.IsCode(err, model.NotFound):
		_, err = t.exec(ctx, "put course", `
			INSERT INTO courses (id, code, name, credits, prerequisites, type, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.Code, c.Name, c.Credits, prereq, string(c.Type), c.Description)
		if err != nil {
			return model.Course{}, err
		}
		t.record(model.NewChange(model.CollectionCourse, model.OpInsert, c.ID, nil, c.Snapshot()))
		return c, nil
	case err != nil:
		return model.Course{}, err
	}

	c.ID = existing.ID
	ev := model.NewChange(model.CollectionCourse, model.OpUpdate, c.ID, existing.Snapshot(), c.Snapshot())
	if len(ev.Changed) == 0 {
		return c, nil
	}
	_, err = t.exec(ctx, "put course", `
		UPDATE courses SET name = ?, credits = ?, prerequisites = ?, type = ?, description = ?
		WHERE id = ?
	`, c.Name, c.Credits, prereq, string(c.Type), c.Description, c.ID)
	if err != nil {
		return model.Course{}, err
	}
	t.record(ev)
	return c, nil
}

// PutProfessor inserts or updates a professor keyed by code.
func (t *Tx) PutProfessor(ctx context.Context, p model.Professor) (model.Professor, error) {
	specialties, err := marshalList(p.Specialties)
	if err != nil {
		return model.Professor{}, fmt.Errorf("put professor: %w", err)
	}
	assignments, err := marshalList(p.Assignments)
	if err != nil {
		return model.Professor{}, fmt.Errorf("put professor: %w", err)
	}

	existing, err := t.ProfessorByCode(ctx, p.Code)
	switch {
	case model.IsCode(err, model.NotFound):
		_, err = t.exec(ctx, "put professor", `
			INSERT INTO professors (id, code, name, email, specialties, assignments)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, p.Code, p.Name, p.Email, specialties, assignments)
		if err != nil {
			return model.Professor{}, err
		}
		t.record(model.NewChange(model.CollectionProfessor, model.OpInsert, p.ID, nil, p.Snapshot()))
		return p, nil
	case err != nil:
		return model.Professor{}, err
	}

	p.ID = existing.ID
	ev := model.NewChange(model.CollectionProfessor, model.OpUpdate, p.ID, existing.Snapshot(), p.Snapshot())
	if len(ev.Changed) == 0 {
		return p, nil
	}
	_, err = t.exec(ctx, "put professor", `
		UPDATE professors SET name = ?, email = ?, specialties = ?, assignments = ?
		WHERE id = ?
	`, p.Name, p.Email, specialties, assignments, p.ID)
	if err != nil {
		return model.Professor{}, err
	}
	t.record(ev)
	return p, nil
}

// PutStudent inserts or updates a student keyed by code. The caller is
// responsible for the derived fields.
func (t *Tx) PutStudent(ctx context.Context, s model.Student) (model.Student, error) {
	existing, err := t.StudentByCode(ctx, s.Code)
	switch {
	case model.IsCode(err, model.NotFound):
		completed, err := marshalList(s.Completed)
		if err != nil {
			return model.Student{}, fmt.Errorf("put student: %w", err)
		}
		_, err = t.exec(ctx, "put student", `
			INSERT INTO students
			(id, code, name, email, program_id, semester, state, gpa, credits, grade_count, completed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.Code, s.Name, s.Email, s.ProgramID, s.Semester, string(s.State),
			int64(s.GPA), s.Credits, s.GradeCount, completed)
		if err != nil {
			return model.Student{}, err
		}
		t.record(model.NewChange(model.CollectionStudent, model.OpInsert, s.ID, nil, s.Snapshot()))
		return s, nil
	case err != nil:
		return model.Student{}, err
	}

	s.ID = existing.ID
	if err := t.SaveStudent(ctx, existing, s); err != nil {
		return model.Student{}, err
	}
	return s, nil
}
