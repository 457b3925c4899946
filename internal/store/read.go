package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/registrar/internal/model"
)

const (
	studentColumns    = `id, code, name, email, program_id, semester, state, gpa, credits, grade_count, completed`
	courseColumns     = `id, code, name, credits, prerequisites, type, description`
	programColumns    = `id, code, name, total_credits, semesters, requirements, curriculum`
	professorColumns  = `id, code, name, email, specialties, assignments`
	enrollmentColumns = `e.id, e.student_id, e.course_id, e.period, e.state, e.grade, e.enrolled_at`
)

// StudentByCode loads a student by its unique code.
func (t *Tx) StudentByCode(ctx context.Context, code string) (model.Student, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE code = ?`, code)
	s, err := scanStudent(row)
	if err != nil {
		return model.Student{}, notFound(err, "student by code", "student", code)
	}
	return s, nil
}

// StudentByID loads a student by id.
func (t *Tx) StudentByID(ctx context.Context, id string) (model.Student, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	s, err := scanStudent(row)
	if err != nil {
		return model.Student{}, notFound(err, "student by id", "student", id)
	}
	return s, nil
}

// Students lists all students ordered by code.
func (t *Tx) Students(ctx context.Context) ([]model.Student, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY code`)
	if err != nil {
		return nil, classify("list students", err)
	}
	defer rows.Close()

	var out []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		out = append(out, s)
	}
	return out, classify("list students", rows.Err())
}

// CourseByCode loads a course by its unique code.
func (t *Tx) CourseByCode(ctx context.Context, code string) (model.Course, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE code = ?`, code)
	c, err := scanCourse(row)
	if err != nil {
		return model.Course{}, notFound(err, "course by code", "course", code)
	}
	return c, nil
}

// CourseByID loads a course by id.
func (t *Tx) CourseByID(ctx context.Context, id string) (model.Course, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if err != nil {
		return model.Course{}, notFound(err, "course by id", "course", id)
	}
	return c, nil
}

// ProgramByCode loads a program by its unique code.
func (t *Tx) ProgramByCode(ctx context.Context, code string) (model.Program, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE code = ?`, code)
	p, err := scanProgram(row)
	if err != nil {
		return model.Program{}, notFound(err, "program by code", "program", code)
	}
	return p, nil
}

// ProgramByID loads a program by id.
func (t *Tx) ProgramByID(ctx context.Context, id string) (model.Program, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE id = ?`, id)
	p, err := scanProgram(row)
	if err != nil {
		return model.Program{}, notFound(err, "program by id", "program", id)
	}
	return p, nil
}

// ProfessorByCode loads a professor by its unique code.
func (t *Tx) ProfessorByCode(ctx context.Context, code string) (model.Professor, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+professorColumns+` FROM professors WHERE code = ?`, code)
	p, err := scanProfessor(row)
	if err != nil {
		return model.Professor{}, notFound(err, "professor by code", "professor", code)
	}
	return p, nil
}

// EnrollmentByID loads an enrollment by id.
func (t *Tx) EnrollmentByID(ctx context.Context, id string) (model.Enrollment, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments e WHERE e.id = ?`, id)
	e, err := scanEnrollment(row)
	if err != nil {
		return model.Enrollment{}, notFound(err, "enrollment by id", "enrollment", id)
	}
	return e, nil
}

// StudentEnrollments lists a student's enrollments, joined with their
// course facts, in admission order.
func (t *Tx) StudentEnrollments(ctx context.Context, studentID string) ([]model.EnrollmentView, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+enrollmentColumns+`, c.code, c.name, c.credits
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = ?
		ORDER BY e.pos ASC
	`, studentID)
	if err != nil {
		return nil, classify("student enrollments", err)
	}
	defer rows.Close()

	var out []model.EnrollmentView
	for rows.Next() {
		var v model.EnrollmentView
		var state, enrolledAt string
		var grade sql.NullInt64
		if err := rows.Scan(&v.ID, &v.StudentID, &v.CourseID, &v.Period, &state, &grade, &enrolledAt,
			&v.CourseCode, &v.CourseName, &v.Credits); err != nil {
			return nil, fmt.Errorf("student enrollments: %w", err)
		}
		v.State = model.EnrollmentState(state)
		v.Grade = gradeFromNull(grade)
		if v.EnrolledAt, err = parseTime(enrolledAt); err != nil {
			return nil, fmt.Errorf("student enrollments: %w", err)
		}
		out = append(out, v)
	}
	return out, classify("student enrollments", rows.Err())
}

// SeatsReserved returns the reservation counter of a (course, period).
func (t *Tx) SeatsReserved(ctx context.Context, courseID, period string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT reserved FROM course_seats WHERE course_id = ? AND period = ?`, courseID, period).Scan(&n)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("seats reserved", err)
	}
	return n, nil
}

func scanStudent(r rowScanner) (model.Student, error) {
	var s model.Student
	var state, completed string
	var gpa int64
	if err := r.Scan(&s.ID, &s.Code, &s.Name, &s.Email, &s.ProgramID, &s.Semester,
		&state, &gpa, &s.Credits, &s.GradeCount, &completed); err != nil {
		return model.Student{}, err
	}
	s.State = model.StudentState(state)
	s.GPA = model.Grade(gpa)

	var err error
	if s.Completed, err = unmarshalList[model.CompletedCourse](completed); err != nil {
		return model.Student{}, fmt.Errorf("student %s completed: %w", s.Code, err)
	}
	return s, nil
}

func scanCourse(r rowScanner) (model.Course, error) {
	var c model.Course
	var prereq, kind string
	if err := r.Scan(&c.ID, &c.Code, &c.Name, &c.Credits, &prereq, &kind, &c.Description); err != nil {
		return model.Course{}, err
	}
	c.Type = model.CourseType(kind)

	var err error
	if c.Prerequisites, err = unmarshalList[string](prereq); err != nil {
		return model.Course{}, fmt.Errorf("course %s prerequisites: %w", c.Code, err)
	}
	return c, nil
}

func scanProgram(r rowScanner) (model.Program, error) {
	var p model.Program
	var reqs, curriculum string
	if err := r.Scan(&p.ID, &p.Code, &p.Name, &p.TotalCredits, &p.Semesters, &reqs, &curriculum); err != nil {
		return model.Program{}, err
	}

	var err error
	if p.Requirements, err = unmarshalList[string](reqs); err != nil {
		return model.Program{}, fmt.Errorf("program %s requirements: %w", p.Code, err)
	}
	if p.Curriculum, err = unmarshalList[model.CurriculumTerm](curriculum); err != nil {
		return model.Program{}, fmt.Errorf("program %s curriculum: %w", p.Code, err)
	}
	return p, nil
}

func scanProfessor(r rowScanner) (model.Professor, error) {
	var p model.Professor
	var specialties, assignments string
	if err := r.Scan(&p.ID, &p.Code, &p.Name, &p.Email, &specialties, &assignments); err != nil {
		return model.Professor{}, err
	}

	var err error
	if p.Specialties, err = unmarshalList[string](specialties); err != nil {
		return model.Professor{}, fmt.Errorf("professor %s specialties: %w", p.Code, err)
	}
	if p.Assignments, err = unmarshalList[model.Assignment](assignments); err != nil {
		return model.Professor{}, fmt.Errorf("professor %s assignments: %w", p.Code, err)
	}
	return p, nil
}

func scanEnrollment(r rowScanner) (model.Enrollment, error) {
	var e model.Enrollment
	var state, enrolledAt string
	var grade sql.NullInt64
	if err := r.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Period, &state, &grade, &enrolledAt); err != nil {
		return model.Enrollment{}, err
	}
	e.State = model.EnrollmentState(state)
	e.Grade = gradeFromNull(grade)

	var err error
	if e.EnrolledAt, err = parseTime(enrolledAt); err != nil {
		return model.Enrollment{}, err
	}
	return e, nil
}
