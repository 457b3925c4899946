package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
)

var testNow = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)

// createTestStore opens a fresh file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	program model.Program
	course  model.Course
	other   model.Course
	student model.Student
}

// seedFixture writes one program, two courses and one active student.
func seedFixture(t *testing.T, s *Store) fixture {
	t.Helper()
	f := fixture{
		program: model.Program{ID: "prog-1", Code: "SYS", Name: "Systems", TotalCredits: 160, Semesters: 10,
			Requirements: []string{"thesis"}},
		course: model.Course{ID: "course-1", Code: "MAT101", Name: "Calculus", Credits: 3,
			Prerequisites: []string{}, Type: model.CourseFoundational},
		other: model.Course{ID: "course-2", Code: "PRG101", Name: "Programming", Credits: 4,
			Prerequisites: []string{"MAT101"}, Type: model.CourseMandatory},
	}
	f.student = model.Student{ID: "stu-1", Code: "S001", Name: "Ana", Email: "ana@uni.edu",
		ProgramID: f.program.ID, Semester: 2, State: model.StudentActive}

	err := s.Update(context.Background(), func(tx *Tx) error {
		if _, err := tx.PutProgram(context.Background(), f.program); err != nil {
			return err
		}
		if _, err := tx.PutCourse(context.Background(), f.course); err != nil {
			return err
		}
		if _, err := tx.PutCourse(context.Background(), f.other); err != nil {
			return err
		}
		_, err := tx.PutStudent(context.Background(), f.student)
		return err
	})
	require.NoError(t, err)
	return f
}

func newEnrollment(id string, f fixture, c model.Course) model.Enrollment {
	return model.Enrollment{
		ID:         id,
		StudentID:  f.student.ID,
		CourseID:   c.ID,
		Period:     "2025-1",
		State:      model.EnrollmentEnrolled,
		EnrolledAt: testNow,
	}
}
