package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
	"github.com/roach88/registrar/internal/testutil"
)

const period = "2025-1"

type env struct {
	store *store.Store
	coord *Coordinator
	ids   *testutil.SequenceGenerator
	rec   *recordingRecorder
}

type recordingRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingRecorder) ObserveOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op+":"+outcome)
}

func (r *recordingRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "registrar.db"), store.WithClock(testutil.Fixed(testutil.Epoch)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := &env{store: s, ids: testutil.NewSequenceGenerator("id"), rec: &recordingRecorder{}}
	opts = append([]Option{WithIDGenerator(e.ids), WithRecorder(e.rec)}, opts...)
	e.coord = New(s, opts...)
	seed(t, s)
	return e
}

// history builds n imported completed-course records of the given
// credits and grade.
func history(n, credits int, grade model.Grade) []model.CompletedCourse {
	out := make([]model.CompletedCourse, n)
	for i := range out {
		out[i] = model.CompletedCourse{
			CourseID: fmt.Sprintf("hist-%02d", i),
			Code:     fmt.Sprintf("H%02d", i),
			Name:     "History course",
			Period:   "2023-1",
			Grade:    grade,
			Credits:  credits,
		}
	}
	return out
}

func student(id, code string, state model.StudentState, completed []model.CompletedCourse) model.Student {
	s := model.Student{
		ID: id, Code: code, Name: code, Email: code + "@uni.edu",
		ProgramID: "prog-sys", Semester: 3, State: state, Completed: completed,
	}
	rules.Derive(completed, nil, 0).Apply(&s)
	return s
}

// seed writes the test catalog:
//   - program SYS requiring 160 credits
//   - courses MAT101 (3), PRG101 (4), PHY101 (5)
//   - S001: GPA 3.2 over 40 credits of history
//   - S002: no history
//   - S003: inactive
//   - S004: 160 credits of history, eligible to graduate
func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.PutProgram(ctx, model.Program{ID: "prog-sys", Code: "SYS", Name: "Systems",
			TotalCredits: 160, Semesters: 10}); err != nil {
			return err
		}
		for _, c := range []model.Course{
			{ID: "c-mat", Code: "MAT101", Name: "Calculus", Credits: 3, Type: model.CourseFoundational},
			{ID: "c-prg", Code: "PRG101", Name: "Programming", Credits: 4, Type: model.CourseMandatory, Prerequisites: []string{"MAT101"}},
			{ID: "c-phy", Code: "PHY101", Name: "Physics", Credits: 5, Type: model.CourseElective},
		} {
			if _, err := tx.PutCourse(ctx, c); err != nil {
				return err
			}
		}
		for _, st := range []model.Student{
			student("stu-1", "S001", model.StudentActive, history(10, 4, 320)),
			student("stu-2", "S002", model.StudentActive, nil),
			student("stu-3", "S003", model.StudentInactive, nil),
			student("stu-4", "S004", model.StudentActive, history(40, 4, 400)),
		} {
			if _, err := tx.PutStudent(ctx, st); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// addStudents writes n extra active students S1xx without history.
func addStudents(t *testing.T, s *store.Store, n int) []string {
	t.Helper()
	ctx := context.Background()
	var codes []string
	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		for i := 0; i < n; i++ {
			code := fmt.Sprintf("S1%02d", i)
			if _, err := tx.PutStudent(ctx, student("stu-x"+code, code, model.StudentActive, nil)); err != nil {
				return err
			}
			codes = append(codes, code)
		}
		return nil
	}))
	return codes
}

func mustStudent(t *testing.T, s *store.Store, code string) model.Student {
	t.Helper()
	st, err := s.Student(context.Background(), code)
	require.NoError(t, err)
	return st
}

func mustEnrollment(t *testing.T, s *store.Store, id string) model.Enrollment {
	t.Helper()
	e, err := s.Enrollment(context.Background(), id)
	require.NoError(t, err)
	return e
}
