package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/changelog"
	"github.com/roach88/registrar/internal/coordinator"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
	"github.com/roach88/registrar/internal/testutil"
)

const period = "2025-1"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []model.RiskAlert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, a model.RiskAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, a)
	return nil
}

func (n *recordingNotifier) Alerts() []model.RiskAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.RiskAlert(nil), n.alerts...)
}

type fixture struct {
	store    *store.Store
	coord    *coordinator.Coordinator
	engine   *Engine
	notifier *recordingNotifier
}

func newFixture(t *testing.T, copts ...coordinator.Option) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"), store.WithClock(testutil.Fixed(testutil.Epoch)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seed(t, s)

	copts = append([]coordinator.Option{
		coordinator.WithIDGenerator(testutil.NewSequenceGenerator("id")),
		coordinator.WithLogger(quiet),
	}, copts...)
	c := coordinator.New(s, copts...)

	n := &recordingNotifier{}
	e := New(s,
		WithLogger(quiet),
		WithRetryDelay(10*time.Millisecond),
		WithChangeLog(changelog.New(s, changelog.WithPollInterval(10*time.Millisecond))))
	require.NoError(t, e.Register(Defaults(s, c, n, nil)...))

	return &fixture{store: s, coord: c, engine: e, notifier: n}
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.PutProgram(ctx, model.Program{ID: "prog-sys", Code: "SYS", Name: "Systems",
			TotalCredits: 160, Semesters: 10}); err != nil {
			return err
		}
		for _, c := range []model.Course{
			{ID: "c-mat", Code: "MAT101", Name: "Calculus", Credits: 3, Type: model.CourseFoundational},
			{ID: "c-prg", Code: "PRG101", Name: "Programming", Credits: 4, Type: model.CourseMandatory},
		} {
			if _, err := tx.PutCourse(ctx, c); err != nil {
				return err
			}
		}

		var hist []model.CompletedCourse
		for i := 0; i < 10; i++ {
			hist = append(hist, model.CompletedCourse{
				CourseID: fmt.Sprintf("hist-%02d", i), Code: fmt.Sprintf("H%02d", i),
				Name: "History", Period: "2023-1", Grade: 320, Credits: 4,
			})
		}
		for _, st := range []model.Student{
			{ID: "stu-1", Code: "S001", Name: "Ana", Email: "ana@uni.edu", ProgramID: "prog-sys",
				Semester: 3, State: model.StudentActive, Completed: hist},
			{ID: "stu-2", Code: "S002", Name: "Ben", Email: "ben@uni.edu", ProgramID: "prog-sys",
				Semester: 1, State: model.StudentActive},
		} {
			rules.Derive(st.Completed, nil, 0).Apply(&st)
			if _, err := tx.PutStudent(ctx, st); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (f *fixture) enroll(t *testing.T, student string, courses ...string) []string {
	t.Helper()
	res, err := f.coord.EnrollBatch(context.Background(), coordinator.EnrollRequest{
		StudentCode: student, CourseCodes: courses, Period: period,
	})
	require.NoError(t, err)
	return res.EnrollmentIDs
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, f.engine.Drain(context.Background()))
}

// stubTrigger is a configurable trigger for engine mechanics tests.
type stubTrigger struct {
	name   string
	writes bool
	match  func(model.ChangeEvent) bool
	fail   error

	mu     sync.Mutex
	seen   []model.ChangeEvent
	causes []model.Cause
}

func (s *stubTrigger) Name() string { return s.name }
func (s *stubTrigger) Collections() []model.Collection {
	return []model.Collection{model.CollectionEnrollment}
}
func (s *stubTrigger) Writes() bool { return s.writes }

func (s *stubTrigger) Match(ev model.ChangeEvent) bool {
	if s.match == nil {
		return true
	}
	return s.match(ev)
}

func (s *stubTrigger) Handle(ctx context.Context, ev model.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	cause, _ := model.CauseFrom(ctx)
	s.seen = append(s.seen, ev)
	s.causes = append(s.causes, cause)
	return nil
}

func (s *stubTrigger) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
