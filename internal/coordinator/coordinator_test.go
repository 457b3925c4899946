package coordinator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

func enroll(t *testing.T, e *env, student string, courses ...string) []string {
	t.Helper()
	res, err := e.coord.EnrollBatch(context.Background(), EnrollRequest{
		StudentCode: student, CourseCodes: courses, Period: period,
	})
	require.NoError(t, err)
	require.Len(t, res.EnrollmentIDs, len(courses))
	return res.EnrollmentIDs
}

func TestWorkedExample(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := mustStudent(t, e.store, "S001")
	require.Equal(t, model.Grade(320), s.GPA)
	require.Equal(t, 40, s.Credits)

	ids := enroll(t, e, "S001", "MAT101")
	s = mustStudent(t, e.store, "S001")
	assert.Equal(t, 43, s.Credits)
	assert.Equal(t, model.Grade(320), s.GPA)

	res, err := e.coord.RecordGrade(ctx, ids[0], 400)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentApproved, res.State)
	assert.Equal(t, model.Grade(327), res.GPA)
	assert.Equal(t, 43, res.Credits)

	s = mustStudent(t, e.store, "S001")
	require.Len(t, s.Completed, 11)
	assert.Equal(t, ids[0], s.Completed[10].EnrollmentID)
	assert.Equal(t, "MAT101", s.Completed[10].Code)
	assert.Equal(t, 11, s.GradeCount)

	res, err = e.coord.RecordGrade(ctx, ids[0], 200)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentFailed, res.State)
	assert.Equal(t, model.Grade(309), res.GPA)
	assert.Equal(t, 40, res.Credits)

	s = mustStudent(t, e.store, "S001")
	assert.Len(t, s.Completed, 10)
	assert.Equal(t, 11, s.GradeCount)

	en := mustEnrollment(t, e.store, ids[0])
	require.NotNil(t, en.Grade)
	assert.Equal(t, model.Grade(200), *en.Grade)
}

func TestRegradeIsSymmetric(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101", "PRG101")

	_, err := e.coord.RecordGrade(ctx, ids[0], 450)
	require.NoError(t, err)
	first := mustStudent(t, e.store, "S002")

	for _, g := range []model.Grade{150, 320, 450} {
		_, err := e.coord.RecordGrade(ctx, ids[0], g)
		require.NoError(t, err)
	}
	again := mustStudent(t, e.store, "S002")
	assert.Equal(t, first.GPA, again.GPA)
	assert.Equal(t, first.Credits, again.Credits)
	assert.Equal(t, first.Completed, again.Completed)
}

func TestGPAIsMeanOfFinalGrades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101", "PRG101", "PHY101")

	for i, g := range []model.Grade{350, 275, 410} {
		_, err := e.coord.RecordGrade(ctx, ids[i], g)
		require.NoError(t, err)
	}
	s := mustStudent(t, e.store, "S002")
	// (350 + 275 + 410) / 3 = 345
	assert.Equal(t, model.Grade(345), s.GPA)
	// MAT101 and PHY101 approved; PRG101 failed contributes no credits.
	assert.Equal(t, 8, s.Credits)
	assert.Len(t, s.Completed, 2)
}

func TestEnrollBatchIsAllOrNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	before := mustStudent(t, e.store, "S002")
	last, err := e.store.LastSeq(ctx, model.CollectionEnrollment)
	require.NoError(t, err)

	_, err = e.coord.EnrollBatch(ctx, EnrollRequest{
		StudentCode: "S002", CourseCodes: []string{"MAT101", "NOPE999"}, Period: period,
	})
	require.Error(t, err)
	assert.True(t, model.IsCode(err, model.NotFound))

	views, err := e.store.Enrollments(ctx, "S002")
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Equal(t, before, mustStudent(t, e.store, "S002"))

	after, err := e.store.LastSeq(ctx, model.CollectionEnrollment)
	require.NoError(t, err)
	assert.Equal(t, last, after)
}

func TestEnrollBatchUnknownStudent(t *testing.T) {
	e := newEnv(t)
	_, err := e.coord.EnrollBatch(context.Background(), EnrollRequest{
		StudentCode: "S999", CourseCodes: []string{"MAT101"}, Period: period,
	})
	assert.True(t, model.IsCode(err, model.NotFound))
}

func TestEnrollBatchResubmitIsDuplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	enroll(t, e, "S002", "MAT101")

	_, err := e.coord.EnrollBatch(ctx, EnrollRequest{
		StudentCode: "S002", CourseCodes: []string{"PRG101", "MAT101"}, Period: period,
	})
	require.Error(t, err)
	assert.True(t, model.IsCode(err, model.DuplicateEnrollment))

	views, err := e.store.Enrollments(ctx, "S002")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "MAT101", views[0].CourseCode)
	assert.Equal(t, 3, mustStudent(t, e.store, "S002").Credits)

	// A different period is a different enrollment.
	_, err = e.coord.EnrollBatch(ctx, EnrollRequest{
		StudentCode: "S002", CourseCodes: []string{"MAT101"}, Period: "2025-2",
	})
	require.NoError(t, err)
}

func TestEnrollBatchValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  EnrollRequest
		code model.Code
	}{
		{"missing student", EnrollRequest{CourseCodes: []string{"MAT101"}, Period: period}, model.InvalidArgument},
		{"no courses", EnrollRequest{StudentCode: "S002", Period: period}, model.InvalidArgument},
		{"empty course code", EnrollRequest{StudentCode: "S002", CourseCodes: []string{""}, Period: period}, model.InvalidArgument},
		{"bad period", EnrollRequest{StudentCode: "S002", CourseCodes: []string{"MAT101"}, Period: "spring"}, model.InvalidArgument},
		{"duplicate in batch", EnrollRequest{StudentCode: "S002", CourseCodes: []string{"MAT101", "MAT101"}, Period: period}, model.DuplicateEnrollment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.coord.EnrollBatch(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, model.CodeOf(err))
		})
	}
}

func TestHardCapacity(t *testing.T) {
	e := newEnv(t, WithCeiling(2))
	ctx := context.Background()

	first := enroll(t, e, "S001", "MAT101")
	enroll(t, e, "S002", "MAT101")

	_, err := e.coord.EnrollBatch(ctx, EnrollRequest{
		StudentCode: "S004", CourseCodes: []string{"PRG101", "MAT101"}, Period: period,
	})
	require.Error(t, err)
	assert.True(t, model.IsCode(err, model.CapacityExceeded))

	views, err := e.store.Enrollments(ctx, "S004")
	require.NoError(t, err)
	assert.Empty(t, views, "PRG101 must not survive the failed batch")

	require.NoError(t, e.coord.WithdrawCourse(ctx, first[0]))
	enroll(t, e, "S004", "MAT101")
}

func TestSoftCapacityAdmitsOverCeiling(t *testing.T) {
	e := newEnv(t, WithCeiling(1), WithCapacityMode(CapacitySoft))
	enroll(t, e, "S001", "MAT101")
	ids := enroll(t, e, "S002", "MAT101")

	adm, err := e.store.AdmissionRank(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, adm.Rank)
}

func TestWithdrawCourse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101", "PRG101")
	require.Equal(t, 7, mustStudent(t, e.store, "S002").Credits)

	require.NoError(t, e.coord.WithdrawCourse(ctx, ids[1]))
	assert.Equal(t, 3, mustStudent(t, e.store, "S002").Credits)
	assert.Equal(t, model.EnrollmentWithdrawn, mustEnrollment(t, e.store, ids[1]).State)

	err := e.coord.WithdrawCourse(ctx, ids[1])
	assert.True(t, model.IsCode(err, model.InvalidStateTransition))

	err = e.coord.WithdrawCourse(ctx, "missing")
	assert.True(t, model.IsCode(err, model.NotFound))
}

func TestWithdrawApprovedFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101")
	_, err := e.coord.RecordGrade(ctx, ids[0], 380)
	require.NoError(t, err)
	before := mustStudent(t, e.store, "S002")

	err = e.coord.WithdrawCourse(ctx, ids[0])
	require.Error(t, err)
	assert.True(t, model.IsCode(err, model.InvalidStateTransition))
	assert.Equal(t, model.EnrollmentApproved, mustEnrollment(t, e.store, ids[0]).State)
	assert.Equal(t, before, mustStudent(t, e.store, "S002"))
}

func TestWithdrawFailedDropsGrade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S001", "MAT101")
	_, err := e.coord.RecordGrade(ctx, ids[0], 100)
	require.NoError(t, err)
	require.Equal(t, 11, mustStudent(t, e.store, "S001").GradeCount)

	require.NoError(t, e.coord.WithdrawCourse(ctx, ids[0]))
	s := mustStudent(t, e.store, "S001")
	assert.Equal(t, model.Grade(320), s.GPA)
	assert.Equal(t, 10, s.GradeCount)
	assert.Nil(t, mustEnrollment(t, e.store, ids[0]).Grade)
}

func TestRecordGradeErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101")

	_, err := e.coord.RecordGrade(ctx, "missing", 300)
	assert.True(t, model.IsCode(err, model.NotFound))

	_, err = e.coord.RecordGrade(ctx, ids[0], 501)
	assert.True(t, model.IsCode(err, model.InvalidArgument))

	_, err = e.coord.RecordGrade(ctx, "", 300)
	assert.True(t, model.IsCode(err, model.InvalidArgument))

	require.NoError(t, e.coord.WithdrawCourse(ctx, ids[0]))
	_, err = e.coord.RecordGrade(ctx, ids[0], 300)
	assert.True(t, model.IsCode(err, model.NotFound))
	assert.Contains(t, err.Error(), "is withdrawn")

	got := mustEnrollment(t, e.store, ids[0])
	assert.Equal(t, model.EnrollmentWithdrawn, got.State)
	assert.Nil(t, got.Grade)
}

func TestGraduateStudent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.coord.GraduateStudent(ctx, "S001")
	assert.True(t, model.IsCode(err, model.InsufficientCredits))
	assert.Equal(t, model.StudentActive, mustStudent(t, e.store, "S001").State)

	err = e.coord.GraduateStudent(ctx, "S003")
	assert.True(t, model.IsCode(err, model.InvalidStateTransition))

	err = e.coord.GraduateStudent(ctx, "S999")
	assert.True(t, model.IsCode(err, model.NotFound))

	require.NoError(t, e.coord.GraduateStudent(ctx, "S004"))
	assert.Equal(t, model.StudentGraduated, mustStudent(t, e.store, "S004").State)

	err = e.coord.GraduateStudent(ctx, "S004")
	assert.True(t, model.IsCode(err, model.InvalidStateTransition))
}

func TestRollbackEnrollment(t *testing.T) {
	e := newEnv(t, WithCeiling(1))
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101", "PRG101")

	cctx := model.WithCause(ctx, model.Cause{Origin: "capacity", Flow: "flow-x", Depth: 1})
	require.NoError(t, e.coord.RollbackEnrollment(cctx, ids[0], "over capacity"))

	_, err := e.store.Enrollment(ctx, ids[0])
	assert.True(t, model.IsCode(err, model.NotFound))
	assert.Equal(t, 4, mustStudent(t, e.store, "S002").Credits)

	// The seat is free again.
	enroll(t, e, "S001", "MAT101")

	events, err := e.store.ChangesByFlow(ctx, "flow-x")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "capacity", ev.Origin)
		assert.Equal(t, "over capacity", ev.Reason)
		assert.Equal(t, 1, ev.Depth)
	}
	assert.Equal(t, model.OpDelete, events[0].Op)

	err = e.coord.RollbackEnrollment(cctx, ids[0], "over capacity")
	assert.True(t, model.IsCode(err, model.NotFound))
}

func TestRefreshStudent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	changed, err := e.coord.RefreshStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, changed)

	good := mustStudent(t, e.store, "S001")
	require.NoError(t, e.store.Update(ctx, func(tx *store.Tx) error {
		bad := good
		bad.GPA = 100
		bad.Credits = 7
		return tx.SaveStudent(ctx, good, bad)
	}))

	changed, err = e.coord.RefreshStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, good, mustStudent(t, e.store, "S001"))

	_, err = e.coord.RefreshStudent(ctx, "stu-missing")
	assert.True(t, model.IsCode(err, model.NotFound))
}

func TestOperationsCarryFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := enroll(t, e, "S002", "MAT101")

	events, err := e.store.ReadChanges(ctx, model.CollectionEnrollment, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, ids[0], ev.EntityID)
	assert.Equal(t, model.OpInsert, ev.Op)
	assert.NotEmpty(t, ev.Flow)
	assert.Empty(t, ev.Origin)
	assert.Equal(t, 0, ev.Depth)

	flow, err := e.store.ChangesByFlow(ctx, ev.Flow)
	require.NoError(t, err)
	collections := map[model.Collection]bool{}
	for _, f := range flow {
		collections[f.Collection] = true
	}
	assert.True(t, collections[model.CollectionStudent], "student restatement shares the flow")

	assert.Contains(t, e.rec.snapshot(), "enroll_batch:ok")
}

func TestRecorderSeesFailureCodes(t *testing.T) {
	e := newEnv(t)
	_, err := e.coord.RecordGrade(context.Background(), "missing", 300)
	require.Error(t, err)
	assert.Contains(t, e.rec.snapshot(), "record_grade:NOT_FOUND")
}

func TestConcurrentEnrollmentsDistinctStudents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	codes := addStudents(t, e.store, 20)

	var wg sync.WaitGroup
	errs := make([]error, len(codes))
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, errs[i] = e.coord.EnrollBatch(ctx, EnrollRequest{
				StudentCode: code, CourseCodes: []string{"PRG101"}, Period: period,
			})
		}(i, code)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, codes[i])
		assert.Equal(t, 4, mustStudent(t, e.store, codes[i]).Credits)
	}
}

func TestConcurrentEnrollmentsSameStudent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.coord.EnrollBatch(ctx, EnrollRequest{
				StudentCode: "S002", CourseCodes: []string{"MAT101"}, Period: period,
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, model.IsCode(err, model.DuplicateEnrollment), err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, mustStudent(t, e.store, "S002").Credits)
}

func TestParseCapacityMode(t *testing.T) {
	m, err := ParseCapacityMode("soft")
	require.NoError(t, err)
	assert.Equal(t, CapacitySoft, m)

	_, err = ParseCapacityMode("loose")
	assert.Error(t, err)
}
