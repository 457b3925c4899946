package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
)

func TestCursorIsMonotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	pos, err := s.Cursor(ctx, "audit", model.CollectionStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	require.NoError(t, s.SaveCursor(ctx, "audit", model.CollectionStudent, 5))
	require.NoError(t, s.SaveCursor(ctx, "audit", model.CollectionStudent, 3))
	pos, err = s.Cursor(ctx, "audit", model.CollectionStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	require.NoError(t, s.ResetCursor(ctx, "audit", model.CollectionStudent, 2))
	pos, err = s.Cursor(ctx, "audit", model.CollectionStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	assert.True(t, model.IsCode(s.ResetCursor(ctx, "audit", model.CollectionStudent, -1), model.InvalidArgument))

	all, err := s.Cursors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CursorState{{Subscriber: "audit", Collection: model.CollectionStudent, Position: 2}}, all)
}

func TestAppendAuditIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := model.AuditRecord{
		ID: "a1", EventSeq: 9, RecordedAt: testNow, Operation: model.OpDelete,
		Collection: model.CollectionEnrollment, EntityID: "enr-1", Description: "delete by capacity",
	}

	inserted, err := s.AppendAudit(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = s.AppendAudit(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.AuditRecords(ctx, AuditFilter{Collection: model.CollectionEnrollment, Operation: model.OpDelete})
	require.NoError(t, err)
	assert.Equal(t, []model.AuditRecord{rec}, got)

	none, err := s.AuditRecords(ctx, AuditFilter{EntityID: "other"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGradeHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := model.GradeHistoryRecord{ID: "h1", EventSeq: 3, EnrollmentID: "enr-1", New: 400, RecordedAt: testNow}
	second := model.GradeHistoryRecord{ID: "h2", EventSeq: 7, EnrollmentID: "enr-1",
		Previous: model.GradePtr(400), New: 200, RecordedAt: testNow}
	for _, rec := range []model.GradeHistoryRecord{second, first, second} {
		_, err := s.AppendGradeHistory(ctx, rec)
		require.NoError(t, err)
	}

	got, err := s.GradeHistory(ctx, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, []model.GradeHistoryRecord{first, second}, got)
}

func TestAdmissionRank(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	// Three more students so each can hold one enrollment in the course.
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for i := 2; i <= 4; i++ {
			st := f.student
			st.ID = fmt.Sprintf("stu-%d", i)
			st.Code = fmt.Sprintf("S00%d", i)
			if _, err := tx.PutStudent(ctx, st); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for i := 1; i <= 4; i++ {
			e := newEnrollment(fmt.Sprintf("enr-%d", i), f, f.course)
			e.StudentID = fmt.Sprintf("stu-%d", i)
			if i == 2 {
				e.State = model.EnrollmentWithdrawn
			}
			if err := tx.InsertEnrollment(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	ranks := map[string]int{}
	for _, id := range []string{"enr-1", "enr-2", "enr-3", "enr-4"} {
		a, err := s.AdmissionRank(ctx, id)
		require.NoError(t, err)
		ranks[id] = a.Rank
	}
	assert.Equal(t, map[string]int{"enr-1": 1, "enr-2": 0, "enr-3": 2, "enr-4": 3}, ranks)

	_, err := s.AdmissionRank(ctx, "missing")
	assert.True(t, model.IsCode(err, model.NotFound))
}

func TestChangesByFlow(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)
	ctx := model.WithCause(context.Background(), model.Cause{Flow: "flow-x"})

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		return tx.InsertEnrollment(ctx, newEnrollment("enr-1", f, f.course))
	}))

	events, err := s.ChangesByFlow(context.Background(), "flow-x")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "enr-1", events[0].EntityID)
}
