package engine

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// GradeHistoryTrigger records every grade an enrollment receives,
// together with the grade it replaced.
type GradeHistoryTrigger struct {
	store *store.Store
}

// NewGradeHistoryTrigger creates the grade history trigger.
func NewGradeHistoryTrigger(s *store.Store) *GradeHistoryTrigger {
	return &GradeHistoryTrigger{store: s}
}

func (t *GradeHistoryTrigger) Name() string { return "grade_history" }
func (t *GradeHistoryTrigger) Collections() []model.Collection {
	return []model.Collection{model.CollectionEnrollment}
}
func (t *GradeHistoryTrigger) Writes() bool { return false }

func (t *GradeHistoryTrigger) Match(ev model.ChangeEvent) bool {
	if ev.Op != model.OpUpdate || !ev.HasChanged(model.FieldGrade) {
		return false
	}
	_, ok := ev.After.Int(model.FieldGrade)
	return ok
}

func (t *GradeHistoryTrigger) Handle(ctx context.Context, ev model.ChangeEvent) error {
	next, _ := ev.After.Int(model.FieldGrade)
	var prev *model.Grade
	if g, ok := ev.Before.Int(model.FieldGrade); ok {
		prev = model.GradePtr(model.Grade(g))
	}

	id, err := model.GradeHistoryID(ev.Seq, ev.EntityID)
	if err != nil {
		return err
	}
	_, err = t.store.AppendGradeHistory(ctx, model.GradeHistoryRecord{
		ID:           id,
		EventSeq:     ev.Seq,
		EnrollmentID: ev.EntityID,
		Previous:     prev,
		New:          model.Grade(next),
		RecordedAt:   ev.CommittedAt,
	})
	return err
}
