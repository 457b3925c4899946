package engine

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
)

// RiskTrigger alerts when a student's GPA drops below the passing grade.
// It mutates nothing; alerts are delivered at least once.
type RiskTrigger struct {
	notifier Notifier
	recorder Recorder
}

// NewRiskTrigger creates the risk trigger. A nil recorder counts nothing.
func NewRiskTrigger(n Notifier, r Recorder) *RiskTrigger {
	if r == nil {
		r = nopRecorder{}
	}
	return &RiskTrigger{notifier: n, recorder: r}
}

func (t *RiskTrigger) Name() string { return "risk" }
func (t *RiskTrigger) Collections() []model.Collection {
	return []model.Collection{model.CollectionStudent}
}
func (t *RiskTrigger) Writes() bool { return false }

func (t *RiskTrigger) Match(ev model.ChangeEvent) bool {
	return ev.Op == model.OpUpdate && ev.HasChanged(model.FieldGPA)
}

func (t *RiskTrigger) Handle(ctx context.Context, ev model.ChangeEvent) error {
	level, alert := rules.AssessRisk(standing(ev.Before), standing(ev.After))
	if !alert {
		return nil
	}
	gpa, _ := ev.After.Int(model.FieldGPA)
	if err := t.notifier.Notify(ctx, model.RiskAlert{
		StudentID:   ev.EntityID,
		StudentCode: ev.After.Text(model.FieldCode),
		GPA:         model.Grade(gpa),
		Level:       level,
		EventSeq:    ev.Seq,
	}); err != nil {
		return err
	}
	t.recorder.ObserveRiskAlert(level)
	return nil
}

func standing(obj model.Object) rules.Standing {
	gpa, _ := obj.Int(model.FieldGPA)
	credits, _ := obj.Int(model.FieldCredits)
	count, _ := obj.Int(model.FieldGradeCount)
	return rules.Standing{
		GPA:        model.Grade(gpa),
		Credits:    int(credits),
		GradeCount: int(count),
	}
}
