package engine

import (
	"context"
	"fmt"

	"github.com/roach88/registrar/internal/model"
)

// CreditPropagationTrigger re-derives a student's standing when one of its
// enrollments is approved. It never increments: the refresh recomputes
// from the completed list, so a redelivered event changes nothing.
type CreditPropagationTrigger struct {
	coord Coordinator
}

// NewCreditPropagationTrigger creates the credit propagation trigger.
func NewCreditPropagationTrigger(c Coordinator) *CreditPropagationTrigger {
	return &CreditPropagationTrigger{coord: c}
}

func (t *CreditPropagationTrigger) Name() string { return "credits" }
func (t *CreditPropagationTrigger) Collections() []model.Collection {
	return []model.Collection{model.CollectionEnrollment}
}
func (t *CreditPropagationTrigger) Writes() bool { return true }

func (t *CreditPropagationTrigger) Match(ev model.ChangeEvent) bool {
	return ev.Op == model.OpUpdate &&
		ev.HasChanged(model.FieldState) &&
		ev.After.Text(model.FieldState) == string(model.EnrollmentApproved)
}

func (t *CreditPropagationTrigger) Handle(ctx context.Context, ev model.ChangeEvent) error {
	studentID := ev.After.Text(model.FieldStudentID)
	if studentID == "" {
		return fmt.Errorf("enrollment %s: event has no student_id", ev.EntityID)
	}
	_, err := t.coord.RefreshStudent(ctx, studentID)
	return err
}
