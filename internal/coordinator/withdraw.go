package coordinator

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// WithdrawCourse withdraws a student from an enrollment, releasing its
// seat and its in-progress credits. A failed enrollment may be withdrawn,
// which drops its grade from the GPA. Approved and already-withdrawn
// enrollments fail with InvalidStateTransition and are left unchanged.
func (c *Coordinator) WithdrawCourse(ctx context.Context, enrollmentID string) error {
	if enrollmentID == "" {
		return model.Errorf(model.InvalidArgument, "enrollment id is required")
	}

	err := c.run(ctx, "withdraw_course", func(ctx context.Context, tx *store.Tx) error {
		e, err := tx.EnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if e.State == model.EnrollmentApproved {
			return model.Errorf(model.InvalidStateTransition,
				"enrollment %s is approved and cannot be withdrawn", e.ID)
		}
		if err := rules.EnrollmentTransition(e.State, model.EnrollmentWithdrawn); err != nil {
			return err
		}

		next := e
		next.State = model.EnrollmentWithdrawn
		next.Grade = nil
		if err := tx.SaveEnrollment(ctx, e, next); err != nil {
			return err
		}
		if err := tx.ReleaseSeat(ctx, e.CourseID, e.Period); err != nil {
			return err
		}
		_, _, err = restate(ctx, tx, e.StudentID)
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Info("course withdrawn", "enrollment", enrollmentID)
	return nil
}
