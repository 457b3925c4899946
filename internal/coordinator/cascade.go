package coordinator

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// RollbackEnrollment deletes an enrollment, releases its seat and
// re-derives the student's standing. reason is recorded on the resulting
// change events. An enrollment that no longer exists fails with NotFound.
func (c *Coordinator) RollbackEnrollment(ctx context.Context, enrollmentID, reason string) error {
	cause, _ := model.CauseFrom(ctx)
	if reason != "" {
		cause.Reason = reason
		ctx = model.WithCause(ctx, cause)
	}

	err := c.run(ctx, "rollback_enrollment", func(ctx context.Context, tx *store.Tx) error {
		e, err := tx.EnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEnrollment(ctx, e); err != nil {
			return err
		}
		if e.State != model.EnrollmentWithdrawn {
			if err := tx.ReleaseSeat(ctx, e.CourseID, e.Period); err != nil {
				return err
			}
		}
		_, _, err = restate(ctx, tx, e.StudentID)
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Info("enrollment rolled back",
		"enrollment", enrollmentID,
		"origin", cause.Origin,
		"reason", reason)
	return nil
}

// RefreshStudent reconciles a student's completed list with its
// enrollments and re-derives GPA and credits. It reports whether the
// student changed; a consistent student is left untouched and no change
// event is emitted.
func (c *Coordinator) RefreshStudent(ctx context.Context, studentID string) (bool, error) {
	var changed bool
	err := c.run(ctx, "refresh_student", func(ctx context.Context, tx *store.Tx) error {
		before, after, err := restate(ctx, tx, studentID)
		if err != nil {
			return err
		}
		changed = len(model.Diff(before.Snapshot(), after.Snapshot())) > 0
		return nil
	})
	return changed, err
}
