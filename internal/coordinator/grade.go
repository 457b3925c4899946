package coordinator

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// RecordGrade sets the final grade of an enrollment.
//
// The enrollment becomes approved for grades of 3.0 and above and failed
// below. Re-grading a graded enrollment replaces the previous grade: the
// student's completed-course record for it is added, replaced or removed
// to match, and GPA and credits are re-derived in the same transaction.
// A withdrawn enrollment no longer exists for grading and is reported as
// NotFound.
func (c *Coordinator) RecordGrade(ctx context.Context, enrollmentID string, grade model.Grade) (GradeResult, error) {
	if enrollmentID == "" {
		return GradeResult{}, model.Errorf(model.InvalidArgument, "enrollment id is required")
	}
	if err := rules.ValidateGrade(grade); err != nil {
		return GradeResult{}, err
	}

	var result GradeResult
	err := c.run(ctx, "record_grade", func(ctx context.Context, tx *store.Tx) error {
		e, err := tx.EnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if e.State == model.EnrollmentWithdrawn {
			return model.Errorf(model.NotFound, "enrollment %s is withdrawn", enrollmentID)
		}

		next := e
		next.State = rules.Outcome(grade)
		next.Grade = model.GradePtr(grade)
		if err := rules.EnrollmentTransition(e.State, next.State); err != nil {
			return err
		}
		if err := tx.SaveEnrollment(ctx, e, next); err != nil {
			return err
		}

		_, student, err := restate(ctx, tx, e.StudentID)
		if err != nil {
			return err
		}
		result = GradeResult{
			EnrollmentID: e.ID,
			State:        next.State,
			GPA:          student.GPA,
			Credits:      student.Credits,
		}
		return nil
	})
	if err != nil {
		return GradeResult{}, err
	}

	c.logger.Info("grade recorded",
		"enrollment", enrollmentID,
		"grade", grade.String(),
		"state", result.State)
	return result, nil
}
