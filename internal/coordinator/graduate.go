package coordinator

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// GraduateStudent moves an active student with enough credits for their
// program to graduated. Otherwise it fails with NotFound,
// InvalidStateTransition or InsufficientCredits and the student keeps
// its state.
func (c *Coordinator) GraduateStudent(ctx context.Context, studentCode string) error {
	if studentCode == "" {
		return model.Errorf(model.InvalidArgument, "student code is required")
	}

	err := c.run(ctx, "graduate_student", func(ctx context.Context, tx *store.Tx) error {
		student, err := tx.StudentByCode(ctx, studentCode)
		if err != nil {
			return err
		}
		program, err := tx.ProgramByID(ctx, student.ProgramID)
		if err != nil {
			return err
		}
		if err := rules.CheckGraduation(student, program); err != nil {
			return err
		}

		next := student
		next.State = model.StudentGraduated
		return tx.SaveStudent(ctx, student, next)
	})
	if err != nil {
		return err
	}

	c.logger.Info("student graduated", "student", studentCode)
	return nil
}
