package coordinator

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// EnrollBatch enrolls a student in every listed course for one period.
//
// The batch is all-or-nothing: an unknown student or course fails with
// NotFound, an existing (student, course, period) with
// DuplicateEnrollment, and in hard capacity mode a full course with
// CapacityExceeded. In each case no enrollment from the batch exists
// afterwards. Resubmitting a batch that already committed fails with
// DuplicateEnrollment rather than enrolling twice.
//
// Course prerequisites are not checked.
func (c *Coordinator) EnrollBatch(ctx context.Context, req EnrollRequest) (EnrollResult, error) {
	if err := c.validate.Struct(req); err != nil {
		return EnrollResult{}, invalid(err)
	}
	if dup := firstDuplicate(req.CourseCodes); dup != "" {
		return EnrollResult{}, model.Errorf(model.DuplicateEnrollment,
			"course %s listed twice in batch for %s", dup, req.StudentCode)
	}

	var result EnrollResult
	err := c.run(ctx, "enroll_batch", func(ctx context.Context, tx *store.Tx) error {
		result = EnrollResult{}

		student, err := tx.StudentByCode(ctx, req.StudentCode)
		if err != nil {
			return err
		}
		courses := make([]model.Course, 0, len(req.CourseCodes))
		for _, code := range req.CourseCodes {
			course, err := tx.CourseByCode(ctx, code)
			if err != nil {
				return err
			}
			courses = append(courses, course)
		}

		for _, course := range courses {
			e := model.Enrollment{
				ID:         c.ids.Generate(),
				StudentID:  student.ID,
				CourseID:   course.ID,
				Period:     req.Period,
				State:      model.EnrollmentEnrolled,
				EnrolledAt: tx.Now(),
			}
			if err := tx.InsertEnrollment(ctx, e); err != nil {
				return err
			}
			reserved, err := tx.ReserveSeat(ctx, course.ID, req.Period)
			if err != nil {
				return err
			}
			if c.mode == CapacityHard {
				if err := rules.CheckSeats(course.Code, req.Period, reserved, c.ceiling); err != nil {
					return err
				}
			}
			result.EnrollmentIDs = append(result.EnrollmentIDs, e.ID)
		}

		_, _, err = restate(ctx, tx, student.ID)
		return err
	})
	if err != nil {
		return EnrollResult{}, err
	}

	c.logger.Info("enrolled",
		"student", req.StudentCode,
		"period", req.Period,
		"courses", len(result.EnrollmentIDs))
	return result, nil
}
