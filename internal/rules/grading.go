package rules

import "github.com/roach88/registrar/internal/model"

// ValidateGrade checks the 0.00 to 5.00 scale.
func ValidateGrade(g model.Grade) error {
	if g < model.MinGrade || g > model.MaxGrade {
		return model.Errorf(model.InvalidArgument, "grade %s outside %s..%s", g, model.MinGrade, model.MaxGrade)
	}
	return nil
}

// Outcome maps a final grade to the enrollment state it produces.
func Outcome(g model.Grade) model.EnrollmentState {
	if g >= model.PassingGrade {
		return model.EnrollmentApproved
	}
	return model.EnrollmentFailed
}

// Standing is the derived academic position of a student.
type Standing struct {
	GPA        model.Grade
	Credits    int
	GradeCount int
}

// StandingOf reads the derived fields off a student.
func StandingOf(s model.Student) Standing {
	return Standing{GPA: s.GPA, Credits: s.Credits, GradeCount: s.GradeCount}
}

// Apply writes the standing into the student's derived fields.
func (st Standing) Apply(s *model.Student) {
	s.GPA = st.GPA
	s.Credits = st.Credits
	s.GradeCount = st.GradeCount
}

// Mean returns the arithmetic mean of grades rounded half-up to the
// nearest hundredth, or 0 for no grades.
func Mean(grades []model.Grade) model.Grade {
	if len(grades) == 0 {
		return 0
	}
	var sum int64
	for _, g := range grades {
		sum += int64(g)
	}
	n := int64(len(grades))
	return model.Grade((2*sum + n) / (2 * n))
}

// Derive computes a student's standing.
//
// The GPA is the mean of every final grade: completed-course records plus
// failed enrollments. Credits are the completed credits plus the credits
// of enrollments still in progress.
func Derive(completed []model.CompletedCourse, failed []model.Grade, inProgressCredits int) Standing {
	grades := make([]model.Grade, 0, len(completed)+len(failed))
	credits := inProgressCredits
	for _, c := range completed {
		grades = append(grades, c.Grade)
		credits += c.Credits
	}
	grades = append(grades, failed...)
	return Standing{
		GPA:        Mean(grades),
		Credits:    credits,
		GradeCount: len(grades),
	}
}

// DeriveFromEnrollments splits a student's enrollments into failed grades
// and in-progress credits and derives the standing together with the
// completed list.
func DeriveFromEnrollments(completed []model.CompletedCourse, enrollments []model.EnrollmentView) Standing {
	var failed []model.Grade
	inProgress := 0
	for _, e := range enrollments {
		switch {
		case e.State.Active():
			inProgress += e.Credits
		case e.State == model.EnrollmentFailed && e.Grade != nil:
			failed = append(failed, *e.Grade)
		}
	}
	return Derive(completed, failed, inProgress)
}

// Reconcile returns the completed-course list implied by the existing list
// and the student's enrollments.
//
// Records without an enrollment (imported history) are kept. Each approved
// enrollment has exactly one record carrying its current grade; records
// of enrollments that are no longer approved are dropped. Surviving
// records keep their order and new ones follow in enrollment order.
func Reconcile(existing []model.CompletedCourse, enrollments []model.EnrollmentView) []model.CompletedCourse {
	approved := make(map[string]model.EnrollmentView, len(enrollments))
	for _, e := range enrollments {
		if e.State == model.EnrollmentApproved && e.Grade != nil {
			approved[e.ID] = e
		}
	}

	out := make([]model.CompletedCourse, 0, len(existing)+len(approved))
	seen := make(map[string]bool, len(approved))
	for _, rec := range existing {
		if rec.EnrollmentID == "" {
			out = append(out, rec)
			continue
		}
		e, ok := approved[rec.EnrollmentID]
		if !ok || seen[rec.EnrollmentID] {
			continue
		}
		seen[rec.EnrollmentID] = true
		out = append(out, completedFrom(e))
	}
	for _, e := range enrollments {
		if _, ok := approved[e.ID]; ok && !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, completedFrom(e))
		}
	}
	return out
}

func completedFrom(e model.EnrollmentView) model.CompletedCourse {
	return model.CompletedCourse{
		EnrollmentID: e.ID,
		CourseID:     e.CourseID,
		Code:         e.CourseCode,
		Name:         e.CourseName,
		Period:       e.Period,
		Grade:        *e.Grade,
		Credits:      e.Credits,
	}
}
