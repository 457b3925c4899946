package rules

import "github.com/roach88/registrar/internal/model"

var enrollmentTransitions = map[model.EnrollmentState][]model.EnrollmentState{
	model.EnrollmentEnrolled: {
		model.EnrollmentInProgress,
		model.EnrollmentApproved,
		model.EnrollmentFailed,
		model.EnrollmentWithdrawn,
	},
	model.EnrollmentInProgress: {
		model.EnrollmentApproved,
		model.EnrollmentFailed,
		model.EnrollmentWithdrawn,
	},
	// Re-grading moves between the two final states.
	model.EnrollmentApproved: {
		model.EnrollmentApproved,
		model.EnrollmentFailed,
	},
	model.EnrollmentFailed: {
		model.EnrollmentApproved,
		model.EnrollmentFailed,
		model.EnrollmentWithdrawn,
	},
}

var studentTransitions = map[model.StudentState][]model.StudentState{
	model.StudentActive: {
		model.StudentInactive,
		model.StudentGraduated,
		model.StudentWithdrawn,
	},
	model.StudentInactive: {
		model.StudentActive,
		model.StudentWithdrawn,
	},
}

// EnrollmentTransition returns InvalidStateTransition unless an enrollment
// may move from one state to the other.
func EnrollmentTransition(from, to model.EnrollmentState) error {
	for _, allowed := range enrollmentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return model.Errorf(model.InvalidStateTransition, "enrollment cannot move from %s to %s", from, to)
}

// StudentTransition returns InvalidStateTransition unless a student may
// move from one state to the other.
func StudentTransition(from, to model.StudentState) error {
	for _, allowed := range studentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return model.Errorf(model.InvalidStateTransition, "student cannot move from %s to %s", from, to)
}
