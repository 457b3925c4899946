package rules

import "github.com/roach88/registrar/internal/model"

// CheckGraduation decides whether a student may graduate from a program.
func CheckGraduation(s model.Student, p model.Program) error {
	if s.State != model.StudentActive {
		return model.Errorf(model.InvalidStateTransition,
			"student %s is %s, only active students graduate", s.Code, s.State)
	}
	if s.Credits < p.TotalCredits {
		return model.Errorf(model.InsufficientCredits,
			"student %s has %d of %d credits required by %s", s.Code, s.Credits, p.TotalCredits, p.Code)
	}
	return StudentTransition(s.State, model.StudentGraduated)
}
