package coordinator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/registrar/internal/model"
)

// EnrollRequest enrolls one student in several courses for one period.
type EnrollRequest struct {
	StudentCode string   `json:"student_code" validate:"required"`
	CourseCodes []string `json:"course_codes" validate:"required,min=1,dive,required"`
	Period      string   `json:"period" validate:"required,period"`
}

// EnrollResult lists the created enrollment ids in request order.
type EnrollResult struct {
	EnrollmentIDs []string `json:"enrollment_ids"`
}

// GradeResult reports the enrollment's new state and the student's
// re-derived standing.
type GradeResult struct {
	EnrollmentID string                `json:"enrollment_id"`
	State        model.EnrollmentState `json:"state"`
	GPA          model.Grade           `json:"gpa"`
	Credits      int                   `json:"credits"`
}

// periodPattern matches academic terms such as "2025-1".
var periodPattern = regexp.MustCompile(`^\d{4}-\d{1,2}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return periodPattern.MatchString(fl.Field().String())
	})
	return v
}

// invalid converts a validator failure into an InvalidArgument error
// naming each failed field.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.Wrap(model.InvalidArgument, err, "invalid request")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return model.Errorf(model.InvalidArgument, "invalid request: %s", strings.Join(parts, ", "))
}

// firstDuplicate returns the first course code listed twice, or "".
func firstDuplicate(codes []string) string {
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			return c
		}
		seen[c] = true
	}
	return ""
}
