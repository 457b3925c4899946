package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
)

func TestEnrollmentTransition(t *testing.T) {
	tests := []struct {
		from, to model.EnrollmentState
		ok       bool
	}{
		{model.EnrollmentEnrolled, model.EnrollmentApproved, true},
		{model.EnrollmentEnrolled, model.EnrollmentWithdrawn, true},
		{model.EnrollmentInProgress, model.EnrollmentFailed, true},
		{model.EnrollmentApproved, model.EnrollmentFailed, true},
		{model.EnrollmentApproved, model.EnrollmentApproved, true},
		{model.EnrollmentFailed, model.EnrollmentWithdrawn, true},
		{model.EnrollmentApproved, model.EnrollmentWithdrawn, false},
		{model.EnrollmentWithdrawn, model.EnrollmentApproved, false},
		{model.EnrollmentWithdrawn, model.EnrollmentWithdrawn, false},
		{model.EnrollmentApproved, model.EnrollmentEnrolled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := EnrollmentTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, model.IsCode(err, model.InvalidStateTransition))
		})
	}
}

func TestStudentTransition(t *testing.T) {
	assert.NoError(t, StudentTransition(model.StudentActive, model.StudentGraduated))
	assert.NoError(t, StudentTransition(model.StudentInactive, model.StudentActive))
	assert.True(t, model.IsCode(StudentTransition(model.StudentGraduated, model.StudentActive), model.InvalidStateTransition))
	assert.True(t, model.IsCode(StudentTransition(model.StudentInactive, model.StudentGraduated), model.InvalidStateTransition))
}

func TestValidateGradeAndOutcome(t *testing.T) {
	assert.NoError(t, ValidateGrade(0))
	assert.NoError(t, ValidateGrade(500))
	assert.True(t, model.IsCode(ValidateGrade(501), model.InvalidArgument))
	assert.True(t, model.IsCode(ValidateGrade(-1), model.InvalidArgument))

	assert.Equal(t, model.EnrollmentApproved, Outcome(300))
	assert.Equal(t, model.EnrollmentFailed, Outcome(299))
}

func TestMeanRoundsHalfUp(t *testing.T) {
	assert.Equal(t, model.Grade(0), Mean(nil))
	assert.Equal(t, model.Grade(350), Mean([]model.Grade{300, 400}))
	// 3.00 + 3.01 = 3.005 -> 3.01
	assert.Equal(t, model.Grade(301), Mean([]model.Grade{300, 301}))
	// 1/3 -> 0.33
	assert.Equal(t, model.Grade(33), Mean([]model.Grade{100, 0, 0}))
}

func grade(g model.Grade) *model.Grade { return &g }

func view(id string, state model.EnrollmentState, g *model.Grade, credits int) model.EnrollmentView {
	return model.EnrollmentView{
		Enrollment: model.Enrollment{ID: id, CourseID: "c-" + id, Period: "2025-1", State: state, Grade: g},
		CourseCode: "C" + id,
		CourseName: "Course " + id,
		Credits:    credits,
	}
}

func TestDeriveFromEnrollments(t *testing.T) {
	completed := []model.CompletedCourse{{Code: "HIST", Grade: 320, Credits: 40}}
	enrollments := []model.EnrollmentView{
		view("1", model.EnrollmentEnrolled, nil, 3),
		view("2", model.EnrollmentFailed, grade(200), 4),
		view("3", model.EnrollmentWithdrawn, nil, 5),
	}

	st := DeriveFromEnrollments(completed, enrollments)
	assert.Equal(t, 43, st.Credits)
	assert.Equal(t, 2, st.GradeCount)
	assert.Equal(t, model.Grade(260), st.GPA)
}

func TestReconcileApproveAndRegrade(t *testing.T) {
	history := model.CompletedCourse{Code: "HIST", Grade: 320, Credits: 40}

	approved := []model.EnrollmentView{view("1", model.EnrollmentApproved, grade(400), 3)}
	got := Reconcile([]model.CompletedCourse{history}, approved)
	require.Len(t, got, 2)
	assert.Equal(t, history, got[0])
	assert.Equal(t, "1", got[1].EnrollmentID)
	assert.Equal(t, model.Grade(400), got[1].Grade)
	assert.Equal(t, "C1", got[1].Code)

	// Reconciling again is a no-op.
	assert.Equal(t, got, Reconcile(got, approved))

	// Re-grade within approved replaces the grade in place.
	regraded := []model.EnrollmentView{view("1", model.EnrollmentApproved, grade(350), 3)}
	again := Reconcile(got, regraded)
	require.Len(t, again, 2)
	assert.Equal(t, model.Grade(350), again[1].Grade)

	// Re-grade to failed removes the record.
	failed := []model.EnrollmentView{view("1", model.EnrollmentFailed, grade(200), 3)}
	assert.Equal(t, []model.CompletedCourse{history}, Reconcile(got, failed))
}

func TestReconcileDropsDuplicateRecords(t *testing.T) {
	e := view("1", model.EnrollmentApproved, grade(400), 3)
	dup := []model.CompletedCourse{
		{EnrollmentID: "1", Grade: 400, Credits: 3},
		{EnrollmentID: "1", Grade: 400, Credits: 3},
	}
	got := Reconcile(dup, []model.EnrollmentView{e})
	assert.Len(t, got, 1)
}

func TestWorkedExampleCredits(t *testing.T) {
	// S has GPA 3.2 over ten imported courses totalling 40 credits.
	var history []model.CompletedCourse
	for i := 0; i < 10; i++ {
		history = append(history, model.CompletedCourse{Code: "H", Grade: 320, Credits: 4})
	}

	enrolled := []model.EnrollmentView{view("c", model.EnrollmentEnrolled, nil, 3)}
	st := DeriveFromEnrollments(Reconcile(history, enrolled), enrolled)
	assert.Equal(t, 43, st.Credits)
	assert.Equal(t, model.Grade(320), st.GPA)

	approved := []model.EnrollmentView{view("c", model.EnrollmentApproved, grade(400), 3)}
	completed := Reconcile(history, approved)
	st = DeriveFromEnrollments(completed, approved)
	assert.Equal(t, 43, st.Credits)
	assert.Equal(t, 11, st.GradeCount)
	assert.Equal(t, model.Grade(327), st.GPA)

	failed := []model.EnrollmentView{view("c", model.EnrollmentFailed, grade(200), 3)}
	completed = Reconcile(completed, failed)
	st = DeriveFromEnrollments(completed, failed)
	assert.Len(t, completed, 10)
	assert.Equal(t, 40, st.Credits)
	assert.Equal(t, 11, st.GradeCount)
	// (3200 + 200) / 11 = 309.09
	assert.Equal(t, model.Grade(309), st.GPA)
}

func TestCapacity(t *testing.T) {
	assert.NoError(t, CheckSeats("MAT101", "2025-1", 30, 30))
	assert.True(t, model.IsCode(CheckSeats("MAT101", "2025-1", 31, 30), model.CapacityExceeded))
	assert.False(t, Overbooked(30, 30))
	assert.True(t, Overbooked(31, 30))
}

func TestCheckGraduation(t *testing.T) {
	program := model.Program{Code: "SYS", TotalCredits: 160}

	ok := model.Student{Code: "S1", State: model.StudentActive, Credits: 160}
	assert.NoError(t, CheckGraduation(ok, program))

	short := ok
	short.Credits = 159
	assert.True(t, model.IsCode(CheckGraduation(short, program), model.InsufficientCredits))

	inactive := ok
	inactive.State = model.StudentInactive
	assert.True(t, model.IsCode(CheckGraduation(inactive, program), model.InvalidStateTransition))
}

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		name   string
		before Standing
		after  Standing
		level  model.RiskLevel
		alert  bool
	}{
		{"crosses to medium", Standing{GPA: 310, GradeCount: 3}, Standing{GPA: 290, GradeCount: 4}, model.RiskMedium, true},
		{"crosses to high", Standing{GPA: 300, GradeCount: 1}, Standing{GPA: 240, GradeCount: 2}, model.RiskHigh, true},
		{"first grade low", Standing{}, Standing{GPA: 200, GradeCount: 1}, model.RiskHigh, true},
		{"already below", Standing{GPA: 280, GradeCount: 2}, Standing{GPA: 260, GradeCount: 3}, "", false},
		{"stays above", Standing{GPA: 350, GradeCount: 2}, Standing{GPA: 320, GradeCount: 3}, "", false},
		{"no grades", Standing{GPA: 310, GradeCount: 1}, Standing{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, alert := AssessRisk(tt.before, tt.after)
			assert.Equal(t, tt.alert, alert)
			assert.Equal(t, tt.level, level)
		})
	}
}
