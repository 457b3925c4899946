package model

// StudentState is the lifecycle state of a student.
type StudentState string

const (
	StudentActive    StudentState = "active"
	StudentInactive  StudentState = "inactive"
	StudentGraduated StudentState = "graduated"
	StudentWithdrawn StudentState = "withdrawn"
)

// EnrollmentState is the lifecycle state of an enrollment.
type EnrollmentState string

const (
	EnrollmentEnrolled   EnrollmentState = "enrolled"
	EnrollmentInProgress EnrollmentState = "in_progress"
	EnrollmentApproved   EnrollmentState = "approved"
	EnrollmentFailed     EnrollmentState = "failed"
	EnrollmentWithdrawn  EnrollmentState = "withdrawn"
)

// Final reports whether the state carries a final grade.
func (s EnrollmentState) Final() bool {
	return s == EnrollmentApproved || s == EnrollmentFailed
}

// Active reports whether the enrollment still holds a seat and its credits
// count as in progress.
func (s EnrollmentState) Active() bool {
	return s == EnrollmentEnrolled || s == EnrollmentInProgress
}

// CourseType classifies a course within a curriculum.
type CourseType string

const (
	CourseMandatory    CourseType = "mandatory"
	CourseElective     CourseType = "elective"
	CourseFoundational CourseType = "foundational"
)

// Collection names a change-log source.
type Collection string

const (
	CollectionStudent    Collection = "student"
	CollectionEnrollment Collection = "enrollment"
	CollectionCourse     Collection = "course"
	CollectionProgram    Collection = "program"
	CollectionProfessor  Collection = "professor"
)

// Collections lists every change-log source in a stable order.
func Collections() []Collection {
	return []Collection{
		CollectionStudent,
		CollectionEnrollment,
		CollectionCourse,
		CollectionProgram,
		CollectionProfessor,
	}
}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", Errorf(InvalidArgument, "unknown collection %q", s)
}

// Operation is the kind of mutation a change event records.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// RiskLevel classifies a risk alert.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
)
