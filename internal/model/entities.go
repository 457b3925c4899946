package model

import "time"

// Student is an enrolled learner. GPA, Credits and GradeCount are derived
// from Completed and the student's enrollments; no operation sets them
// directly.
type Student struct {
	ID         string            `json:"id"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	ProgramID  string            `json:"program_id"`
	Semester   int               `json:"semester"`
	State      StudentState      `json:"state"`
	GPA        Grade             `json:"gpa"`
	Credits    int               `json:"credits"`
	GradeCount int               `json:"grade_count"`
	Completed  []CompletedCourse `json:"completed"`
}

// CompletedCourse is a student-owned summary of a finished course.
// EnrollmentID is empty for history imported with the catalog.
type CompletedCourse struct {
	EnrollmentID string `json:"enrollment_id,omitempty"`
	CourseID     string `json:"course_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Period       string `json:"period"`
	Grade        Grade  `json:"grade"`
	Credits      int    `json:"credits"`
}

// Course is a unit of study.
type Course struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	Credits       int        `json:"credits"`
	Prerequisites []string   `json:"prerequisites"`
	Type          CourseType `json:"type"`
	Description   string     `json:"description,omitempty"`
}

// Program is a degree program.
type Program struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	TotalCredits int              `json:"total_credits"`
	Semesters    int              `json:"semesters"`
	Requirements []string         `json:"requirements"`
	Curriculum   []CurriculumTerm `json:"curriculum,omitempty"`
}

// CurriculumTerm maps a semester to the courses planned for it.
type CurriculumTerm struct {
	Semester  int      `json:"semester"`
	CourseIDs []string `json:"course_ids"`
}

// Professor teaches courses.
type Professor struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Specialties []string     `json:"specialties"`
	Assignments []Assignment `json:"assignments"`
}

// Assignment binds a professor to a course in a period.
type Assignment struct {
	CourseID string `json:"course_id"`
	Period   string `json:"period"`
	Schedule string `json:"schedule,omitempty"`
}

// Enrollment is a student's registration in a course for a period.
// Grade is non-nil iff State is approved or failed.
type Enrollment struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"student_id"`
	CourseID   string          `json:"course_id"`
	Period     string          `json:"period"`
	State      EnrollmentState `json:"state"`
	Grade      *Grade          `json:"grade,omitempty"`
	EnrolledAt time.Time       `json:"enrolled_at"`
}

// EnrollmentView is an enrollment joined with the course facts the
// derivation rules need.
type EnrollmentView struct {
	Enrollment
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	Credits    int    `json:"credits"`
}

// AuditRecord is an append-only trace of one change event.
type AuditRecord struct {
	ID          string     `json:"id"`
	EventSeq    int64      `json:"event_seq"`
	RecordedAt  time.Time  `json:"recorded_at"`
	Operation   Operation  `json:"operation"`
	Collection  Collection `json:"collection"`
	EntityID    string     `json:"entity_id"`
	Description string     `json:"description"`
}

// GradeHistoryRecord captures one grade change of an enrollment.
type GradeHistoryRecord struct {
	ID           string    `json:"id"`
	EventSeq     int64     `json:"event_seq"`
	EnrollmentID string    `json:"enrollment_id"`
	Previous     *Grade    `json:"previous,omitempty"`
	New          Grade     `json:"new"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// RiskAlert is an informational notice that a student's GPA fell below
// the passing threshold.
type RiskAlert struct {
	StudentID   string    `json:"student_id"`
	StudentCode string    `json:"student_code"`
	GPA         Grade     `json:"gpa"`
	Level       RiskLevel `json:"level"`
	EventSeq    int64     `json:"event_seq"`
}
