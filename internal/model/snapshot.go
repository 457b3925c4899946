package model

// Snapshot field names shared by the store, rules and triggers.
const (
	FieldState      = "state"
	FieldGrade      = "grade"
	FieldGPA        = "gpa"
	FieldCredits    = "credits"
	FieldGradeCount = "grade_count"
	FieldCompleted  = "completed"
	FieldStudentID  = "student_id"
	FieldCourseID   = "course_id"
	FieldPeriod     = "period"
	FieldCode       = "code"
)

// Snapshot renders the student as a change-event value.
func (s Student) Snapshot() Object {
	completed := make(List, len(s.Completed))
	for i, c := range s.Completed {
		completed[i] = c.Snapshot()
	}
	return Object{
		FieldCode:       Str(s.Code),
		"name":          Str(s.Name),
		"email":         Str(s.Email),
		"program_id":    Str(s.ProgramID),
		"semester":      Int(s.Semester),
		FieldState:      Str(s.State),
		FieldGPA:        Int(s.GPA),
		FieldCredits:    Int(s.Credits),
		FieldGradeCount: Int(s.GradeCount),
		FieldCompleted:  completed,
	}
}

// Snapshot renders the completed-course record.
func (c CompletedCourse) Snapshot() Object {
	obj := Object{
		FieldCourseID: Str(c.CourseID),
		FieldCode:     Str(c.Code),
		"name":        Str(c.Name),
		FieldPeriod:   Str(c.Period),
		FieldGrade:    Int(c.Grade),
		FieldCredits:  Int(c.Credits),
	}
	if c.EnrollmentID != "" {
		obj["enrollment_id"] = Str(c.EnrollmentID)
	}
	return obj
}

// Snapshot renders the enrollment. The grade key is absent when there is
// no grade.
func (e Enrollment) Snapshot() Object {
	obj := Object{
		FieldStudentID: Str(e.StudentID),
		FieldCourseID:  Str(e.CourseID),
		FieldPeriod:    Str(e.Period),
		FieldState:     Str(e.State),
	}
	if e.Grade != nil {
		obj[FieldGrade] = Int(*e.Grade)
	}
	return obj
}

// Snapshot renders the course.
func (c Course) Snapshot() Object {
	return Object{
		FieldCode:       Str(c.Code),
		"name":          Str(c.Name),
		FieldCredits:    Int(c.Credits),
		"prerequisites": Strings(c.Prerequisites),
		"type":          Str(c.Type),
		"description":   Str(c.Description),
	}
}

// Snapshot renders the program.
func (p Program) Snapshot() Object {
	curriculum := make(List, len(p.Curriculum))
	for i, t := range p.Curriculum {
		curriculum[i] = Object{
			"semester":   Int(t.Semester),
			"course_ids": Strings(t.CourseIDs),
		}
	}
	return Object{
		FieldCode:       Str(p.Code),
		"name":          Str(p.Name),
		"total_credits": Int(p.TotalCredits),
		"semesters":     Int(p.Semesters),
		"requirements":  Strings(p.Requirements),
		"curriculum":    curriculum,
	}
}

// Snapshot renders the professor.
func (p Professor) Snapshot() Object {
	assignments := make(List, len(p.Assignments))
	for i, a := range p.Assignments {
		assignments[i] = Object{
			FieldCourseID: Str(a.CourseID),
			FieldPeriod:   Str(a.Period),
			"schedule":    Str(a.Schedule),
		}
	}
	return Object{
		FieldCode:     Str(p.Code),
		"name":        Str(p.Name),
		"email":       Str(p.Email),
		"specialties": Strings(p.Specialties),
		"assignments": assignments,
	}
}
