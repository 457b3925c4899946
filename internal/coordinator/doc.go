// Package coordinator exposes the registrar's atomic use-case operations:
// EnrollBatch, RecordGrade, WithdrawCourse and GraduateStudent, plus the
// two operations triggers write through, RollbackEnrollment and
// RefreshStudent.
//
// Each operation is one store.Update: it either commits every write it
// makes, together with the change events describing them, or leaves no
// trace. Consistency rules run on the proposed state inside the
// transaction, so a violation is reported before anything commits.
//
// Derived student fields (GPA, credits, completed list) are never
// adjusted incrementally. Every operation that touches an enrollment
// reconciles the student from its authoritative enrollments in the same
// transaction, which keeps re-grading symmetric and makes redelivered
// trigger writes no-ops.
package coordinator
