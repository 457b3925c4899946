// Package harness runs registrar scenarios: a catalog, a flow of
// coordinator operations and assertions over the resulting change log and
// final state.
//
// Each scenario runs against a fresh in-memory store with deterministic
// ids and a fixed clock, and the trigger engine is drained after every
// step that writes, so the trace is reproducible and can be compared with
// a golden file.
//
// # Scenario Format
//
//	name: worked_example
//	description: "A passing grade raises the GPA"
//	catalog: ../catalog            # directory of CUE files, relative to the scenario
//	catalog_source: |              # or inline CUE
//	  course: MAT101: {...}
//	options:
//	  ceiling: 30
//	  capacity_mode: hard
//	flow:
//	  - op: enroll
//	    student: S001
//	    courses: [MAT101]
//	    period: "2025-1"
//	    as: [mat]                  # names the created enrollments
//	  - op: grade
//	    enrollment: mat
//	    grade: "4.0"
//	    expect: {state: approved, gpa: "3.27"}
//	assertions:
//	  - type: change_contains
//	    collection: student
//	    entity: S001
//	    changed: [gpa]
//	  - type: final_state
//	    collection: enrollment
//	    entity: mat
//	    expect: {state: approved}
//
// # Operations
//
//   - enroll: student, courses, period, optional as
//   - grade: enrollment, grade
//   - withdraw: enrollment
//   - graduate: student
//   - drain: runs the trigger engine to quiescence
//
// A step's expect clause names the error code the step must fail with
// (expect.error) or, for a successful step, fields of the result.
//
// # Assertion Types
//
//   - change_contains: an event matches collection, op, entity, origin and changed fields
//   - change_order: events appear in the given order ("collection:op[:origin]")
//   - change_count: exactly count events match
//   - final_state: fields of a student or enrollment snapshot
//   - audit_count: number of audit records, optionally per collection
//   - risk_alerts: number of risk alerts, optionally per level
package harness
