// Package store provides the SQLite-backed Entity Store and Change Log
// of the registrar.
//
// The store holds:
//   - Entities: programs, courses, professors, students, enrollments
//   - Seat reservations per (course, period)
//   - Change log: one row per committed mutation, in commit order
//   - Subscriber cursors: durable positions into the change log
//   - Audit records and grade history written by triggers
//
// # Transactions
//
// Update runs a read-modify-commit unit. Every mutation made through a Tx
// buffers a change event; the events are appended to change_log inside
// the same SQLite transaction just before COMMIT. The change log is
// therefore never written on its own and never holds an uncommitted
// mutation.
//
// The pool holds a single connection, so writers are serialized and seq
// order equals commit order. Operations touching the same student queue
// on that connection instead of racing.
//
// # Errors
//
//   - SQLITE_BUSY and SQLITE_LOCKED map to model.TransactionAborted
//   - Missing rows map to model.NotFound
//   - The enrollment uniqueness triple maps to model.DuplicateEnrollment
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and throughput
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
