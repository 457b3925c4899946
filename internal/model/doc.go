// Package model holds the registrar's shared types: entities, enums,
// fixed-point grades, change events and their snapshot values, error
// kinds, and the causal context that flows from triggers back into the
// coordinator.
//
// This package imports nothing internal. Every other internal package
// builds on it.
//
// Key design constraints:
//   - NO float types in snapshots; grades are int64 hundredths (Grade)
//   - Snapshot JSON is canonical (RFC 8785 key order, NFC strings)
//   - All JSON tags use snake_case
package model
