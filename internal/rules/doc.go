// Package rules holds the registrar's consistency rules: state-transition
// legality, GPA and credit derivation, completed-course reconciliation,
// capacity predicates, graduation eligibility and risk classification.
//
// Every function here is pure. The coordinator calls them inside a store
// transaction on the proposed state; they never read or write the store
// or the change log.
package rules
