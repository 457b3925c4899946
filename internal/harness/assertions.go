package harness

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", ev.Seq, ev.Label(), ev.Entity, ev.Changed)
		}
	}
	return buf.String()
}

// AssertionContext provides store access for state assertions.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Bindings map[string]string
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertChangeContains:
			err = assertChangeContains(result.Trace, a)
		case AssertChangeOrder:
			err = assertChangeOrder(result.Trace, a)
		case AssertChangeCount:
			err = assertChangeCount(result.Trace, a)
		case AssertRiskAlerts:
			err = assertRiskAlerts(result.Alerts, a)
		case AssertFinalState, AssertAuditCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, a.Type)
			} else if a.Type == AssertFinalState {
				err = assertFinalState(actx, a)
			} else {
				err = assertAuditCount(actx, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// matchEvent reports whether ev satisfies every filter set on a.
func matchEvent(ev TraceEvent, a Assertion) bool {
	if a.Collection != "" && a.Collection != ev.Collection {
		return false
	}
	if a.Op != "" && a.Op != ev.Op {
		return false
	}
	if a.Entity != "" && a.Entity != ev.Entity {
		return false
	}
	if a.Origin != "" && a.Origin != ev.Origin {
		return false
	}
	for _, field := range a.Changed {
		if !slices.Contains(ev.Changed, field) {
			return false
		}
	}
	return true
}

func describe(a Assertion) string {
	parts := []string{}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("collection", a.Collection)
	add("op", a.Op)
	add("entity", a.Entity)
	add("origin", a.Origin)
	if len(a.Changed) > 0 {
		add("changed", strings.Join(a.Changed, ","))
	}
	return "event " + strings.Join(parts, " ")
}

func assertChangeContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertChangeContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// parseLabel turns "collection:op[:origin]" into a filter.
func parseLabel(label string) Assertion {
	parts := strings.SplitN(label, ":", 3)
	a := Assertion{Collection: parts[0]}
	if len(parts) > 1 {
		a.Op = parts[1]
	}
	if len(parts) > 2 {
		a.Origin = parts[2]
	}
	return a
}

// assertChangeOrder checks that the labelled events occur in order.
// Other events may appear between them.
func assertChangeOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, label := range a.Events {
		filter := parseLabel(label)
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if matchEvent(ev, filter) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertChangeOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   fmt.Sprintf("no %s after the preceding events", label),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertChangeCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, a) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertChangeCount,
			Expected: fmt.Sprintf("%d of %s", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertRiskAlerts(alerts []model.RiskAlert, a Assertion) error {
	count := 0
	for _, alert := range alerts {
		if a.Level != "" && string(alert.Level) != a.Level {
			continue
		}
		if a.Entity != "" && alert.StudentCode != a.Entity {
			continue
		}
		count++
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertRiskAlerts,
			Expected: fmt.Sprintf("%d risk alerts (level %q, student %q)", *a.Count, a.Level, a.Entity),
			Actual:   fmt.Sprintf("%d alerts: %v", count, alerts),
		}
	}
	return nil
}

func assertAuditCount(actx *AssertionContext, a Assertion) error {
	f := store.AuditFilter{Collection: model.Collection(a.Collection), Operation: model.Operation(a.Op)}
	records, err := actx.Store.AuditRecords(actx.Ctx, f)
	if err != nil {
		return fmt.Errorf("audit_count: %w", err)
	}
	if len(records) != *a.Count {
		return &AssertionError{
			Type:     AssertAuditCount,
			Expected: fmt.Sprintf("%d audit records for collection %q", *a.Count, a.Collection),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	return nil
}

// assertFinalState compares fields of a student (by code) or an
// enrollment (by binding name or id) with the expected values.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	var snap model.Object
	switch a.Collection {
	case string(model.CollectionStudent):
		st, err := actx.Store.Student(actx.Ctx, a.Entity)
		if err != nil {
			return &AssertionError{Type: AssertFinalState, Expected: "student " + a.Entity, Actual: err.Error()}
		}
		snap = st.Snapshot()
	case string(model.CollectionEnrollment):
		id := a.Entity
		if bound, ok := actx.Bindings[id]; ok {
			id = bound
		}
		e, err := actx.Store.Enrollment(actx.Ctx, id)
		if err != nil {
			return &AssertionError{Type: AssertFinalState, Expected: "enrollment " + a.Entity, Actual: err.Error()}
		}
		snap = e.Snapshot()
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		want := a.Expect[key]
		got, ok := snap[key]
		if !snapshotValueEqual(key, want, got, ok) {
			actual := "absent"
			if ok {
				actual = formatValue(got)
			}
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s field %q = %v", a.Collection, a.Entity, key, want),
				Actual:   fmt.Sprintf("field %q = %s", key, actual),
			}
		}
	}
	return nil
}

// gradeFields hold hundredths and accept decimal text in expectations.
var gradeFields = map[string]bool{model.FieldGPA: true, model.FieldGrade: true}

func snapshotValueEqual(field string, want interface{}, got model.Value, present bool) bool {
	if !present {
		return want == nil
	}
	switch g := got.(type) {
	case model.Str:
		s, ok := want.(string)
		return ok && s == string(g)
	case model.Bool:
		b, ok := want.(bool)
		return ok && b == bool(g)
	case model.Int:
		if gradeFields[field] {
			var text string
			switch w := want.(type) {
			case string:
				text = w
			case int, float64:
				text = fmt.Sprint(w)
			default:
				return false
			}
			grade, err := model.ParseGrade(text)
			return err == nil && int64(grade) == int64(g)
		}
		switch w := want.(type) {
		case int:
			return int64(w) == int64(g)
		case string:
			n, err := strconv.ParseInt(w, 10, 64)
			return err == nil && n == int64(g)
		}
		return false
	}
	return false
}

func formatValue(v model.Value) string {
	b, err := model.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
