package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/registrar/internal/model"
)

// TraceSnapshot is the golden-file form of a scenario trace.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// Object renders the snapshot as a canonical snapshot value.
func (s TraceSnapshot) Object() model.Object {
	events := make(model.List, len(s.Trace))
	for i, ev := range s.Trace {
		obj := model.Object{
			"seq":        model.Int(ev.Seq),
			"collection": model.Str(ev.Collection),
			"op":         model.Str(ev.Op),
			"entity":     model.Str(ev.Entity),
			"depth":      model.Int(ev.Depth),
		}
		if len(ev.Changed) > 0 {
			obj["changed"] = model.Strings(ev.Changed)
		}
		if ev.Origin != "" {
			obj["origin"] = model.Str(ev.Origin)
		}
		if ev.Reason != "" {
			obj["reason"] = model.Str(ev.Reason)
		}
		events[i] = obj
	}
	return model.Object{
		"scenario_name": model.Str(s.ScenarioName),
		"trace":         events,
	}
}

// MarshalTrace renders a trace as indented canonical JSON with sorted
// keys.
func MarshalTrace(name string, trace []TraceEvent) ([]byte, error) {
	raw, err := model.MarshalCanonical(TraceSnapshot{ScenarioName: name, Trace: trace}.Object())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails the test on any unmet
// expectation and compares the trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares a result's trace with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := MarshalTrace(name, result.Trace)
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
