package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is an executable registrar story.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Catalog is a directory of CUE catalog files, resolved relative to
	// the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// CatalogSource is an inline CUE catalog, used when Catalog is empty.
	CatalogSource string `yaml:"catalog_source,omitempty"`

	Options Options `yaml:"options,omitempty"`

	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`
}

// Options tune the coordinator and engine for one scenario.
type Options struct {
	Ceiling      int    `yaml:"ceiling,omitempty"`
	CapacityMode string `yaml:"capacity_mode,omitempty"`
	MaxDepth     int    `yaml:"max_depth,omitempty"`
}

// Step is one operation of the flow.
type Step struct {
	Op string `yaml:"op"`

	Student    string   `yaml:"student,omitempty"`
	Courses    []string `yaml:"courses,omitempty"`
	Period     string   `yaml:"period,omitempty"`
	Enrollment string   `yaml:"enrollment,omitempty"`
	Grade      string   `yaml:"grade,omitempty"`

	// As names the enrollments an enroll step creates, in course order.
	As []string `yaml:"as,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step. Error is a registrar error
// code; when empty the step must succeed and the remaining fields, when
// set, are compared with the step's result.
type Expect struct {
	Error   string `yaml:"error,omitempty"`
	State   string `yaml:"state,omitempty"`
	GPA     string `yaml:"gpa,omitempty"`
	Credits *int   `yaml:"credits,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	Collection string   `yaml:"collection,omitempty"`
	Op         string   `yaml:"op,omitempty"`
	Entity     string   `yaml:"entity,omitempty"`
	Origin     string   `yaml:"origin,omitempty"`
	Changed    []string `yaml:"changed,omitempty"`

	// Events lists "collection:op" or "collection:op:origin" labels for
	// change_order.
	Events []string `yaml:"events,omitempty"`

	Count *int `yaml:"count,omitempty"`

	// Level filters risk_alerts.
	Level string `yaml:"level,omitempty"`

	// Expect holds snapshot fields for final_state. Grade and GPA values
	// may be written as decimal text.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpEnroll   = "enroll"
	OpGrade    = "grade"
	OpWithdraw = "withdraw"
	OpGraduate = "graduate"
	OpDrain    = "drain"
)

// Assertion types.
const (
	AssertChangeContains = "change_contains"
	AssertChangeOrder    = "change_order"
	AssertChangeCount    = "change_count"
	AssertFinalState     = "final_state"
	AssertAuditCount     = "audit_count"
	AssertRiskAlerts     = "risk_alerts"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and a relative catalog path is resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	if scenario.Catalog != "" {
		if _, err := os.Stat(scenario.Catalog); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalog directory not found: %s", scenario.Catalog)
		}
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" && strings.TrimSpace(s.CatalogSource) == "" {
		return fmt.Errorf("catalog or catalog_source is required")
	}
	if s.Catalog != "" && s.CatalogSource != "" {
		return fmt.Errorf("catalog and catalog_source are mutually exclusive")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	switch step.Op {
	case OpEnroll:
		if step.Student == "" || len(step.Courses) == 0 || step.Period == "" {
			return fmt.Errorf("flow[%d]: enroll requires student, courses and period", i)
		}
		if len(step.As) > 0 && len(step.As) != len(step.Courses) {
			return fmt.Errorf("flow[%d]: as names %d enrollments for %d courses", i, len(step.As), len(step.Courses))
		}
	case OpGrade:
		if step.Enrollment == "" || step.Grade == "" {
			return fmt.Errorf("flow[%d]: grade requires enrollment and grade", i)
		}
	case OpWithdraw:
		if step.Enrollment == "" {
			return fmt.Errorf("flow[%d]: withdraw requires enrollment", i)
		}
	case OpGraduate:
		if step.Student == "" {
			return fmt.Errorf("flow[%d]: graduate requires student", i)
		}
	case OpDrain:
	case "":
		return fmt.Errorf("flow[%d]: op is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertChangeContains:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for change_contains", i)
		}
	case AssertChangeOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for change_order", i)
		}
	case AssertChangeCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for change_count", i)
		}
	case AssertFinalState:
		if a.Collection != "student" && a.Collection != "enrollment" {
			return fmt.Errorf("assertions[%d]: final_state supports collection student or enrollment", i)
		}
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", i)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", i)
		}
	case AssertAuditCount, AssertRiskAlerts:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", i, a.Type)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
