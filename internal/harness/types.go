package harness

import "github.com/roach88/registrar/internal/model"

// TraceEvent is one change-log event as recorded in a scenario trace.
// Entity is the entity's code or scenario binding when one is known.
type TraceEvent struct {
	Seq        int64    `json:"seq"`
	Collection string   `json:"collection"`
	Op         string   `json:"op"`
	Entity     string   `json:"entity"`
	Changed    []string `json:"changed,omitempty"`
	Origin     string   `json:"origin,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Depth      int      `json:"depth"`
}

// Label renders the event for order assertions and failure output.
func (e TraceEvent) Label() string {
	if e.Origin != "" {
		return e.Collection + ":" + e.Op + ":" + e.Origin
	}
	return e.Collection + ":" + e.Op
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the change events the flow produced, in seq order.
	// Catalog seeding is not part of the trace.
	Trace []TraceEvent `json:"trace"`

	// Alerts are the risk alerts raised while draining.
	Alerts []model.RiskAlert `json:"alerts,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
