package engine

import (
	"context"
	"time"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// Trigger reacts to committed change events.
//
// Handle must be idempotent: events are delivered at least once, and a
// failed handle is retried with the same event.
type Trigger interface {
	// Name identifies the trigger. It is the subscriber name of its
	// cursors and the Origin of every change it causes.
	Name() string

	// Collections lists the collections the trigger subscribes to.
	Collections() []model.Collection

	// Match reports whether the trigger handles the event.
	Match(ev model.ChangeEvent) bool

	// Handle processes a matched event. ctx carries the trigger's Cause.
	Handle(ctx context.Context, ev model.ChangeEvent) error

	// Writes reports whether Handle mutates entities. Writing triggers
	// are subject to cycle avoidance.
	Writes() bool
}

// Coordinator is the write surface the writing triggers use.
// Implemented by coordinator.Coordinator.
type Coordinator interface {
	RollbackEnrollment(ctx context.Context, enrollmentID, reason string) error
	RefreshStudent(ctx context.Context, studentID string) (bool, error)
	Ceiling() int
}

// Notifier delivers risk alerts. Implemented by the notify package.
type Notifier interface {
	Notify(ctx context.Context, alert model.RiskAlert) error
}

// Recorder observes engine activity. Implemented by metrics.Metrics.
type Recorder interface {
	ObserveTrigger(trigger string, collection model.Collection, result string, d time.Duration)
	ObserveCursor(trigger string, collection model.Collection, seq int64)
	ObserveRiskAlert(level model.RiskLevel)
	ObserveRollback()
}

type nopRecorder struct{}

func (nopRecorder) ObserveTrigger(string, model.Collection, string, time.Duration) {}
func (nopRecorder) ObserveCursor(string, model.Collection, int64) {}
func (nopRecorder) ObserveRiskAlert(model.RiskLevel) {}
func (nopRecorder) ObserveRollback() {}

// Processing results reported to the Recorder.
const (
	ResultHandled = "handled"
	ResultIgnored = "ignored"
	ResultSelf    = "self"
	ResultCycle   = "cycle"
	ResultDepth   = "depth"
	ResultFailed  = "failed"
)

// Defaults returns the standard trigger set in registration order.
func Defaults(s *store.Store, c Coordinator, n Notifier, r Recorder) []Trigger {
	return []Trigger{
		NewAuditTrigger(s),
		NewRiskTrigger(n, r),
		NewCreditPropagationTrigger(c),
		NewCapacityTrigger(s, c, r),
		NewGradeHistoryTrigger(s),
	}
}
