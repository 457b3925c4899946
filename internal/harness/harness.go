package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/registrar/internal/catalog"
	"github.com/roach88/registrar/internal/coordinator"
	"github.com/roach88/registrar/internal/engine"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
	"github.com/roach88/registrar/internal/testutil"
)

const traceBatch = 500

// Harness executes one scenario against its own store.
type Harness struct {
	store  *store.Store
	coord  *coordinator.Coordinator
	engine *engine.Engine
	alerts *alertCollector
	logger *slog.Logger

	// bindings maps scenario names to enrollment ids.
	bindings map[string]string
	// labels maps entity ids to codes or binding names for the trace.
	labels map[string]string
}

// alertCollector is the harness notifier.
type alertCollector struct {
	mu     sync.Mutex
	alerts []model.RiskAlert
}

func (c *alertCollector) Notify(_ context.Context, a model.RiskAlert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *alertCollector) list() []model.RiskAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.alerts)
}

// outcome is what a successful step reports for its expect clause.
type outcome struct {
	state   string
	gpa     model.Grade
	credits int
}

// Run executes a scenario and returns the result.
//
// The scenario runs in a fresh in-memory store seeded from its catalog.
// Ids come from a sequence generator and the clock is fixed, so two runs
// produce identical traces. The trigger engine is drained after every
// write and once more before the assertions are evaluated.
//
// A returned error means the scenario could not be executed; failed
// expectations and assertions are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat, err := loadCatalog(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithClock(testutil.Fixed(testutil.Epoch)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if _, err := catalog.Apply(ctx, st, cat); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	h, err := newHarness(st, cat, scenario.Options)
	if err != nil {
		return nil, err
	}

	if err := h.engine.Drain(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain seed events: %w", err)
	}
	seedSeq, err := lastSeq(ctx, st)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, err
		}
	}
	if err := h.engine.Drain(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain: %w", err)
	}

	if result.Trace, err = h.trace(ctx, seedSeq); err != nil {
		return nil, err
	}
	result.Alerts = h.alerts.list()

	actx := &AssertionContext{Ctx: ctx, Store: st, Bindings: h.bindings}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func loadCatalog(s *Scenario) (*catalog.Catalog, error) {
	var (
		cat  *catalog.Catalog
		errs []error
	)
	if s.Catalog != "" {
		cat, errs = catalog.Load(s.Catalog)
	} else {
		cat, errs = catalog.Parse(s.Name+".cue", []byte(s.CatalogSource))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return cat, nil
}

func newHarness(st *store.Store, cat *catalog.Catalog, opts Options) (*Harness, error) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	copts := []coordinator.Option{
		coordinator.WithIDGenerator(testutil.NewSequenceGenerator("id")),
		coordinator.WithLogger(quiet),
	}
	if opts.Ceiling > 0 {
		copts = append(copts, coordinator.WithCeiling(opts.Ceiling))
	}
	if opts.CapacityMode != "" {
		mode, err := coordinator.ParseCapacityMode(opts.CapacityMode)
		if err != nil {
			return nil, err
		}
		copts = append(copts, coordinator.WithCapacityMode(mode))
	}
	coord := coordinator.New(st, copts...)

	eopts := []engine.Option{engine.WithLogger(quiet)}
	if opts.MaxDepth > 0 {
		eopts = append(eopts, engine.WithMaxDepth(opts.MaxDepth))
	}
	eng := engine.New(st, eopts...)
	alerts := &alertCollector{}
	if err := eng.Register(engine.Defaults(st, coord, alerts, nil)...); err != nil {
		return nil, err
	}

	labels := make(map[string]string)
	for _, p := range cat.Programs {
		labels[p.ID] = p.Code
	}
	for _, c := range cat.Courses {
		labels[c.ID] = c.Code
	}
	for _, p := range cat.Professors {
		labels[p.ID] = p.Code
	}
	for _, s := range cat.Students {
		labels[s.ID] = s.Code
	}

	return &Harness{
		store:    st,
		coord:    coord,
		engine:   eng,
		alerts:   alerts,
		logger:   quiet,
		bindings: make(map[string]string),
		labels:   labels,
	}, nil
}

// execute runs one flow step, checks its expect clause and drains the
// engine.
func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	if step.Op == OpDrain {
		if err := h.engine.Drain(ctx); err != nil {
			return fmt.Errorf("flow[%d]: drain: %w", i, err)
		}
		return nil
	}

	got, err := h.apply(ctx, step)
	h.check(i, step, got, err, result)
	h.logger.Info("flow step completed", "step", i, "op", step.Op, "error", err)

	if err := h.engine.Drain(ctx); err != nil {
		return fmt.Errorf("flow[%d]: drain: %w", i, err)
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, step Step) (outcome, error) {
	switch step.Op {
	case OpEnroll:
		res, err := h.coord.EnrollBatch(ctx, coordinator.EnrollRequest{
			StudentCode: step.Student,
			CourseCodes: step.Courses,
			Period:      step.Period,
		})
		if err != nil {
			return outcome{}, err
		}
		for j, id := range res.EnrollmentIDs {
			if j < len(step.As) {
				h.bindings[step.As[j]] = id
				h.labels[id] = step.As[j]
			}
		}
		return h.studentOutcome(ctx, step.Student)

	case OpGrade:
		grade, err := model.ParseGrade(step.Grade)
		if err != nil {
			return outcome{}, err
		}
		res, err := h.coord.RecordGrade(ctx, h.enrollmentID(step.Enrollment), grade)
		if err != nil {
			return outcome{}, err
		}
		return outcome{state: string(res.State), gpa: res.GPA, credits: res.Credits}, nil

	case OpWithdraw:
		id := h.enrollmentID(step.Enrollment)
		if err := h.coord.WithdrawCourse(ctx, id); err != nil {
			return outcome{}, err
		}
		e, err := h.store.Enrollment(ctx, id)
		if err != nil {
			return outcome{}, err
		}
		var st model.Student
		err = h.store.View(ctx, func(tx *store.Tx) error {
			st, err = tx.StudentByID(ctx, e.StudentID)
			return err
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{state: string(e.State), gpa: st.GPA, credits: st.Credits}, nil

	case OpGraduate:
		if err := h.coord.GraduateStudent(ctx, step.Student); err != nil {
			return outcome{}, err
		}
		return h.studentOutcome(ctx, step.Student)
	}
	return outcome{}, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) studentOutcome(ctx context.Context, code string) (outcome, error) {
	st, err := h.store.Student(ctx, code)
	if err != nil {
		return outcome{}, err
	}
	return outcome{state: string(st.State), gpa: st.GPA, credits: st.Credits}, nil
}

// enrollmentID resolves a binding name; unknown names are used as ids.
func (h *Harness) enrollmentID(name string) string {
	if id, ok := h.bindings[name]; ok {
		return id
	}
	return name
}

func (h *Harness) check(i int, step Step, got outcome, err error, result *Result) {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}
	prefix := fmt.Sprintf("flow[%d] %s", i, step.Op)

	if exp.Error != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("%s: expected error %s, got success", prefix, exp.Error))
		case string(model.CodeOf(err)) != exp.Error:
			result.AddError(fmt.Sprintf("%s: expected error %s, got %v", prefix, exp.Error, err))
		}
		return
	}
	if err != nil {
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
		return
	}

	if exp.State != "" && exp.State != got.state {
		result.AddError(fmt.Sprintf("%s: expected state %s, got %s", prefix, exp.State, got.state))
	}
	if exp.GPA != "" {
		want, perr := model.ParseGrade(exp.GPA)
		if perr != nil {
			result.AddError(fmt.Sprintf("%s: %v", prefix, perr))
		} else if want != got.gpa {
			result.AddError(fmt.Sprintf("%s: expected gpa %s, got %s", prefix, want, got.gpa))
		}
	}
	if exp.Credits != nil && *exp.Credits != got.credits {
		result.AddError(fmt.Sprintf("%s: expected credits %d, got %d", prefix, *exp.Credits, got.credits))
	}
}

// trace reads every event after seq from all collections, in seq order.
func (h *Harness) trace(ctx context.Context, after int64) ([]TraceEvent, error) {
	var events []model.ChangeEvent
	for _, c := range model.Collections() {
		cursor := after
		for {
			batch, err := h.store.ReadChanges(ctx, c, cursor, traceBatch)
			if err != nil {
				return nil, fmt.Errorf("read trace: %w", err)
			}
			events = append(events, batch...)
			if len(batch) < traceBatch {
				break
			}
			cursor = batch[len(batch)-1].Seq
		}
	}
	slices.SortFunc(events, func(a, b model.ChangeEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	out := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		entity := ev.EntityID
		if label, ok := h.labels[entity]; ok {
			entity = label
		}
		out = append(out, TraceEvent{
			Seq:        ev.Seq,
			Collection: string(ev.Collection),
			Op:         string(ev.Op),
			Entity:     entity,
			Changed:    ev.Changed,
			Origin:     ev.Origin,
			Reason:     ev.Reason,
			Depth:      ev.Depth,
		})
	}
	return out, nil
}

func lastSeq(ctx context.Context, st *store.Store) (int64, error) {
	var last int64
	for _, c := range model.Collections() {
		seq, err := st.LastSeq(ctx, c)
		if err != nil {
			return 0, err
		}
		last = max(last, seq)
	}
	return last, nil
}
