package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/registrar/internal/changelog"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// DefaultRetryDelay is how long a subscription waits after a handler
// failure before resuming from its durable cursor.
const DefaultRetryDelay = time.Second

// Engine dispatches change events to triggers.
//
// Thread-safety model:
//   - Register(): before Run or Drain only
//   - Run(): call once; blocks until ctx is done
//   - Drain(): safe to call repeatedly, never concurrently with Run
type Engine struct {
	store      *store.Store
	log        *changelog.Log
	triggers   []Trigger
	names      map[string]bool
	guard      *CycleGuard
	quota      *DepthQuota
	recorder   Recorder
	logger     *slog.Logger
	retryDelay time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithChangeLog sets the change log reader. Default: changelog.New(store).
func WithChangeLog(l *changelog.Log) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMaxDepth sets the maximum cascade depth.
//
// Default: 8 (DefaultMaxDepth)
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.quota = NewDepthQuota(n)
	}
}

// WithRetryDelay sets the wait after a handler failure.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.retryDelay = d
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given store.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		names:      make(map[string]bool),
		guard:      NewCycleGuard(DefaultGuardFlows),
		quota:      NewDepthQuota(DefaultMaxDepth),
		recorder:   nopRecorder{},
		logger:     slog.Default(),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = changelog.New(s)
	}
	return e
}

// Register adds triggers. Names must be unique.
func (e *Engine) Register(triggers ...Trigger) error {
	for _, t := range triggers {
		if t.Name() == "" {
			return fmt.Errorf("register trigger: empty name")
		}
		if e.names[t.Name()] {
			return fmt.Errorf("register trigger: duplicate name %q", t.Name())
		}
		if len(t.Collections()) == 0 {
			return fmt.Errorf("register trigger %s: no collections", t.Name())
		}
		e.names[t.Name()] = true
		e.triggers = append(e.triggers, t)
	}
	return nil
}

// Triggers returns the registered triggers in registration order.
func (e *Engine) Triggers() []Trigger {
	return append([]Trigger(nil), e.triggers...)
}

// Run consumes the change log until ctx is done, one goroutine per
// (trigger, collection) subscription. It returns nil after ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	if len(e.triggers) == 0 {
		return fmt.Errorf("run engine: no triggers registered")
	}

	var wg sync.WaitGroup
	for _, t := range e.triggers {
		for _, c := range t.Collections() {
			wg.Add(1)
			go func(t Trigger, c model.Collection) {
				defer wg.Done()
				e.subscribe(ctx, t, c)
			}(t, c)
		}
	}

	e.logger.Info("trigger engine started", "triggers", len(e.triggers))
	wg.Wait()
	e.logger.Info("trigger engine stopped")
	return nil
}

// subscribe follows one subscription, restarting from the durable cursor
// after every failure until ctx is done.
func (e *Engine) subscribe(ctx context.Context, t Trigger, c model.Collection) {
	for ctx.Err() == nil {
		err := e.follow(ctx, t, c)
		if err == nil || ctx.Err() != nil {
			return
		}
		e.logger.Error("subscription failed",
			"trigger", t.Name(),
			"collection", c,
			"retry_in", e.retryDelay,
			"error", err)

		timer := time.NewTimer(e.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (e *Engine) follow(ctx context.Context, t Trigger, c model.Collection) error {
	cursor, err := e.store.Cursor(ctx, t.Name(), c)
	if err != nil {
		return err
	}

	for ev, err := range e.log.Subscribe(ctx, c, cursor) {
		if err != nil {
			e.logger.Warn("change log read failed",
				"trigger", t.Name(),
				"collection", c,
				"error", err)
			continue
		}
		if err := e.step(ctx, t, ev); err != nil {
			return err
		}
	}
	return nil
}

// Drain processes every pending event of every subscription, repeating
// until a full pass over all subscriptions makes no progress. Handler
// writes made during the drain are themselves drained. It stops at the
// first handler failure, leaving that subscription's cursor before the
// failed event.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		progress := false
		for _, t := range e.triggers {
			for _, c := range t.Collections() {
				n, err := e.drainOne(ctx, t, c)
				if err != nil {
					return err
				}
				if n > 0 {
					progress = true
				}
			}
		}
		if !progress {
			return nil
		}
	}
}

func (e *Engine) drainOne(ctx context.Context, t Trigger, c model.Collection) (int, error) {
	cursor, err := e.store.Cursor(ctx, t.Name(), c)
	if err != nil {
		return 0, err
	}

	n := 0
	for {
		batch, err := e.log.Read(ctx, c, cursor, 0)
		if err != nil {
			return n, err
		}
		if len(batch) == 0 {
			return n, nil
		}
		for _, ev := range batch {
			if err := e.step(ctx, t, ev); err != nil {
				return n, err
			}
			cursor = ev.Seq
			n++
		}
	}
}

// step processes one event and advances the cursor past it.
func (e *Engine) step(ctx context.Context, t Trigger, ev model.ChangeEvent) error {
	start := time.Now()
	result, err := e.process(ctx, t, ev)
	e.recorder.ObserveTrigger(t.Name(), ev.Collection, result, time.Since(start))
	if err != nil {
		e.logger.Error("trigger failed",
			"trigger", t.Name(),
			"collection", ev.Collection,
			"seq", ev.Seq,
			"flow", ev.Flow,
			"error", err)
		return err
	}

	if err := e.store.SaveCursor(ctx, t.Name(), ev.Collection, ev.Seq); err != nil {
		return fmt.Errorf("save cursor %s/%s: %w", t.Name(), ev.Collection, err)
	}
	e.recorder.ObserveCursor(t.Name(), ev.Collection, ev.Seq)
	return nil
}

// process runs the cycle checks and the handler for one event.
func (e *Engine) process(ctx context.Context, t Trigger, ev model.ChangeEvent) (string, error) {
	if !t.Match(ev) {
		return ResultIgnored, nil
	}

	var fingerprint string
	if t.Writes() {
		if ev.Origin == t.Name() {
			return ResultSelf, nil
		}
		if err := e.quota.Check(ev.Flow, ev.Depth); err != nil {
			e.logger.Warn("cascade depth limit reached",
				"trigger", t.Name(),
				"seq", ev.Seq,
				"flow", ev.Flow,
				"error", NewDepthError(t.Name(), ev.Flow, ev.Seq, err))
			return ResultDepth, nil
		}
		fp, err := model.Fingerprint(ev)
		if err != nil {
			return ResultFailed, NewHandlerError(t.Name(), ev.Flow, ev.Seq, err)
		}
		if e.guard.Seen(ev.Flow, t.Name(), ev.EntityID, fp) {
			e.logger.Debug("repeat skipped",
				"trigger", t.Name(),
				"seq", ev.Seq,
				"error", NewCycleError(t.Name(), ev.Flow, ev.Seq))
			return ResultCycle, nil
		}
		fingerprint = fp
	}

	hctx := model.WithCause(ctx, model.Cause{
		Origin: t.Name(),
		Flow:   ev.Flow,
		Depth:  ev.Depth + 1,
	})
	if err := t.Handle(hctx, ev); err != nil {
		return ResultFailed, NewHandlerError(t.Name(), ev.Flow, ev.Seq, err)
	}

	if t.Writes() {
		e.guard.Record(ev.Flow, t.Name(), ev.EntityID, fingerprint)
	}
	e.logger.Debug("event handled",
		"trigger", t.Name(),
		"collection", ev.Collection,
		"seq", ev.Seq,
		"flow", ev.Flow)
	return ResultHandled, nil
}
