package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// CapacityMode selects where the admission ceiling is enforced.
type CapacityMode string

const (
	// CapacityHard checks the seat reservation counter inside EnrollBatch;
	// an over-ceiling batch fails with CapacityExceeded.
	CapacityHard CapacityMode = "hard"
	// CapacitySoft admits every enrollment and leaves enforcement to the
	// capacity trigger, which rolls back overbooked enrollments after commit.
	CapacitySoft CapacityMode = "soft"
)

// ParseCapacityMode validates a capacity mode name.
func ParseCapacityMode(s string) (CapacityMode, error) {
	switch CapacityMode(s) {
	case CapacityHard, CapacitySoft:
		return CapacityMode(s), nil
	default:
		return "", fmt.Errorf("unknown capacity mode %q (want hard or soft)", s)
	}
}

// Default retry policy for aborted transactions.
const (
	DefaultAbortRetries = 3
	DefaultRetryBackoff = 20 * time.Millisecond
)

// Recorder observes operation outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	ObserveOperation(op, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}

// Coordinator runs the registrar's transactional operations.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// operations are serialized by the store.
type Coordinator struct {
	store        *store.Store
	ids          IDGenerator
	validate     *validator.Validate
	recorder     Recorder
	logger       *slog.Logger
	ceiling      int
	mode         CapacityMode
	abortRetries int
	backoff      time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCeiling sets the admission ceiling per (course, period).
// Default: 30 (rules.DefaultCeiling).
func WithCeiling(n int) Option {
	return func(c *Coordinator) {
		c.ceiling = n
	}
}

// WithCapacityMode selects hard or soft capacity enforcement.
// Default: CapacityHard.
func WithCapacityMode(m CapacityMode) Option {
	return func(c *Coordinator) {
		c.mode = m
	}
}

// WithIDGenerator sets the generator for enrollment ids and flow tokens.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) {
		c.ids = g
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithAbortRetries sets how many times an operation aborted by the store
// is retried before TransactionAborted reaches the caller, and the base
// backoff between attempts. The backoff doubles per attempt.
func WithAbortRetries(n int, backoff time.Duration) Option {
	return func(c *Coordinator) {
		c.abortRetries = n
		c.backoff = backoff
	}
}

// New creates a Coordinator over the given store.
func New(s *store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        s,
		ids:          UUIDv7Generator{},
		validate:     newValidator(),
		recorder:     nopRecorder{},
		logger:       slog.Default(),
		ceiling:      rules.DefaultCeiling,
		mode:         CapacityHard,
		abortRetries: DefaultAbortRetries,
		backoff:      DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ceiling returns the configured admission ceiling.
func (c *Coordinator) Ceiling() int {
	return c.ceiling
}

// Mode returns the configured capacity mode.
func (c *Coordinator) Mode() CapacityMode {
	return c.mode
}

// withFlow makes sure ctx carries a cause with a flow token. External
// calls get a fresh flow at depth 0; trigger calls keep theirs.
func (c *Coordinator) withFlow(ctx context.Context) (context.Context, model.Cause) {
	cause, _ := model.CauseFrom(ctx)
	if cause.Flow == "" {
		cause.Flow = c.ids.Generate()
		ctx = model.WithCause(ctx, cause)
	}
	return ctx, cause
}

// run executes fn as one store transaction, retrying aborted attempts.
// fn may run more than once, so it must assign its results afresh on
// every call.
func (c *Coordinator) run(ctx context.Context, op string, fn func(ctx context.Context, tx *store.Tx) error) error {
	ctx, cause := c.withFlow(ctx)
	start := time.Now()

	var err error
	for attempt := 0; ; attempt++ {
		err = c.store.Update(ctx, func(tx *store.Tx) error {
			return fn(ctx, tx)
		})
		if !model.Retryable(err) || attempt >= c.abortRetries {
			break
		}

		delay := c.backoff << attempt
		c.logger.Warn("transaction aborted, retrying",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if !sleep(ctx, delay) {
			break
		}
	}

	outcome := "ok"
	if err != nil {
		outcome = string(model.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
		c.logger.Debug("operation failed",
			"op", op,
			"flow", cause.Flow,
			"origin", cause.Origin,
			"error", err)
	}
	c.recorder.ObserveOperation(op, outcome, time.Since(start))
	return err
}

// sleep waits for d or until ctx is done, reporting whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// restate reconciles a student's completed list with its enrollments,
// re-derives GPA and credits, and saves the student if anything changed.
func restate(ctx context.Context, tx *store.Tx, studentID string) (before, after model.Student, err error) {
	before, err = tx.StudentByID(ctx, studentID)
	if err != nil {
		return model.Student{}, model.Student{}, err
	}
	views, err := tx.StudentEnrollments(ctx, studentID)
	if err != nil {
		return model.Student{}, model.Student{}, err
	}

	after = before
	after.Completed = rules.Reconcile(before.Completed, views)
	rules.DeriveFromEnrollments(after.Completed, views).Apply(&after)

	if err := tx.SaveStudent(ctx, before, after); err != nil {
		return model.Student{}, model.Student{}, err
	}
	return before, after, nil
}
