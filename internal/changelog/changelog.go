// Package changelog delivers the store's change log to subscribers as an
// ordered, restartable event sequence.
//
// The log itself is written by the store inside each committing
// transaction; this package only reads it. A subscription is a range-over
// iterator:
//
//	for ev, err := range log.Subscribe(ctx, model.CollectionEnrollment, cursor) {
//	    if err != nil {
//	        // transient read failure; continue to retry, break to stop
//	        continue
//	    }
//	    handle(ev)
//	    cursor = ev.Seq
//	}
//
// Delivery is ordered by seq within a collection. Restarting from a saved
// cursor redelivers everything after it, so consumers see each event at
// least once.
package changelog

import (
	"context"
	"iter"
	"time"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// Defaults for subscription polling.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultBatchSize    = 100
)

// Log reads the change log of a store.
//
// Thread-safety: a Log is safe for concurrent use; each Subscribe call
// returns an independent iterator.
type Log struct {
	store        *store.Store
	pollInterval time.Duration
	batchSize    int
}

// Option configures a Log.
type Option func(*Log)

// WithPollInterval sets how long a caught-up subscription waits before
// re-reading the log when no commit signal arrives. It is also the retry
// delay after a read error.
func WithPollInterval(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithBatchSize sets how many events one read fetches.
func WithBatchSize(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// New creates a Log over the given store.
func New(s *store.Store, opts ...Option) *Log {
	l := &Log{
		store:        s,
		pollInterval: DefaultPollInterval,
		batchSize:    DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BatchSize returns the configured read batch size.
func (l *Log) BatchSize() int {
	return l.batchSize
}

// Read returns up to limit events of a collection after the given seq.
// A non-positive limit uses the batch size.
func (l *Log) Read(ctx context.Context, collection model.Collection, after int64, limit int) ([]model.ChangeEvent, error) {
	if limit <= 0 {
		limit = l.batchSize
	}
	return l.store.ReadChanges(ctx, collection, after, limit)
}

// Subscribe returns the events of a collection with seq > from, in seq
// order, followed by every event committed later.
//
// The sequence ends when ctx is done or the consumer stops iterating. A
// failed read yields a zero event with the error; if the consumer keeps
// iterating, the read is retried after the poll interval from the last
// delivered position.
func (l *Log) Subscribe(ctx context.Context, collection model.Collection, from int64) iter.Seq2[model.ChangeEvent, error] {
	return func(yield func(model.ChangeEvent, error) bool) {
		// Register before the first read so a commit racing with it
		// still leaves a pending signal.
		signal, cancel := l.store.Watch()
		defer cancel()

		ticker := time.NewTicker(l.pollInterval)
		defer ticker.Stop()

		pos := from
		for ctx.Err() == nil {
			batch, err := l.store.ReadChanges(ctx, collection, pos, l.batchSize)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !yield(model.ChangeEvent{}, err) {
					return
				}
				if !wait(ctx, ticker.C, nil) {
					return
				}
				continue
			}

			for _, ev := range batch {
				if !yield(ev, nil) {
					return
				}
				pos = ev.Seq
			}
			if len(batch) == l.batchSize {
				continue
			}
			if !wait(ctx, ticker.C, signal) {
				return
			}
		}
	}
}

// wait blocks until a tick, a commit signal or ctx is done. It reports
// false when ctx ended the wait.
func wait(ctx context.Context, tick <-chan time.Time, signal <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-tick:
		return true
	case <-signal:
		return true
	}
}
