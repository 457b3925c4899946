package model

import "context"

// Cause describes why a mutation happens. It is persisted on every change
// event the mutation emits.
//
// External requests carry an empty Origin and Depth 0. A trigger writing
// through the coordinator sets Origin to its own name and Depth to the
// triggering event's depth plus one. Flow groups all mutations caused by
// one external request.
type Cause struct {
	Origin string
	Reason string
	Flow   string
	Depth  int
}

type causeKey struct{}

// WithCause returns a context carrying c.
func WithCause(ctx context.Context, c Cause) context.Context {
	return context.WithValue(ctx, causeKey{}, c)
}

// CauseFrom returns the cause carried by ctx, if any.
func CauseFrom(ctx context.Context) (Cause, bool) {
	c, ok := ctx.Value(causeKey{}).(Cause)
	return c, ok
}
