package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth is the default maximum cascade depth. External writes
// are depth 0; each trigger write is one deeper than its cause.
const DefaultMaxDepth = 8

// DepthQuota bounds how deep trigger cascades may go.
//
// Where the CycleGuard catches repeats of the same effect (A → B → A),
// the depth quota catches long chains of distinct effects
// (A → B → C → ... → Z). Together they guarantee termination.
type DepthQuota struct {
	maxDepth int
}

// NewDepthQuota creates a quota with the given limit.
// A non-positive limit uses DefaultMaxDepth.
func NewDepthQuota(maxDepth int) *DepthQuota {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &DepthQuota{maxDepth: maxDepth}
}

// Check returns DepthExceededError when handling an event at the given
// depth would write at or beyond the limit.
func (q *DepthQuota) Check(flow string, depth int) error {
	if depth+1 > q.maxDepth {
		return &DepthExceededError{
			Flow:  flow,
			Depth: depth,
			Limit: q.maxDepth,
		}
	}
	return nil
}

// MaxDepth returns the depth limit.
func (q *DepthQuota) MaxDepth() int {
	return q.maxDepth
}

// DepthExceededError reports a cascade cut off at the depth limit.
//
// The event is skipped rather than retried: retrying can never succeed.
type DepthExceededError struct {
	Flow  string // The flow that exceeded the quota
	Depth int    // Depth of the event that was skipped
	Limit int    // Maximum allowed depth
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("flow %s exceeded max cascade depth: event depth %d, limit %d",
		e.Flow, e.Depth, e.Limit)
}

// IsDepthExceededError returns true if the error is a DepthExceededError.
// Uses errors.As to handle wrapped errors.
func IsDepthExceededError(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}
