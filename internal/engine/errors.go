package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure detected while processing a change event.
//
// Engine errors include:
//   - Cycle detection: the same effect would be handled twice in a flow
//   - Depth exceeded: a cascade reached the maximum depth
//   - Handler failure: a trigger returned an error
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Trigger names the trigger that was processing the event.
	Trigger string

	// Flow identifies the affected flow.
	Flow string

	// Seq is the change event being processed.
	Seq int64

	// Err is the underlying handler error, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeCycleDetected indicates an identical effect repeated in a flow.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeDepthExceeded indicates a cascade reached the depth limit.
	ErrCodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeHandlerFailed indicates a trigger handler returned an error.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (trigger=%s, seq=%d)", e.Code, e.Message, e.Trigger, e.Seq)
	if e.Flow != "" {
		msg = fmt.Sprintf("%s: %s (trigger=%s, seq=%d, flow=%s)", e.Code, e.Message, e.Trigger, e.Seq, e.Flow)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the handler error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeCycleDetected
	}
	return false
}

// IsDepthError returns true if the error is a depth limit error.
// Matches both Error with ErrCodeDepthExceeded and a bare DepthExceededError.
func IsDepthError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeDepthExceeded
	}
	var de *DepthExceededError
	return errors.As(err, &de)
}

// IsHandlerError returns true if a trigger handler failed.
func IsHandlerError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeHandlerFailed
	}
	return false
}

// NewCycleError creates an Error for a skipped repeat.
func NewCycleError(trigger, flow string, seq int64) *Error {
	return &Error{
		Code:    ErrCodeCycleDetected,
		Message: "identical effect already handled in flow",
		Trigger: trigger,
		Flow:    flow,
		Seq:     seq,
	}
}

// NewDepthError creates an Error for an event skipped at the depth limit.
// The quota's DepthExceededError stays reachable through Unwrap.
func NewDepthError(trigger, flow string, seq int64, err error) *Error {
	return &Error{
		Code:    ErrCodeDepthExceeded,
		Message: "cascade depth limit reached",
		Trigger: trigger,
		Flow:    flow,
		Seq:     seq,
		Err:     err,
	}
}

// NewHandlerError wraps a trigger failure.
func NewHandlerError(trigger, flow string, seq int64, err error) *Error {
	return &Error{
		Code:    ErrCodeHandlerFailed,
		Message: "trigger handler failed",
		Trigger: trigger,
		Flow:    flow,
		Seq:     seq,
		Err:     err,
	}
}
