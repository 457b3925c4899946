package model

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a registrar error.
type Code string

const (
	// NotFound means a referenced entity is absent.
	NotFound Code = "NOT_FOUND"
	// DuplicateEnrollment means the (student, course, period) triple exists.
	DuplicateEnrollment Code = "DUPLICATE_ENROLLMENT"
	// InvalidStateTransition means the source state may not move to the target.
	InvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	// CapacityExceeded means the admission ceiling was hit.
	CapacityExceeded Code = "CAPACITY_EXCEEDED"
	// InsufficientCredits means a graduation requirement is unmet.
	InsufficientCredits Code = "INSUFFICIENT_CREDITS"
	// TransactionAborted means the store hit a conflict or timeout.
	// The operation left no trace and is safe to retry.
	TransactionAborted Code = "TRANSACTION_ABORTED"
	// InvalidArgument means the request itself is malformed.
	InvalidArgument Code = "INVALID_ARGUMENT"
)

// Error is a registrar error with a machine-readable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether the failed operation may be resubmitted as is.
func Retryable(err error) bool {
	return IsCode(err, TransactionAborted)
}
