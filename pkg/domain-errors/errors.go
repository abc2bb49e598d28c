// Package dErrors provides coded domain errors for the transfer workflow.
//
// Services return these so transports can map a stable code to a status line
// without parsing message text. Stores do not use this package; they return
// pkg/platform/sentinel values which services translate here.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure.
type Code string

const (
	// CodeUnauthorized means the actor lacks the role or office required for
	// the operation.
	CodeUnauthorized Code = "unauthorized"

	// CodeInvalidInput covers malformed or missing required input.
	CodeInvalidInput Code = "invalid_input"

	// CodeInvalidOffice means a referenced office is unknown to the directory.
	CodeInvalidOffice Code = "invalid_office"

	// CodeSameOffice means origin and destination offices are identical.
	CodeSameOffice Code = "same_office"

	// CodeActiveTransferExists means a non-terminal transfer already exists
	// for the family.
	CodeActiveTransferExists Code = "active_transfer_exists"

	// CodeNotFound means the referenced entity does not exist.
	CodeNotFound Code = "not_found"

	// CodeInvalidTransition means the requested transition is not legal from
	// the current status, including double-processing races.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeUpstreamTimeout means a directory or store call exceeded its bound.
	CodeUpstreamTimeout Code = "upstream_timeout"

	// CodeTimeout means the operation's own transaction deadline expired.
	CodeTimeout Code = "timeout"

	// CodeConflict covers uniqueness conflicts outside the transfer ledger.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation marks a broken model invariant; construction and
	// transition guards return it, services translate it outward.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal is the fallback for unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
