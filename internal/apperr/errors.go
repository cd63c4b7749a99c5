// Package apperr defines the error taxonomy shared by the store and its surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrCapabilityDisabled = errors.New("capability disabled")
	ErrLifecycleViolation = errors.New("lifecycle violation")
	ErrAlreadyExists      = errors.New("already exists")
)

// Error carries the failing operation and, when known, the normalized model
// name. It unwraps to one of the package sentinels so callers can branch with
// errors.Is.
type Error struct {
	// Op is the public operation that failed, e.g. "modelFor".
	Op string

	// Model is the (normalized) model name involved, if any.
	Model string

	// Msg is a human-readable description.
	Msg string

	// Err is the sentinel category.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Model != "" && e.Msg != "":
		return fmt.Sprintf("store.%s: %s '%s': %v", e.Op, e.Msg, e.Model, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("store.%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Model != "":
		return fmt.Sprintf("store.%s '%s': %v", e.Op, e.Model, e.Err)
	}
	return fmt.Sprintf("store.%s: %v", e.Op, e.Err)
}

// Unwrap returns the sentinel category.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds an ErrNotFound error for op and model.
func NotFound(op, model string) *Error {
	return &Error{Op: op, Model: model, Msg: "no model was found for", Err: ErrNotFound}
}

// InvalidArgument builds an ErrInvalidArgument error for op.
func InvalidArgument(op, msg string) *Error {
	return &Error{Op: op, Msg: msg, Err: ErrInvalidArgument}
}

// CapabilityDisabled builds an ErrCapabilityDisabled error for op.
func CapabilityDisabled(op, msg string) *Error {
	return &Error{Op: op, Msg: msg, Err: ErrCapabilityDisabled}
}

// LifecycleViolation builds an ErrLifecycleViolation error for op.
func LifecycleViolation(op, msg string) *Error {
	return &Error{Op: op, Msg: msg, Err: ErrLifecycleViolation}
}

// OpOf returns the operation recorded on err, or "" when err carries none.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// ModelOf returns the model name recorded on err, or "".
func ModelOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Model
	}
	return ""
}
