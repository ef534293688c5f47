// Package errs defines the error kinds every ledger operation reports.
package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrInvalidArgument indicates malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a referenced asset, order or license does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation would violate an inventory or state invariant.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState indicates an illegal order status transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientInventory indicates too few available licenses.
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrIntegrityMismatch indicates a cross-partition hash check failed.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrUnauthorized indicates the caller may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
)

var kinds = []error{
	ErrInvalidArgument,
	ErrNotFound,
	ErrConflict,
	ErrInvalidState,
	ErrInsufficientInventory,
	ErrIntegrityMismatch,
	ErrUnauthorized,
}

// Error carries a kind and a message naming the offending ids.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) error {
	return newf(ErrInvalidArgument, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newf(ErrConflict, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newf(ErrInvalidState, format, args...)
}

func InsufficientInventory(format string, args ...any) error {
	return newf(ErrInsufficientInventory, format, args...)
}

func IntegrityMismatch(format string, args ...any) error {
	return newf(ErrIntegrityMismatch, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newf(ErrUnauthorized, format, args...)
}

// KindOf returns the kind of err, or nil when err carries none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// MessageOf returns the human-readable part of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
