package repository

import "errors"

var (
	// ErrNotFound indicates the key or entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a key read by the transaction was modified before commit.
	ErrConflict = errors.New("conflict: key was modified by another transaction")

	// ErrInvalidInput indicates the batch or query was malformed.
	ErrInvalidInput = errors.New("invalid input")
)
