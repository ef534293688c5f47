package activity

import "errors"

// ErrInvalidInput indicates a missing or malformed entry.
var ErrInvalidInput = errors.New("invalid input")
