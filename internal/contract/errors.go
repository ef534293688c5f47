package contract

import (
	"errors"
	"fmt"

	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// ErrUnknownOperation indicates a method name with no operation behind it.
var ErrUnknownOperation = errors.New("unknown operation")

// APIError is the error shape returned to clients.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain and ledger errors to API codes. It returns nil for
// errors that have no public code.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	msg := errs.MessageOf(err)
	switch {
	case errors.Is(err, ErrUnknownOperation):
		return &APIError{Code: "UNKNOWN_OPERATION", Message: err.Error(), RecoveryHint: "Check the operation name"}
	case errors.Is(err, errs.ErrInvalidArgument):
		return &APIError{Code: "INVALID_ARGUMENT", Message: msg, RecoveryHint: "Fix the request payload"}
	case errors.Is(err, errs.ErrNotFound):
		return &APIError{Code: "NOT_FOUND", Message: msg, RecoveryHint: "Check ID spelling"}
	case errors.Is(err, errs.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: msg, RecoveryHint: "Reload the asset or order and reconcile"}
	case errors.Is(err, errs.ErrInvalidState):
		return &APIError{Code: "INVALID_STATE", Message: msg, RecoveryHint: "Check the order status"}
	case errors.Is(err, errs.ErrInsufficientInventory):
		return &APIError{Code: "INSUFFICIENT_INVENTORY", Message: msg, RecoveryHint: "Add licenses or reduce the amount"}
	case errors.Is(err, errs.ErrIntegrityMismatch):
		return &APIError{Code: "INTEGRITY_MISMATCH", Message: msg, RecoveryHint: "Submit the record exactly as committed"}
	case errors.Is(err, errs.ErrUnauthorized):
		return &APIError{Code: "UNAUTHORIZED", Message: msg, RecoveryHint: "Use an identity allowed to perform this operation"}
	case errors.Is(err, ledger.ErrMVCCConflict):
		return &APIError{Code: "MVCC_READ_CONFLICT", Message: err.Error(), RecoveryHint: "Resubmit the transaction"}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
