package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type
type ErrorCode string

const (
	// Ledger errors
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrInvalidAmount       ErrorCode = "INVALID_AMOUNT"

	// Daily gate errors
	ErrAlreadyCompletedToday ErrorCode = "ALREADY_COMPLETED_TODAY"
	ErrAlreadySpunToday      ErrorCode = "ALREADY_SPUN_TODAY"
	ErrUnknownChallenge      ErrorCode = "UNKNOWN_CHALLENGE"
	ErrDebugDisabled         ErrorCode = "DEBUG_DISABLED"

	// Catalog and input errors
	ErrInvalidCatalog  ErrorCode = "INVALID_CATALOG"
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// System errors
	ErrClockFault    ErrorCode = "CLOCK_FAULT"
	ErrStorageError  ErrorCode = "STORAGE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// EngineError represents an eBucks engine error
type EngineError struct {
	Code    ErrorCode
	Message string
	Err     error // Underlying error, if any
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error in an EngineError
func WrapError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsEngineError checks if an error is an EngineError and has a specific code
func IsEngineError(err error, code ErrorCode) bool {
	var engineErr *EngineError
	if !As(err, &engineErr) {
		return false
	}
	return engineErr.Code == code
}

// CodeOf returns the code of the outermost EngineError in the chain, or
// ErrInternalError when there is none.
func CodeOf(err error) ErrorCode {
	var engineErr *EngineError
	if !As(err, &engineErr) {
		return ErrInternalError
	}
	return engineErr.Code
}

// As finds the first EngineError in err's chain
func As(err error, target **EngineError) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.As(err, target)
}
