package apperrors

import (
	"errors"
	"fmt"
)

// ContractError carries a stable error code through internal call chains so
// every layer can signal a user-facing outcome via a normal error return.
type ContractError struct {
	Code          string
	Detail        string
	RetryAfterSec int
	Err           error
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	default:
		return e.Code
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ContractError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewContractError builds a contract error for the given code.
func NewContractError(code, detail string) *ContractError {
	return &ContractError{Code: code, Detail: detail}
}

// WrapContract attaches a contract code to an underlying error.
func WrapContract(code string, err error) *ContractError {
	return &ContractError{Code: code, Err: err}
}

// CodeOf extracts the contract code from an error chain, falling back to
// UNKNOWN_ERROR for unmapped failures so internal detail never leaks.
func CodeOf(err error) string {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknownError
}

// RetryAfterOf extracts a call-time retry-after hint, zero when absent.
func RetryAfterOf(err error) int {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.RetryAfterSec
	}
	return 0
}
