package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a DocCov error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrMalformedSpec    ErrorCode = "MALFORMED_SPEC"    // 422
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrRetrievalTimeout ErrorCode = "RETRIEVAL_TIMEOUT" // 504 (retryable)
)

// DocCovError represents a structured error with code, status, and details.
type DocCovError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DocCovError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the caller may retry the failed operation unchanged.
func (e *DocCovError) Retryable() bool {
	return e.Code == ErrRetrievalTimeout
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DocCovError {
	return &DocCovError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a package spec cannot be produced.
func NewNotFound(identifier string) *DocCovError {
	return &DocCovError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("spec not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewMalformedSpec creates a 422 error for a spec that fails structural validation.
// Problems lists every violation found, in document order.
func NewMalformedSpec(problems []string) *DocCovError {
	return &DocCovError{
		Code:    ErrMalformedSpec,
		Status:  422,
		Message: fmt.Sprintf("malformed spec: %v", problems),
		Details: map[string]any{"problems": problems},
	}
}

// NewRetrievalTimeout creates a 504 error when spec retrieval exceeds its bound.
func NewRetrievalTimeout(seconds int) *DocCovError {
	return &DocCovError{
		Code:    ErrRetrievalTimeout,
		Status:  504,
		Message: fmt.Sprintf("spec retrieval exceeded %ds", seconds),
		Details: map[string]any{"timeout_seconds": seconds},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DocCovError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DocCovError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is a DocCovError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DocCovError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
