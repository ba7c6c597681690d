package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Stable machine-readable error codes surfaced on failed jobs.
const (
	CodeValidation      = "validation_error"
	CodeNotFound        = "not_found"
	CodeExternalService = "external_service_error"
	CodeInvalidResponse = "invalid_response"
	CodeInternal        = "internal_error"
)

// ClassifiedError is the single error shape the orchestrator works with.
// Retryable errors are retried up to the policy's attempt cap; non-retryable
// ones fail the stage immediately.
type ClassifiedError struct {
	Code      string
	Message   string
	Retryable bool
	Attempts  int
	Cause     error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NewValidationError builds a non-retryable error for malformed caller input
func NewValidationError(message string) *ClassifiedError {
	return &ClassifiedError{Code: CodeValidation, Message: message}
}

// NewNotFoundError builds a non-retryable error for a missing resource
func NewNotFoundError(message string) *ClassifiedError {
	return &ClassifiedError{Code: CodeNotFound, Message: message}
}

// NewExternalServiceError builds a retryable error for a transient collaborator failure
func NewExternalServiceError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{Code: CodeExternalService, Message: message, Retryable: true, Cause: cause}
}

// NewInvalidResponseError builds a retryable error for malformed collaborator output
func NewInvalidResponseError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{Code: CodeInvalidResponse, Message: message, Retryable: true, Cause: cause}
}

// NewInternalError builds a retryable error for an unexpected failure
func NewInternalError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{Code: CodeInternal, Message: message, Retryable: true, Cause: cause}
}

// Classify normalizes an arbitrary error into a ClassifiedError. Errors that
// already carry a classification pass through unchanged; context cancellation
// is not retryable; everything else counts as internal and retryable.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Code: CodeInternal, Message: "operation canceled", Cause: err}
	}
	return NewInternalError("unexpected failure", err)
}

// ClassifyExternal classifies a collaborator call failure. Authorization and
// malformed-input rejections fail fast; rate limits, server errors and
// network failures are transient and retryable.
func ClassifyExternal(operation string, err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	message := fmt.Sprintf("%s failed", operation)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return &ClassifiedError{Code: CodeExternalService, Message: message, Cause: err}
		}
	}
	return NewExternalServiceError(message, err)
}
