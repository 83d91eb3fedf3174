package apperrors

import (
	"errors"
	"fmt"
)

// ExecutorErrorCode identifies why a cancellation executor failed.
type ExecutorErrorCode string

const (
	ExecutorTimeout          ExecutorErrorCode = "timeout"
	ExecutorNetworkError     ExecutorErrorCode = "network_error"
	ExecutorAuthRequired     ExecutorErrorCode = "auth_required"
	ExecutorProviderRejected ExecutorErrorCode = "provider_rejected"
)

// ValidationError is malformed input. Non-retryable, surfaced with field detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError is a missing resource, or one not owned by the caller.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func NewNotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// ConflictError signals an invariant clash, typically an in-flight
// cancellation request already existing for the subscription.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflict(message string) error {
	return &ConflictError{Message: message}
}

// ExecutorError is a failure reported by (or enforced upon) a cancellation
// executor. Retryability depends on the code, see IsAutoRetryable.
type ExecutorError struct {
	Code    ExecutorErrorCode
	Message string
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor error (%s): %s", e.Code, e.Message)
}

func NewExecutor(code ExecutorErrorCode, message string) *ExecutorError {
	return &ExecutorError{Code: code, Message: message}
}

// IsAutoRetryable reports whether the failure may be retried automatically
// through the fallback chain. AuthRequired is not a retry case, it routes
// to requires_manual instead.
func (e *ExecutorError) IsAutoRetryable() bool {
	return e.Code == ExecutorTimeout || e.Code == ExecutorNetworkError
}

// InternalError wraps store or infrastructure failures.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func NewInternal(err error) error {
	return &InternalError{Err: err}
}

// Predicates for the HTTP layer and services.

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func AsExecutor(err error) (*ExecutorError, bool) {
	var target *ExecutorError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
