package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRequestActive indicates that a bulk analysis request is already
	// active and a new one cannot be initiated.
	ErrRequestActive = errors.New("analysis request active")

	// ErrStaleRequest indicates that a task's captured request ID no longer
	// matches the globally stored current request ID.
	ErrStaleRequest = errors.New("stale analysis request")

	// ErrServiceUnavailable indicates that the remote classifier is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimited indicates that the classifier rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrInternalError indicates an internal server error.
	ErrInternalError = errors.New("internal error")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// StateConflictError indicates that a request-state mutation was rejected
// because the persisted state disagrees with the caller's expectation
// (duplicate initiate, request ID mismatch). No mutation is performed.
type StateConflictError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state conflict in %s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *StateConflictError) Unwrap() error {
	return ErrRequestActive
}

// ExternalAPIError provides details about a classifier API error.
type ExternalAPIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("classifier %s error (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, ID: id}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewStateConflictError creates a new StateConflictError.
func NewStateConflictError(op, message string) *StateConflictError {
	return &StateConflictError{Op: op, Message: message}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(endpoint string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
