package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicate indicates that a resolved identifier already belongs to a
	// different local paper. Duplicates are reported, never silently merged.
	ErrDuplicate = errors.New("duplicate paper")

	// ErrSyncBusy indicates that a reconciliation run is already active.
	ErrSyncBusy = errors.New("sync already in progress")

	// ErrRemoteFailure indicates a failure talking to the remote source.
	ErrRemoteFailure = errors.New("remote source failure")

	// ErrExtractionFailure indicates that content extraction or metadata
	// inference failed; callers treat it as "no data from this strategy".
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrNoIdentifier indicates that a paper has no usable identifier.
	ErrNoIdentifier = errors.New("no identifier")
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

// DuplicateError reports that an identifier resolved during reconciliation
// already belongs to a different local paper.
type DuplicateError struct {
	Bibcode      string
	PaperID      uuid.UUID
	OwnerPaperID uuid.UUID
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("bibcode %s already belongs to paper %s", e.Bibcode, e.OwnerPaperID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// ExternalAPIError provides details about a remote source API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ExternalAPIError) Unwrap() error {
	return ErrRemoteFailure
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
