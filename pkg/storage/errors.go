package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across backends.
var (
	// ErrNotSupported indicates the backend does not implement the
	// requested operation.
	ErrNotSupported = errors.New("operation not supported by this backend")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("storage backend is closed")
)

// NotFoundError indicates a requested resource does not exist.
type NotFoundError struct {
	ResourceType string // e.g. "scan"
	ResourceID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.ResourceType, e.ResourceID)
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// AlreadyExistsError indicates a resource with the same identity exists.
type AlreadyExistsError struct {
	ResourceType string
	ResourceID   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.ResourceType, e.ResourceID)
}

// NewAlreadyExistsError creates an AlreadyExistsError for the given resource.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{ResourceType: resourceType, ResourceID: resourceID}
}

// InvalidInputError indicates a caller-supplied value failed validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInvalidInputError creates an InvalidInputError for the given field.
func NewInvalidInputError(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

// ConflictError indicates a compare-and-set status update lost a race:
// the record's status no longer matched the expected value at write time.
// Callers that tolerate races (the dispatcher) skip the record silently.
type ConflictError struct {
	ResourceID string
	Expected   ScanStatus
	Actual     ScanStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scan %q status is %q, expected %q", e.ResourceID, e.Actual, e.Expected)
}
