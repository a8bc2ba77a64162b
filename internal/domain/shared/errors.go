// Package shared contains common domain types, errors, and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "engagement", "mastery", "alert"
	Op      string // Operation that failed, e.g., "Log", "Resolve"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Engagement domain errors
var (
	ErrSampleNotFound   = NewDomainError("engagement", "Find", ErrNotFound, "engagement sample not found")
	ErrInvalidStudentID = NewDomainError("engagement", "Validate", ErrInvalidID, "invalid student ID")
	ErrInvalidClassID   = NewDomainError("engagement", "Validate", ErrInvalidID, "invalid class ID")
)

// Mastery domain errors
var (
	ErrSnapshotNotFound = NewDomainError("mastery", "Find", ErrNotFound, "mastery snapshot not found")
	ErrRecordNotFound   = NewDomainError("mastery", "Find", ErrNotFound, "mastery record not found")
	ErrInvalidLevelType = NewDomainError("mastery", "Validate", ErrInvalidInput, "level type must be concept, module or subject")
	ErrInvalidScore     = NewDomainError("mastery", "Validate", ErrValueOutOfRange, "mastery score must be between 0 and 100")
)

// Alert domain errors
var (
	ErrAlertNotFound     = NewDomainError("alert", "Find", ErrNotFound, "alert not found")
	ErrInvalidAlertType  = NewDomainError("alert", "Validate", ErrInvalidInput, "invalid alert type")
	ErrInvalidResolvedBy = NewDomainError("alert", "Resolve", ErrEmptyValue, "resolvedBy cannot be empty")
)

// Realtime domain errors
var (
	ErrNotAuthenticated = NewDomainError("realtime", "Authorize", ErrUnauthorized, "connection is not authenticated")
	ErrRoleForbidden    = NewDomainError("realtime", "Authorize", ErrForbidden, "role is not allowed to perform this action")
	ErrLiveSessionNotFound = NewDomainError("realtime", "FindSession", ErrNotFound, "live session not found")
)

// External service errors
var (
	ErrEngineUnavailable     = NewDomainError("masteryengine", "Request", ErrServiceUnavailable, "mastery engine is unavailable")
	ErrEngineRateLimited     = NewDomainError("masteryengine", "Request", ErrRateLimited, "mastery engine rate limit exceeded")
	ErrEngineTimeout         = NewDomainError("masteryengine", "Request", ErrTimeout, "mastery engine request timeout")
	ErrEngineInvalidResponse = NewDomainError("masteryengine", "Parse", ErrInvalidFormat, "invalid response from mastery engine")
	ErrDirectoryUnavailable  = NewDomainError("directory", "Request", ErrServiceUnavailable, "directory service is unavailable")
	ErrTokenRejected         = NewDomainError("directory", "VerifyToken", ErrUnauthorized, "token was rejected by the directory service")
	ErrClassNotFound         = NewDomainError("directory", "GetRoster", ErrNotFound, "class not found in directory")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsUnauthorized checks if the error is an authentication or authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
