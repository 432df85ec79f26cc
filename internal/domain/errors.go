package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals a malformed query, filter or payload (client error).
	ErrValidation = errors.New("validation failed")
	// ErrStore signals a failure of the document store (system of record).
	ErrStore = errors.New("document store error")
	// ErrUnknownEntity signals an entity type without a search configuration.
	ErrUnknownEntity = errors.New("unknown entity type")
	// ErrIndexNotReady signals that the in-memory index has not been built yet.
	ErrIndexNotReady = errors.New("index not initialized")
)

// ValidationError carries the offending field alongside ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
