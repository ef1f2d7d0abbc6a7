package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the QA pipeline error taxonomy.
var (
	ErrInvalidQuery  = errors.New("invalid query")
	ErrQueryTooShort = fmt.Errorf("%w: too short", ErrInvalidQuery)
	ErrQueryTooLong  = fmt.Errorf("%w: too long", ErrInvalidQuery)

	// ErrExtraction covers an unreachable extractor or malformed extractor
	// output. Recoverable: the caller degrades to keyword search.
	ErrExtraction = errors.New("intent extraction failed")

	// ErrStoreUnavailable covers a failed or timed-out store call. Never
	// masked as "no match"; it propagates to the caller.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrEmbedding covers a failed embedding call.
	ErrEmbedding = errors.New("embedding failed")

	// ErrBehaviorNotFound is returned by chain lookups for unknown IDs.
	ErrBehaviorNotFound = errors.New("behavior not found")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
