package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the advisor pipeline.
var (
	ErrDataUnavailable     = errors.New("registry data unavailable")
	ErrInvalidRecord       = errors.New("invalid registry record")
	ErrInvalidQuery        = errors.New("invalid query")
	ErrYearOutOfRange      = errors.New("year out of range")
	ErrInvalidDisplacement = errors.New("invalid engine displacement")
	ErrEmptyField          = errors.New("field is empty")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrGeneratorExhausted  = errors.New("generator retries exhausted")
	ErrNoMatches           = errors.New("no matching vehicles found")
)

// ValidationError wraps a sentinel with the offending field.
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
