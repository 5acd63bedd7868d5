package proration

import (
	"errors"
	"fmt"
)

// Validation failures. Every error returned by the boundary functions wraps one
// of these inside a *ValidationError.
var (
	// ErrInvalidAmount is returned for missing, non-finite or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned when a date string is not a YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("invalid calendar date")

	// ErrInvalidAnchorDay is returned for anchor days outside 1..31.
	ErrInvalidAnchorDay = errors.New("anchor day must be between 1 and 31")

	// ErrInvalidMode is returned for an unknown prorate mode.
	ErrInvalidMode = errors.New("invalid prorate mode")

	// ErrInvalidVATRate is returned for non-finite VAT rates or rates outside [0, 1].
	ErrInvalidVATRate = errors.New("invalid VAT rate")

	// ErrInvalidLanguage is returned for an unsupported output language.
	ErrInvalidLanguage = errors.New("unsupported language")

	// ErrInvalidView is returned for an unknown output view.
	ErrInvalidView = errors.New("unsupported view")
)

// ValidationError reports which input was rejected and why.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validation error for field '%s': %v (value: %v)", e.Field, e.Err, e.Value)
	}
	return fmt.Sprintf("validation error for field '%s': %v: %s (value: %v)", e.Field, e.Err, e.Message, e.Value)
}

// Unwrap returns the underlying sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, err error, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
