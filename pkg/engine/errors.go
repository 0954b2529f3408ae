package engine

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates malformed or inconsistent engine
// configuration (policy, feature order, model binding). Fatal at startup,
// never produced per-request.
type ConfigurationError struct {
	Message string
	Cause   error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a malformed event, rejected before the rule
// matcher runs.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: field %q: %s", e.Field, e.Message)
}

// ScoringError indicates the external scorer was unavailable or returned
// malformed output. The whole decision fails; no default score is ever
// substituted, so callers can tell "the model said no" apart from "the
// model could not be asked".
type ScoringError struct {
	Cause error
}

// Error returns the error message.
func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ScoringError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsScoring reports whether err is a ScoringError.
func IsScoring(err error) bool {
	var se *ScoringError
	return errors.As(err, &se)
}
