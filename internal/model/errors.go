package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Sentinel errors for the assessment error taxonomy. Match with errors.Is.
var (
	// ErrNotFound means the destination query resolved to no place.
	ErrNotFound = eris.New("place not found")
	// ErrInvalidInput means a caller-supplied value was rejected.
	ErrInvalidInput = eris.New("invalid input")
	// ErrUpstream means a collaborator failed or returned a malformed payload.
	ErrUpstream = eris.New("upstream failure")
	// ErrValidation means the reasoning service reply failed schema validation.
	ErrValidation = eris.New("model output validation failed")
)

// UpstreamError carries the failing collaborator and, for HTTP collaborators,
// the response status.
type UpstreamError struct {
	Source     string
	StatusCode int
	Err        error
}

// NewUpstreamError wraps err as a failure of the named collaborator.
func NewUpstreamError(source string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{Source: source, StatusCode: statusCode, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// HTTPStatus returns the upstream response status, or 0 for non-HTTP failures.
func (e *UpstreamError) HTTPStatus() int { return e.StatusCode }

// Is lets errors.Is(err, ErrUpstream) match any UpstreamError.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ValidationError reports a reasoning service reply that broke the output
// schema. It is also an upstream failure.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "model output validation failed: " + e.Reason
	}
	return fmt.Sprintf("model output validation failed: %s: %s", e.Field, e.Reason)
}

// Is matches both ErrValidation and ErrUpstream.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == ErrUpstream
}

// InvalidInput wraps ErrInvalidInput with a caller-facing message.
func InvalidInput(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidInput, format, args...)
}

// UpstreamSource returns the collaborator name of the first UpstreamError in
// err's chain, or "" if there is none.
func UpstreamSource(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Source
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "classifier"
	}
	return ""
}
