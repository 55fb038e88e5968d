package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound signals a missing image source (directory, file, or empty resolution).
	ErrSourceNotFound = errors.New("source not found")
	// ErrDetectionFailed signals a failed detector invocation (non-zero exit, timeout).
	ErrDetectionFailed = errors.New("detection failed")
	// ErrMalformedDetectorOutput signals detector output that does not match the record shape.
	ErrMalformedDetectorOutput = errors.New("malformed detector output")

	// ErrNotFound signals that no metadata document resolves at a path.
	ErrNotFound = errors.New("not found")
	// ErrParse signals a metadata document that is not a valid entry sequence.
	ErrParse = errors.New("parse error")

	// ErrEmptyMetadata signals an empty entry sequence passed to the query engine.
	ErrEmptyMetadata = errors.New("metadata is empty")
	// ErrInvalidMetadata signals input that is not an entry sequence.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrInvalidRequest signals invalid search parameters.
	ErrInvalidRequest = errors.New("invalid request")
)

// DetectionFailedError wraps ErrDetectionFailed with the detector's diagnostic output.
type DetectionFailedError struct {
	Diagnostic string
	Cause      error
}

func (e *DetectionFailedError) Error() string {
	msg := ErrDetectionFailed.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Diagnostic != "" {
		msg += fmt.Sprintf(" (%s)", e.Diagnostic)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *DetectionFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDetectionFailed}
	}
	return []error{ErrDetectionFailed, e.Cause}
}

// NewDetectionFailed creates a detection failure carrying the detector diagnostic.
func NewDetectionFailed(cause error, diagnostic string) error {
	return &DetectionFailedError{Cause: cause, Diagnostic: diagnostic}
}
