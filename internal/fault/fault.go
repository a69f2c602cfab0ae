// Package fault classifies terminal pipeline failures. Kinds are stable
// strings surfaced to API clients in the errorKind field.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class
type Kind string

const (
	InvalidReference     Kind = "INVALID_REFERENCE"
	NoReferenceAvailable Kind = "NO_REFERENCE"
	TemplateNotFound     Kind = "TEMPLATE_NOT_FOUND"
	TemplateMalformed    Kind = "TEMPLATE_MALFORMED"
	MissingRequiredSlot  Kind = "MISSING_REQUIRED_SLOT"
	AmbiguousSlot        Kind = "AMBIGUOUS_SLOT"
	SubmissionFailed     Kind = "SUBMISSION_FAILED"
	ExecutionFailed      Kind = "EXECUTION_FAILED"
	TimedOut             Kind = "TIMED_OUT"
	OutputNotFound       Kind = "OUTPUT_NOT_FOUND"
	EngineComm           Kind = "ENGINE_COMM"
	Internal             Kind = "INTERNAL"
)

// Error is a classified failure. It wraps an optional cause so callers can
// errors.Is/As through it.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error wrapping a cause
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or Internal when err carries no
// classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// IsKind reports whether err is classified as kind. A nil error has no kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
