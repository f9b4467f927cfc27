package errors

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the orchestration core.
type Kind string

const (
	// malformed input. It is rejected before entering any pipeline.
	Validation Kind = "validation"

	// a state machine guard has failed. Nothing is mutated.
	Precondition Kind = "precondition"

	// referenced entity is missing.
	NotFound Kind = "not-found"

	// operation is attempted on an entity in a state which does not accept it.
	InvalidState Kind = "invalid-state"

	// secret store, registry or other remote call has failed.
	TransientIntegration Kind = "transient-integration"

	// archive stream has failed during extraction.
	StreamError Kind = "stream-error"
)

func (k Kind) String() string {
	return string(k)
}

// sentinels. use with errors.Is .
var (
	ErrValidation           = kindError{kind: Validation}
	ErrPrecondition         = kindError{kind: Precondition}
	ErrNotFound             = kindError{kind: NotFound}
	ErrInvalidState         = kindError{kind: InvalidState}
	ErrTransientIntegration = kindError{kind: TransientIntegration}
	ErrStreamError          = kindError{kind: StreamError}
)

type kindError struct {
	kind Kind
}

func (k kindError) Error() string {
	return k.kind.String()
}

// Error is an error with Kind.
type Error struct {
	Kind    Kind
	Message string

	// underlying cause. can be nil.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{kindError{kind: e.Kind}}
	}
	return []error{kindError{kind: e.Kind}, e.Cause}
}

// New creates an error of the kind, marked with the caller's location.
func New(kind Kind, message string) error {
	return wrap("", &Error{Kind: kind, Message: message}, 1)
}

func Errorf(kind Kind, format string, args ...any) error {
	return wrap("", &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}, 1)
}

// Classify wraps cause as an error of the kind.
//
// Classifying nil gives nil.
func Classify(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return wrap("", &Error{Kind: kind, Message: message, Cause: cause}, 1)
}

// KindOf returns the outermost Kind found in err's tree.
//
// If err has no kind, it returns ("", false).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
