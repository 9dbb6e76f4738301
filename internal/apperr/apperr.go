// Package apperr defines the error taxonomy shared by the conversation flow,
// the participants service and the storage backends.
//
// Extraction never returns these: an unrecognized value is simply absent.
// Only confirm/save paths produce them.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a bad or missing field value. Non-fatal.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a referenced record that no longer exists. Non-fatal.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate marks a name collision. Routed to disambiguation.
	ErrDuplicate = errors.New("duplicate")

	// ErrStorage marks a persistence failure. Fatal to the current turn.
	ErrStorage = errors.New("storage error")

	// ErrTechnical marks an unexpected failure. Fatal, with a recovery offer.
	ErrTechnical = errors.New("technical error")
)

// Kind is the class of an error as seen by the conversation flow.
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindDuplicate  Kind = "duplicate"
	KindStorage    Kind = "storage"
	KindTechnical  Kind = "technical"
)

// ValidationError carries a user-facing message for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type wrapped struct {
	kind error
	op   string
	err  error
}

func (w *wrapped) Error() string {
	if w.err == nil {
		return fmt.Sprintf("%s: %v", w.op, w.kind)
	}
	return fmt.Sprintf("%s: %v: %v", w.op, w.kind, w.err)
}

func (w *wrapped) Unwrap() []error {
	if w.err == nil {
		return []error{w.kind}
	}
	return []error{w.kind, w.err}
}

// Storage wraps a persistence failure. Errors already classified as
// not-found or storage pass through untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return &wrapped{kind: ErrStorage, op: op, err: err}
}

// Technical wraps an unexpected failure.
func Technical(op string, err error) error {
	return &wrapped{kind: ErrTechnical, op: op, err: err}
}

// NotFound returns ErrNotFound annotated with what was looked up.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsDuplicate(err error) bool  { return errors.Is(err, ErrDuplicate) }
func IsStorage(err error) bool    { return errors.Is(err, ErrStorage) }
func IsTechnical(err error) bool  { return errors.Is(err, ErrTechnical) }

// Classify maps err onto the taxonomy. Unclassified errors are technical.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case IsValidation(err):
		return KindValidation
	case IsNotFound(err):
		return KindNotFound
	case IsDuplicate(err):
		return KindDuplicate
	case IsStorage(err):
		return KindStorage
	default:
		return KindTechnical
	}
}

// UserMessage extracts the user-facing text of a validation error, if any.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return ""
}
