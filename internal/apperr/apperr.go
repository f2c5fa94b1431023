package apperr

import (
	"errors"
	"strings"
)

// Kind classifies a failure for the transport boundary.
type Kind string

const (
	KindValidation  Kind = "VALIDATION"
	KindNotFound    Kind = "NOT_FOUND"
	KindPersistence Kind = "PERSISTENCE"
)

// Error carries the kind plus enough context to build an actionable message.
type Error struct {
	Kind    Kind
	Entity  string
	Field   string
	Allowed []string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Kind == KindNotFound && e.Entity != "":
		return e.Entity + " not found"
	case e.Err != nil:
		return e.Err.Error()
	default:
		return strings.ToLower(string(e.Kind))
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Entity == "" || t.Entity == e.Entity)
}

// Validation builds a field validation error.
func Validation(field, message string, allowed ...string) error {
	return &Error{Kind: KindValidation, Field: field, Message: message, Allowed: allowed}
}

// NotFound builds a lookup failure for the given entity.
func NotFound(entity string) error {
	return &Error{Kind: KindNotFound, Entity: entity}
}

// KindOf returns the kind of any error. Unknown errors count as persistence.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsValidation reports whether err carries KindValidation.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}
