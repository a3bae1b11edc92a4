package domain

import (
	"errors"
	"strings"
)

// ErrorKind classifies failures surfaced by the use cases.
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION_ERROR"
	KindAuthentication ErrorKind = "AUTHENTICATION_ERROR"
	KindStorage        ErrorKind = "STORAGE_ERROR"
	KindUnknown        ErrorKind = "UNKNOWN_ERROR"
)

// ErrEmailTaken indicates that another identity already owns the email.
var ErrEmailTaken = errors.New("email already in use")

// Error is the typed error carried across the domain and application layers.
// Message is safe to show to a user; Err holds the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError joins field messages into a single validation failure.
func NewValidationError(fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: strings.Join(fields, ", "), Fields: fields}
}

// NewStorageError wraps an I/O failure against a store.
func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// NewAuthenticationError wraps a failure to resolve or create an identity.
func NewAuthenticationError(message string, err error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: err}
}

// KindOf reports the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
