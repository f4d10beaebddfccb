// Package apperr is the error taxonomy shared by every service. Each public
// operation either succeeds with its side effects committed or returns one of
// these with zero partial effects.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation means bad input; nothing was mutated.
	KindValidation
	// KindAuthorization means the caller may not perform the operation.
	KindAuthorization
	// KindConflict means a uniqueness or state-machine conflict.
	KindConflict
	// KindNotFound means the referenced row does not exist.
	KindNotFound
	// KindTransient means the store or network was unavailable. Reads may be
	// retried; mutations must not be retried naively.
	KindTransient
)

// Error is a classified operation failure. Field attributes validation and
// conflict errors to the offending input field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad input attributed to a field. Field may be empty.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Authorization reports a caller that is not allowed to perform the operation.
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// Conflict reports a uniqueness or state conflict attributed to a field.
func Conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

// NotFound reports a missing row.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Transient wraps a store or network failure.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldOf extracts the attributed field from err, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
