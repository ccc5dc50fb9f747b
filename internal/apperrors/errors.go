package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for callers and transport layers
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindConflict     Kind = "CONFLICT"
	KindExternal     Kind = "EXTERNAL_DEPENDENCY_ERROR"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Error is the typed error returned by services
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

// Unauthorized means the caller is not authenticated
func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, nil, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, nil, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, nil, format, args...)
}

// External wraps a failure of a third-party dependency (gateway, invoice storage)
func External(err error, format string, args ...interface{}) *Error {
	return newError(KindExternal, err, format, args...)
}

func Internal(err error, format string, args ...interface{}) *Error {
	return newError(KindInternal, err, format, args...)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func IsNotFound(err error) bool     { return Is(err, KindNotFound) }
func IsValidation(err error) bool   { return Is(err, KindValidation) }
func IsConflict(err error) bool     { return Is(err, KindConflict) }
func IsForbidden(err error) bool    { return Is(err, KindForbidden) }
func IsUnauthorized(err error) bool { return Is(err, KindUnauthorized) }
func IsExternal(err error) bool     { return Is(err, KindExternal) }

// HTTPStatus maps an error to the response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides internal details from clients
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		if appErr.Message != "" {
			return appErr.Message
		}
		return appErr.Error()
	}
	return "internal server error"
}
