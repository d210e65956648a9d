// Package apierror contains the error taxonomy of docrest. Every error that
// reaches a client carries a kind and an HTTP status code.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error
type Kind string

// all error kinds
const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindValidation      Kind = "validation"
	KindTooManyRequests Kind = "too_many_requests"
	KindInternal        Kind = "internal"
)

// Error is an error with a status code
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound returns an error for a named entity which does not exist
func NotFound(name string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: name + " not found"}
}

// Forbidden returns an error for denied access
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: "Forbidden"}
}

// Validation returns an error for malformed input
func Validation(format string, a ...interface{}) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, a...)}
}

// TooManyRequests returns an error for rate limited requests
func TooManyRequests() *Error {
	return &Error{Kind: KindTooManyRequests, Status: http.StatusTooManyRequests, Message: "Too many requests"}
}

// Internal wraps err as an internal error. Its details are never sent to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Err: err}
}

// Internalf is like Internal with a formatted error
func Internalf(format string, a ...interface{}) *Error {
	return Internal(fmt.Errorf(format, a...))
}

// StatusOf returns the status code carried by err, or 500 for uncoded errors
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of err, or KindInternal for uncoded errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound returns true if err is a not found error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsClientError returns true if err carries a 4xx status code
func IsClientError(err error) bool {
	status := StatusOf(err)
	return status >= 400 && status < 500
}
