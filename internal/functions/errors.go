package functions

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a callable function status, as reported to clients.
type Code string

const (
	InvalidArgument    Code = "invalid-argument"
	FailedPrecondition Code = "failed-precondition"
	Unauthenticated    Code = "unauthenticated"
	NotFound           Code = "not-found"
	Internal           Code = "internal"
)

// Status is the wire form, e.g. INVALID_ARGUMENT.
func (c Code) Status() string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "-", "_"))
}

func (c Code) HTTPStatus() int {
	switch c {
	case InvalidArgument, FailedPrecondition:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Error is returned by callable functions and shown to the caller.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// AsError converts any error into a callable Error. Errors that are not
// already callable errors become internal ones.
func AsError(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Code: Internal, Message: "Internal error.", Err: err}
}
