// Package errors provides coded errors for the engine boundary. Leaf
// packages return plain or sentinel errors; the orchestrator and storage
// adapters translate them into these codes.
package errors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeOK                 Code = "OK"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeAborted            Code = "ABORTED"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	CodeCanceled           Code = "CANCELED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

func (c Code) String() string { return string(c) }

// Error is a structured error with a code, message and metadata.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithMeta adds a metadata entry and returns e.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err, keeping its code when it is already an *Error and using
// CodeInternal otherwise.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: message, Cause: err, Meta: existing.Meta}
	}
	return &Error{Code: CodeInternal, Message: message, Cause: err}
}

func Wrapf(err error, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps err under an explicit code.
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	meta := map[string]any{}
	var existing *Error
	if errors.As(err, &existing) {
		for k, v := range existing.Meta {
			meta[k] = v
		}
	}
	return &Error{Code: code, Message: message, Cause: err, Meta: meta}
}

func WrapWithCodef(err error, code Code, format string, args ...any) *Error {
	return WrapWithCode(err, code, fmt.Sprintf(format, args...))
}

func NotFound(message string) *Error { return New(CodeNotFound, message) }
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

func InvalidArgument(message string) *Error { return New(CodeInvalidArgument, message) }
func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

func FailedPrecondition(message string) *Error { return New(CodeFailedPrecondition, message) }
func FailedPreconditionf(format string, args ...any) *Error {
	return Newf(CodeFailedPrecondition, format, args...)
}

func AlreadyExists(message string) *Error { return New(CodeAlreadyExists, message) }
func Aborted(message string) *Error       { return New(CodeAborted, message) }
func Unavailable(message string) *Error   { return New(CodeUnavailable, message) }
func Internal(message string) *Error      { return New(CodeInternal, message) }
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}
