// Package errors carries the typed API errors services return and the
// HTTP metadata the response writer derives from their code.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInvalidToken  Code = "INVALID_TOKEN"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered to clients.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage bool
	// DetailsAllowed lets structured details replace the message entirely.
	DetailsAllowed bool
}

func meta(status int, public string, expose, details, retry bool) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		ExposeMessage:  expose,
		DetailsAllowed: details,
		Retryable:      retry,
	}
}

var catalog = map[Code]Metadata{
	//                          status                          public message                 expose details retry
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", true, true, false),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", true, false, false),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", true, false, false),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", true, false, false),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", true, false, false),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", true, true, false),
	CodeInvalidToken:  meta(http.StatusBadRequest, "token is invalid or expired", true, false, false),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", true, true, false),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", true, false, false),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", false, false, true),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", false, true, true),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := catalog[code]; ok {
		return m
	}
	return catalog[CodeInternal]
}

// HTTPStatus is shorthand for MetadataFor(code).HTTPStatus.
func (c Code) HTTPStatus() int { return MetadataFor(c).HTTPStatus }

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return string(e.code) + ": " + e.message + ": " + e.cause.Error()
	default:
		return string(e.code) + ": " + e.message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	return As(err).codeIs(code)
}

func (e *Error) codeIs(code Code) bool {
	return e != nil && e.code == code
}
