// Package domainerrors defines the coded errors exchanged between services
// and adapters. Stores surface sentinel errors; services translate them to
// coded errors here; HTTP adapters map codes to statuses and envelopes.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error. Values are wire-stable snake_case strings
// and appear verbatim in HTTP error envelopes.
type Code string

const (
	// CodeInvalidInput marks arguments that fail domain validation, such as
	// a subject with an empty type or id.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks malformed requests at the transport boundary.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks lookups of entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeTimeout marks operations abandoned because a deadline passed.
	CodeTimeout Code = "timeout"
	// CodeInternal marks unexpected failures; details are never exposed to
	// callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded error, optionally wrapping a cause. It is a value type;
// compare with HasCode rather than equality.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e Error) Unwrap() error { return e.Err }

// New returns a coded error with no underlying cause.
func New(code Code, message string) error {
	return Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	return Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err, or anything it wraps, is a domain error with
// the given code. The outermost coded error wins.
func HasCode(err error, code Code) bool {
	var de Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// ToHTTPStatus maps a code to the HTTP status an adapter should respond
// with. Unknown codes map to 500.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
