// Package domainerrors carries classified errors from services to transports.
//
// Services return *Error values (optionally wrapping an infrastructure cause) so
// handlers can map them to a status code and a stable error string without
// inspecting messages. Details hold structured context that is safe to render to
// an operator, such as the offending identifiers or a violated bound.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// Scoring rejections, detected before any transaction opens.
	CodeUnknownPillar   Code = "unknown_pillar"
	CodeUnknownCategory Code = "unknown_category"
	CodeUnknownFactor   Code = "unknown_factor"
	CodeNotANumber      Code = "not_a_number"
	CodeOutOfRange      Code = "out_of_range"

	CodeEvaluationNotFound Code = "evaluation_not_found"
	CodePersistenceFailure Code = "persistence_failure"
)

// Error is a classified domain error.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// New creates a classified error without an underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap classifies an underlying error. The cause stays reachable through errors.Is/As.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails attaches structured context and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// From returns the outermost *Error in the chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err carries code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}

// IsValidation reports whether code belongs to the rejection family that is
// surfaced verbatim and never retried.
func IsValidation(code Code) bool {
	switch code {
	case CodeBadRequest, CodeValidation,
		CodeUnknownPillar, CodeUnknownCategory, CodeUnknownFactor,
		CodeNotANumber, CodeOutOfRange:
		return true
	}
	return false
}
