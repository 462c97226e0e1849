// Package apperrors holds the closed error taxonomy shared by the stores,
// the issuance engine and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code string

const (
	CodeValidation     Code = "validation_error"
	CodeAlreadyExists  Code = "already_exists"
	CodeNotFound       Code = "not_found"
	CodeSigningFailure Code = "signing_failure"
	CodeStoreFailure   Code = "store_failure"
)

// Error carries a Code, a caller-safe message and an optional cause.
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

// Is matches any *Error with the same Code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation     = &Error{Code: CodeValidation, Message: "invalid request"}
	ErrAlreadyExists  = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrSigningFailure = &Error{Code: CodeSigningFailure, Message: "signing failed"}
	ErrStoreFailure   = &Error{Code: CodeStoreFailure, Message: "store failure"}
)

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the Code of the first *Error in err's chain.
// Errors outside the taxonomy are reported as CodeStoreFailure.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStoreFailure
}

// MessageOf returns the message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
