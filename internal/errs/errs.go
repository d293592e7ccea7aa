// Package errs defines the coded errors shared by the store, the message
// source and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown    = "UNKNOWN"
	CodeDatabase   = "DATABASE"
	CodeValidation = "VALIDATION"
	CodeSource     = "SOURCE"
	CodeConfig     = "CONFIG"
	CodeNotFound   = "NOT_FOUND"
	CodeBusy       = "BUSY"
)

// Coded is implemented by every error created in this package.
type Coded interface {
	error
	Code() string
	Unwrap() error
}

// Error is a message and optional cause tagged with a code.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() string { return e.code }

func (e *Error) Unwrap() error { return e.err }

// New returns an error with the given code.
func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// Code returns the code of the first coded error in err's chain, or
// CodeUnknown.
func Code(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeUnknown
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

func NewDatabaseError(message string, cause error) error {
	return New(CodeDatabase, message, cause)
}

func NewValidationError(message string, cause error) error {
	return New(CodeValidation, message, cause)
}

func NewSourceError(message string, cause error) error {
	return New(CodeSource, message, cause)
}

func NewConfigError(message string, cause error) error {
	return New(CodeConfig, message, cause)
}

func NewNotFoundError(message string) error {
	return New(CodeNotFound, message, nil)
}
