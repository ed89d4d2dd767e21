// Package domainerrors carries coded failures from services to the transport
// layer. Services return these; handlers translate the code into an HTTP
// status without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are part of the public API: they are
// written verbatim into the "error" field of JSON error responses.
type Code string

const (
	// Ledger failures.
	CodeUnauthorized         Code = "unauthorized"
	CodeNotFound             Code = "not_found"
	CodeInvalidAmount        Code = "invalid_amount"
	CodeInvalidSupply        Code = "invalid_supply"
	CodeInsufficientBalance  Code = "insufficient_balance"
	CodeAlreadyResolved      Code = "already_resolved"
	CodeAlreadyRegistered    Code = "already_registered"
	CodeSelfTransfer         Code = "self_transfer"
	CodeRecipientNotApproved Code = "recipient_not_approved"
	CodeParentNotFound       Code = "parent_not_found"

	// Request and infrastructure failures.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_error"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error. Err is the optional underlying cause.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// MessageOf returns the client-facing message of a coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// Ensure returns err unchanged when it already carries a code, and wraps it
// with code and msg otherwise. Services use it at their boundary so coded
// failures raised inside a transaction keep their meaning.
func Ensure(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return Wrap(err, code, msg)
}
