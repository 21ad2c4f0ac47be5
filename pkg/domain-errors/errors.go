// Package domainerrors defines the typed error taxonomy returned by every
// settlement operation. Callers branch on Code, never on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure so clients can decide whether to retry.
type Code string

const (
	CodeUnauthorized        Code = "unauthorized"
	CodeNotFound            Code = "not_found"
	CodeDuplicateProperty   Code = "duplicate_property"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeUnsupportedAsset    Code = "unsupported_asset"
	CodeOrderNotActive      Code = "order_not_active"
	CodeAlreadyClaimed      Code = "already_claimed"
	CodeAlreadyIssued       Code = "already_issued"
	CodeBelowThreshold      Code = "below_threshold"
	CodePaymentFailed       Code = "payment_failed"
	CodeInvalidArgument     Code = "invalid_argument"
	CodeInternal            Code = "internal"
)

// Error carries a code, a human readable message, and the id of the entity the
// failure refers to (property id, order id, ...). Err is the wrapped cause.
type Error struct {
	Code     Code
	Message  string
	EntityID string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.EntityID != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.EntityID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf builds an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithEntity returns a copy of e bound to the given entity id.
func (e *Error) WithEntity(id any) *Error {
	cp := *e
	cp.EntityID = fmt.Sprint(id)
	return &cp
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal
// when err is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// EntityOf returns the entity id recorded on err, if any.
func EntityOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.EntityID
	}
	return ""
}

// Retryable reports whether resubmitting the same call may succeed. Only
// payment failures are transient; everything else is a caller or state error.
func Retryable(err error) bool {
	return HasCode(err, CodePaymentFailed)
}
