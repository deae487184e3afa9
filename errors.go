package jwtoken

import (
	"errors"
	"fmt"
)

// ErrorCode represents token error categories.
type ErrorCode string

const (
	ErrCodeImproperlyConfigured ErrorCode = "improperly_configured"
	ErrCodeNotAuthorized        ErrorCode = "not_authorized"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeImproperlyConfigured: "Improperly configured",
	ErrCodeNotAuthorized:        "Invalid token",
}

// Error wraps token errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotAuthorized reports whether err is a decode rejection.
func IsNotAuthorized(err error) bool {
	return hasCode(err, ErrCodeNotAuthorized)
}

// IsImproperlyConfigured reports whether err came from invalid caller input.
func IsImproperlyConfigured(err error) bool {
	return hasCode(err, ErrCodeImproperlyConfigured)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// configError reports a violated invariant; msg names it.
func configError(msg string) error {
	return &Error{Code: ErrCodeImproperlyConfigured, Message: msg}
}

// errInvalidToken is returned for every decode failure. The cause is never attached.
func errInvalidToken() error {
	return &Error{Code: ErrCodeNotAuthorized, Message: errorMessages[ErrCodeNotAuthorized]}
}
