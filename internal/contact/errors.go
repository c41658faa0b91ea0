package contact

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// these via errors.Is.
var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrDataUnavailable = errors.New("data unavailable")
	ErrMalformedRecord = errors.New("malformed usage record")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrInvalidState    = errors.New("invalid client state")
	ErrTransport       = errors.New("transport failure")
)

// Error describes a failed API operation
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsAuthError reports whether err means the caller has to log in again
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
