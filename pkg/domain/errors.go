package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrChannelNotFound is returned when a channel id cannot be found in the store.
var ErrChannelNotFound = errors.New("channel not found")

// ErrNodeNotFound is returned when a node id does not resolve inside a channel.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an edge id does not resolve inside a channel.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrDuplicateID is returned when an insert collides with an existing element id.
var ErrDuplicateID = errors.New("duplicate id")

// ErrTxConflict is returned when a concurrent transaction committed first.
// The caller may retry the whole call.
var ErrTxConflict = errors.New("transaction conflict")

// ErrTxTimeout is returned when a transaction outlived its deadline and was aborted.
var ErrTxTimeout = errors.New("transaction timeout")

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already finished")

// ErrorKind is the taxonomy of failures surfaced to callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Status maps the kind onto an HTTP status code.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind      ErrorKind
	Code      string // machine-readable detail, e.g. "type_mismatch"
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error wrapping one of the not-found sentinels.
func NotFound(err error, id string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: fmt.Sprintf("%v: %q", err, id), Err: err}
}

// Conflict builds a KindConflict error.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Internal wraps an infrastructure failure. The message never exposes err.
func Internal(err error) *Error {
	e := &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
	switch {
	case errors.Is(err, ErrTxConflict):
		e.Code, e.Message, e.Retryable = "tx_conflict", "concurrent modification, retry the request", true
	case errors.Is(err, ErrTxTimeout):
		e.Code, e.Message, e.Retryable = "tx_timeout", "transaction timed out, retry the request", true
	}
	return e
}

// AsError converts any error into a taxonomy error. Not-found sentinels map to
// KindNotFound; everything unrecognised becomes KindInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	for _, sentinel := range []error{ErrChannelNotFound, ErrNodeNotFound, ErrEdgeNotFound} {
		if errors.Is(err, sentinel) {
			return &Error{Kind: KindNotFound, Code: "not_found", Message: err.Error(), Err: err}
		}
	}
	if errors.Is(err, ErrDuplicateID) {
		return &Error{Kind: KindConflict, Code: "duplicate_id", Message: err.Error(), Err: err}
	}
	return Internal(err)
}

// StatusOf returns the HTTP status code for err, or 200 when err is nil.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsError(err).Status()
}

// IsRetryable reports whether the failed call may be retried unchanged.
func IsRetryable(err error) bool {
	de := AsError(err)
	return de != nil && de.Retryable
}
