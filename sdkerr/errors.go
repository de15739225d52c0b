package sdkerr

import (
	"errors"
	"fmt"
	"strings"
)

// stream session (fatal)
var (
	// ErrConnect indicates the transport or handshake could not be established.
	ErrConnect = errors.New("connect failed")
	// ErrRead indicates the transport failed mid-stream.
	ErrRead = errors.New("read failed")
)

// frame decoding (recoverable)
var (
	// ErrUnsupportedFrameKind indicates a frame that is not a text payload.
	ErrUnsupportedFrameKind = errors.New("unsupported frame kind")
	// ErrSchemaMismatch indicates a payload missing required fields or carrying a field of the wrong shape.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMalformedNumber indicates a numeric field that is not a valid decimal.
	ErrMalformedNumber = errors.New("malformed number")
)

// http, records and sinks
var (
	// ErrValidation indicates a validation error.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")
	// ErrRequestFailed indicates a request failed.
	ErrRequestFailed = errors.New("request failed")
	// ErrAPIError indicates the upstream answered with a non-success status.
	ErrAPIError = errors.New("api error")
	// ErrDecodeError indicates a decode error.
	ErrDecodeError = errors.New("decode error")
	// ErrPublish indicates an update could not be relayed to a sink.
	ErrPublish = errors.New("publish failed")
)

// SDKError is the error type returned by every package of the module.
type SDKError struct {
	kind    error
	message string
	cause   error
	op      string
	subsys  string
}

// New creates an SDKError for the given subsystem, operation and kind.
func New(subsys, op string, kind error) *SDKError {
	return &SDKError{subsys: subsys, op: op, kind: kind}
}

// Error returns the error message.
func (e *SDKError) Error() string {
	var parts []string

	if e.subsys != "" {
		parts = append(parts, fmt.Sprintf("subsys: %s", e.subsys))
	}
	if e.op != "" {
		parts = append(parts, fmt.Sprintf("op: %s", e.op))
	}
	if e.kind != nil {
		parts = append(parts, fmt.Sprintf("kind: %s", e.kind))
	}
	if e.message != "" {
		parts = append(parts, fmt.Sprintf("msg: %s", e.message))
	}
	if e.cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %s", e.cause))
	}

	return strings.Join(parts, " | ")
}

// Is reports whether the kind or the cause of the error matches target.
func (e *SDKError) Is(target error) bool {
	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// As finds the first error in the kind or the cause chain that matches target.
func (e *SDKError) As(target any) bool {
	if e.kind != nil && errors.As(e.kind, target) {
		return true
	}
	return e.cause != nil && errors.As(e.cause, target)
}

// Unwrap returns the cause of the error.
func (e *SDKError) Unwrap() error {
	return e.cause
}

// Kind returns the kind of the error.
func (e *SDKError) Kind() error { return e.kind }

// Message returns the message of the error.
func (e *SDKError) Message() string { return e.message }

// Cause returns the cause of the error.
func (e *SDKError) Cause() error { return e.cause }

// Op returns the operation of the error.
func (e *SDKError) Op() string { return e.op }

// Subsys returns the subsystem of the error.
func (e *SDKError) Subsys() string { return e.subsys }

// WithMessage sets the message of the error.
func (e *SDKError) WithMessage(msg string) *SDKError {
	e.message = msg
	return e
}

// WithMessagef sets a formatted message.
func (e *SDKError) WithMessagef(format string, args ...any) *SDKError {
	e.message = fmt.Sprintf(format, args...)
	return e
}

// WithCause sets the cause of the error.
func (e *SDKError) WithCause(err error) *SDKError {
	e.cause = err
	return e
}

// IsRecoverable reports whether err only affects a single frame.
// The session that produced the frame is still usable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnsupportedFrameKind) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrMalformedNumber)
}

// IsFatal reports whether err terminated the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnect) || errors.Is(err, ErrRead)
}
