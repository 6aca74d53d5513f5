// Package scanerr defines the error taxonomy of the scan engine.
//
// Only configuration and privilege errors abort a run. Every per-probe network
// condition (timeout, refusal, unreachable, resolution failure) is folded into
// the result data instead and never surfaces as an error value.
package scanerr

import (
	"errors"
	"fmt"
)

// Code classifies an engine error.
type Code string

const (
	CodeConfiguration Code = "CONFIGURATION"
	CodeTargetInvalid Code = "TARGET_INVALID"
	CodePermission    Code = "PERMISSION"
	CodeAggregation   Code = "AGGREGATION"
	CodeUnsupported   Code = "UNSUPPORTED"
)

// ErrUnsupported is returned by transports that cannot issue a probe kind on
// the current platform.
var ErrUnsupported = errors.New("probe kind not supported on this platform")

// Error is a classified engine error.
type Error struct {
	Code    Code
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target: %s)", e.Target)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Config reports an invalid scan configuration.
func Config(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// InvalidTarget reports a malformed target specification.
func InvalidTarget(target string, cause error) *Error {
	return &Error{
		Code:    CodeTargetInvalid,
		Message: "invalid target",
		Target:  target,
		Cause:   cause,
	}
}

// Privilege reports that a raw socket or link-layer socket could not be opened.
func Privilege(op string, cause error) *Error {
	return &Error{
		Code:    CodePermission,
		Message: op + " requires elevated privileges",
		Cause:   cause,
	}
}

// Aggregation reports a failure to assemble or serialize a result.
func Aggregation(message string, cause error) *Error {
	return &Error{Code: CodeAggregation, Message: message, Cause: cause}
}

// CodeOf returns the classification of err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConfig reports whether err is a configuration-time error.
func IsConfig(err error) bool {
	c := CodeOf(err)
	return c == CodeConfiguration || c == CodeTargetInvalid
}

// IsPrivilege reports whether err is a privilege error.
func IsPrivilege(err error) bool {
	return CodeOf(err) == CodePermission
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return IsConfig(err) || IsPrivilege(err)
}
