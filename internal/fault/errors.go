// Package fault defines the error taxonomy shared by the scheduling engine
// and the playback session.
//
// Errors in this package are informational. Components that run from
// background triggers (alarm callbacks, boot, clock changes) catch them at
// their boundary, log them, and degrade to "no-op / use default". Callers
// that do have a user in front of them (the HTTP API, the CLI) may inspect
// the Code to render a meaningful message.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes an Error.
type Code string

const (
	// ConfigurationMissing indicates required configuration (the location)
	// is absent. The reschedule pass aborts and is retried by a later trigger.
	ConfigurationMissing Code = "CONFIGURATION_MISSING"

	// CapabilityDenied indicates the host refused exact-alarm capability.
	CapabilityDenied Code = "CAPABILITY_DENIED"

	// StaleTrigger indicates a trigger instant that is already in the past.
	StaleTrigger Code = "STALE_TRIGGER"

	// ResourceUnavailable indicates no playable sound (or other playback
	// resource) could be obtained.
	ResourceUnavailable Code = "RESOURCE_UNAVAILABLE"

	// DecodeFallback marks a preference value that could not be decoded and
	// was replaced by its documented default. Never returned to callers.
	DecodeFallback Code = "DECODE_FALLBACK"
)

// Error carries a Code plus the operation that produced it.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the failing operation, e.g. "reschedule.pass".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an Error around an existing cause.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key, value string) *Error {
	out := *e
	out.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Is reports whether err's chain contains an *Error with the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsConfigurationMissing reports whether err is a ConfigurationMissing error.
func IsConfigurationMissing(err error) bool {
	return Is(err, ConfigurationMissing)
}

// IsCapabilityDenied reports whether err is a CapabilityDenied error.
func IsCapabilityDenied(err error) bool {
	return Is(err, CapabilityDenied)
}

// IsResourceUnavailable reports whether err is a ResourceUnavailable error.
func IsResourceUnavailable(err error) bool {
	return Is(err, ResourceUnavailable)
}
