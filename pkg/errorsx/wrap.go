package errorsx

import (
	"errors"
	"fmt"
)

// Error tags a cause with the reason code reported in logs and metrics.
// The first code attached to an error chain sticks.
type Error struct {
	Reason ReasonCode
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with reason. Nil stays nil; an already tagged chain is returned as-is.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Reason: reason, Err: err}
}

// Errorf formats a new error tagged with reason. %w verbs are honored.
func Errorf(reason ReasonCode, format string, args ...any) error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// Reason returns the first code found in err's chain, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var tagged *Error
	if err != nil && errors.As(err, &tagged) {
		return tagged.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

// Transient reports whether a reason describes a transport problem worth retrying
// on the next reconcile tick rather than a configuration problem.
func Transient(reason ReasonCode) bool {
	switch reason {
	case ReasonRealtimeConnect, ReasonRealtimeSession, ReasonRealtimeClosed,
		ReasonWebhookProbe, ReasonCaptureConnect:
		return true
	}
	return false
}
