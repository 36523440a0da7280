package provider

import (
	"errors"
	"fmt"
)

// ErrInactiveProvider is returned when a connect targets the provider that is not active.
var ErrInactiveProvider = errors.New("provider is not active")

// MissingCredentialError is a local validation failure; nothing was sent over the wire.
type MissingCredentialError struct {
	Provider Kind
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: missing credential", e.Provider)
}

// TransportError means the channel could not open or dropped unexpectedly.
type TransportError struct {
	Provider Kind
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: transport failure", e.Provider, e.Op)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a non-success response from the remote side.
type BackendError struct {
	Provider Kind
	Status   int
	Detail   string
}

func (e *BackendError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s backend error: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s backend error: status %d: %s", e.Provider, e.Status, e.Detail)
}

// ParseError describes a malformed inbound frame. It is logged and the frame dropped.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse frame: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsMissingCredential reports whether err is a MissingCredentialError.
func IsMissingCredential(err error) bool {
	var mc *MissingCredentialError
	return errors.As(err, &mc)
}

// AsBackendError extracts a BackendError from err.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
