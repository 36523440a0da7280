package session

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
)

// ErrSuperseded is returned by Connect when a later connect or disconnect replaced the attempt.
var ErrSuperseded = errors.New("connect attempt superseded")

// ErrClosed is returned once the Manager has been closed.
var ErrClosed = errors.New("session manager closed")

// RoutingErrorKind classifies why a command could not be delivered.
type RoutingErrorKind string

const (
	RoutingTransportFailure RoutingErrorKind = "transport_failure"
	RoutingTimeout          RoutingErrorKind = "timeout"
	RoutingBackendError     RoutingErrorKind = "backend_error"
)

// RoutingError is what Route returns; Err keeps the provider error for errors.As.
type RoutingError struct {
	Kind     RoutingErrorKind
	Provider provider.Kind
	Status   int
	Detail   string
	Err      error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("route to %s: %s: %s", e.Provider, e.Kind, e.Detail)
}

func (e *RoutingError) Unwrap() error { return e.Err }

func classify(kind provider.Kind, err error) *RoutingError {
	var re *RoutingError
	if errors.As(err, &re) {
		return re
	}
	out := &RoutingError{Kind: RoutingTransportFailure, Provider: kind, Detail: err.Error(), Err: err}
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		out.Kind = RoutingTimeout
		out.Detail = "request timed out"
	default:
		if be, ok := provider.AsBackendError(err); ok {
			out.Kind = RoutingBackendError
			out.Status = be.Status
			out.Detail = be.Detail
			if out.Detail == "" {
				out.Detail = fmt.Sprintf("status %d", be.Status)
			}
		}
	}
	return out
}

// FallbackMessage is the chat-visible reply used when a command could not be delivered.
// The webhook variant repeats the command so the utterance is never lost.
func FallbackMessage(kind provider.Kind, command string, err *RoutingError) string {
	detail := "unknown error"
	if err != nil && err.Detail != "" {
		detail = err.Detail
	}
	if kind == provider.KindWebhook {
		return fmt.Sprintf("Webhook error: %s. Using fallback response: \"%s\"", detail, command)
	}
	return fmt.Sprintf("Realtime error: %s. Please check your connection.", detail)
}
