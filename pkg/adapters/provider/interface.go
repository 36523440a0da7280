package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/airassist/pkg/events"
)

// Kind identifies one of the two backend integrations.
type Kind string

const (
	KindRealtime Kind = "realtime"
	KindWebhook  Kind = "webhook"
)

// Kinds lists every provider in a stable order.
var Kinds = []Kind{KindRealtime, KindWebhook}

func (k Kind) String() string { return string(k) }

// Other returns the provider that is mutually exclusive with k.
func (k Kind) Other() Kind {
	if k == KindRealtime {
		return KindWebhook
	}
	return KindRealtime
}

// ParseKind accepts the persisted forms plus a couple of legacy aliases.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "realtime", "openai":
		return KindRealtime, nil
	case "webhook", "n8n":
		return KindWebhook, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

// Hooks are lifecycle callbacks a connection fires after Open returns.
// Both may be called from the connection's own goroutines.
type Hooks struct {
	OnEvent      func(events.Event)
	OnDisconnect func(err error)
}

// Event calls OnEvent when set.
func (h Hooks) Event(ev events.Event) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

// Disconnect calls OnDisconnect when set.
func (h Hooks) Disconnect(err error) {
	if h.OnDisconnect != nil {
		h.OnDisconnect(err)
	}
}

// Connector opens connections for a single provider kind.
// Every Open call yields an independent connection so stale attempts can be closed in isolation.
type Connector interface {
	Kind() Kind
	// Open blocks until the backend accepted the connection or failed.
	Open(ctx context.Context, credential string, hooks Hooks) (Connection, error)
}

// Connection is an open channel to one backend.
type Connection interface {
	// Send delivers a user command and returns the normalized response.
	Send(ctx context.Context, command string) (events.Event, error)
	// Close tears down the transport. It must be safe to call more than once.
	Close() error
}
