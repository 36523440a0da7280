package events

import "time"

// Type names a normalized event. Realtime wire types keep their protocol names.
type Type string

const (
	TypeSessionCreated   Type = "session.created"
	TypeResponseCreated  Type = "response.created"
	TypeOutputItemAdded  Type = "response.output_item.added"
	TypeContentPartAdded Type = "response.content_part.added"
	TypeContentPartDone  Type = "response.content_part.done"
	TypeResponseDone     Type = "response.done"
	TypeError            Type = "error"

	// TypeResponseText is a complete turn-based response.
	TypeResponseText Type = "response.text"
	// TypeFallback carries a locally built reply when a provider call failed.
	TypeFallback Type = "local.fallback"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PartType string

const (
	PartText  PartType = "text"
	PartAudio PartType = "audio"
)

// Event is a provider message decoupled from either wire format.
type Event struct {
	Type     Type
	Provider string
	ItemID   string
	Role     Role
	Text     string
	Part     PartType
	Model    string
	Err      string
	Time     time.Time
}

// Sink receives normalized events.
type Sink func(Event)
