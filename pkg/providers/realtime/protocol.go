package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/events"
)

type sessionCreate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type contentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type inboundItem struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type inboundError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// inboundFrame covers every text frame type the proxy sends.
type inboundFrame struct {
	Type   string        `json:"type"`
	ItemID string        `json:"item_id"`
	Item   *inboundItem  `json:"item"`
	Part   *contentPart  `json:"part"`
	Error  *inboundError `json:"error"`
	Text   string        `json:"text"`
	Role   string        `json:"role"`
	Model  string        `json:"model"`
}

type frameResult int

const (
	frameEvent frameResult = iota
	frameIgnored
	frameUnknown
)

// decodeFrame maps one text frame to a normalized event.
func decodeFrame(data []byte, now time.Time) (events.Event, frameResult, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return events.Event{}, frameIgnored, &provider.ParseError{Raw: truncate(string(data), 256), Err: err}
	}
	if f.Type == "" {
		return events.Event{}, frameIgnored, &provider.ParseError{Raw: truncate(string(data), 256), Err: errors.New("missing type field")}
	}

	ev := events.Event{Type: events.Type(f.Type), Provider: provider.KindRealtime.String(), ItemID: f.ItemID, Time: now}
	switch ev.Type {
	case events.TypeSessionCreated, events.TypeResponseCreated, events.TypeResponseDone:
		return ev, frameEvent, nil
	case events.TypeOutputItemAdded:
		if f.Item == nil || f.Item.Type != "message" {
			return ev, frameIgnored, nil
		}
		ev.ItemID = f.Item.ID
		ev.Role = events.Role(f.Item.Role)
		ev.Text = partsText(f.Item.Content)
		return ev, frameEvent, nil
	case events.TypeContentPartAdded, events.TypeContentPartDone:
		if f.Part == nil {
			return ev, frameIgnored, &provider.ParseError{Raw: truncate(string(data), 256), Err: fmt.Errorf("%s without part", f.Type)}
		}
		switch f.Part.Type {
		case "text":
			ev.Part = events.PartText
			ev.Text = f.Part.Text
		case "audio":
			ev.Part = events.PartAudio
			ev.Text = f.Part.Transcript
		default:
			return ev, frameIgnored, nil
		}
		return ev, frameEvent, nil
	case events.TypeError:
		msg := "unknown error"
		if f.Error != nil && f.Error.Message != "" {
			msg = f.Error.Message
		}
		ev.Err = msg
		ev.Text = fmt.Sprintf("Realtime error: %s", msg)
		return ev, frameEvent, nil
	case events.TypeResponseText:
		ev.Text = f.Text
		ev.Role = events.Role(f.Role)
		if ev.Role == "" {
			ev.Role = events.RoleAssistant
		}
		ev.Model = f.Model
		return ev, frameEvent, nil
	default:
		return ev, frameUnknown, nil
	}
}

func partsText(parts []contentPart) string {
	var b strings.Builder
	for _, p := range parts {
		switch {
		case p.Text != "":
			b.WriteString(p.Text)
		case p.Transcript != "":
			b.WriteString(p.Transcript)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
