package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/airassist/pkg/events"
)

type captureRecorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *captureRecorder) Record(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *captureRecorder) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestContentPartReplacesInProgressText(t *testing.T) {
	b := NewBuffer(Options{})
	b.AddUser("tell me a joke", time.Now())
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, ItemID: "item_1", Text: "Why did"})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, ItemID: "item_1", Text: "Why did the chicken cross the road?"})

	msgs := b.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	last := msgs[1]
	if last.Text != "Why did the chicken cross the road?" {
		t.Fatalf("expected replaced text, got %q", last.Text)
	}
	if !last.Streaming {
		t.Fatalf("expected message to stay open until done")
	}
}

func TestResponseDoneClosesStreamingMessage(t *testing.T) {
	rec := &captureRecorder{}
	b := NewBuffer(Options{Recorder: rec})
	b.Apply(events.Event{Type: events.TypeOutputItemAdded, ItemID: "item_1", Role: events.RoleAssistant})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, Text: "first"})
	b.Apply(events.Event{Type: events.TypeResponseDone})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, Text: "second turn"})

	msgs := b.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected closed turn plus new turn, got %d", len(msgs))
	}
	if msgs[0].ID != "item_1" || msgs[0].Text != "first" || msgs[0].Streaming {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if got := rec.texts(); len(got) != 1 || got[0] != "first" {
		t.Fatalf("expected only the closed message recorded, got %v", got)
	}
}

func TestAudioPartsIgnored(t *testing.T) {
	b := NewBuffer(Options{})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartAudio, Text: "ignored"})
	if b.Len() != 0 {
		t.Fatalf("expected audio part to be ignored")
	}
}

func TestDuplicateIDsDropped(t *testing.T) {
	b := NewBuffer(Options{})
	if !b.Append(Message{ID: "m1", Role: events.RoleUser, Text: "hello"}) {
		t.Fatalf("expected first append to succeed")
	}
	if b.Append(Message{ID: "m1", Role: events.RoleUser, Text: "hello again"}) {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if b.Len() != 1 {
		t.Fatalf("expected single message, got %d", b.Len())
	}
}

func TestAppendClosesPreviousOpenMessage(t *testing.T) {
	b := NewBuffer(Options{})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, Text: "partial"})
	b.AddUser("next question", time.Now())
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, Text: "new answer"})
	msgs := b.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "partial" || msgs[0].Streaming {
		t.Fatalf("expected earlier assistant message frozen, got %+v", msgs[0])
	}
}

func TestTurnResponsesAndFallbacksAppend(t *testing.T) {
	b := NewBuffer(Options{})
	b.Apply(events.Event{Type: events.TypeResponseText, Text: "It is sunny."})
	b.Apply(events.Event{Type: events.TypeFallback, Text: `Webhook error: HTTP 500. Using fallback response: "lights on"`})
	b.Apply(events.Event{Type: events.TypeResponseText})
	b.Apply(events.Event{Type: events.TypeSessionCreated})
	if b.Len() != 2 {
		t.Fatalf("expected 2 visible messages, got %d", b.Len())
	}
}

func TestResetWithGreeting(t *testing.T) {
	b := NewBuffer(Options{})
	b.AddUser("hello", time.Now())
	b.Reset(ClearedReply)
	msgs := b.Messages()
	if len(msgs) != 1 || msgs[0].Text != ClearedReply || msgs[0].Role != events.RoleAssistant {
		t.Fatalf("unexpected messages after reset %+v", msgs)
	}
}

func TestOnChangeSeesUpdates(t *testing.T) {
	var seen []string
	b := NewBuffer(Options{OnChange: func(m Message) { seen = append(seen, m.Text) }})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, Text: "a"})
	b.Apply(events.Event{Type: events.TypeContentPartAdded, Part: events.PartText, Text: "ab"})
	if strings.Join(seen, ",") != "a,ab" {
		t.Fatalf("unexpected change notifications %v", seen)
	}
}

func TestExportFormats(t *testing.T) {
	msgs := []Message{
		{ID: "1", Role: events.RoleUser, Text: "lights on", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "2", Role: events.RoleAssistant, Text: "Done.", CreatedAt: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)},
	}

	var jsonl bytes.Buffer
	if err := Export(&jsonl, FormatJSONL, msgs); err != nil {
		t.Fatalf("jsonl export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(jsonl.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 jsonl lines, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode jsonl: %v", err)
	}
	if first["role"] != "user" || first["text"] != "lights on" {
		t.Fatalf("unexpected jsonl record %v", first)
	}

	var doc bytes.Buffer
	if err := Export(&doc, FormatYAML, msgs); err != nil {
		t.Fatalf("yaml export: %v", err)
	}
	var decoded yamlDocument
	if err := yaml.Unmarshal(doc.Bytes(), &decoded); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(decoded.Messages) != 2 || decoded.Messages[1].Text != "Done." {
		t.Fatalf("unexpected yaml document %+v", decoded)
	}

	if _, err := ParseFormat("csv"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
