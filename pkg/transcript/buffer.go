package transcript

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/logging"
)

const (
	Greeting     = "Hello! I'm Air Assist. How can I help you today?"
	ClearedReply = "Messages cleared. How can I help you?"
)

// Message is one chat entry.
type Message struct {
	ID        string      `json:"id" yaml:"id"`
	Role      events.Role `json:"role" yaml:"role"`
	Text      string      `json:"text" yaml:"text"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	// Streaming is true while an assistant response is still being written.
	Streaming bool `json:"-" yaml:"-"`
}

// Recorder persists closed messages.
type Recorder interface {
	Record(Message) error
}

// Options configures a Buffer. Zero values are fine.
type Options struct {
	Recorder Recorder
	Logger   *slog.Logger
	// OnChange is called outside the lock after a message was added or updated.
	OnChange func(Message)
}

// Buffer is an ordered chat transcript with unique IDs. Only the most recent assistant
// message may change, and only until the response that produced it is done.
type Buffer struct {
	mu       sync.RWMutex
	msgs     []Message
	ids      map[string]struct{}
	open     int
	recorder Recorder
	onChange func(Message)
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

func NewBuffer(opts Options) *Buffer {
	return &Buffer{
		ids:      make(map[string]struct{}),
		open:     -1,
		recorder: opts.Recorder,
		onChange: opts.OnChange,
		logger:   logging.NewComponentLogger(opts.Logger, "transcript"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Append adds a closed message. It returns false when the ID is already present.
func (b *Buffer) Append(msg Message) bool {
	msg.Streaming = false
	return b.add(msg)
}

// AddUser appends a user utterance.
func (b *Buffer) AddUser(text string, at time.Time) (Message, bool) {
	b.mu.RLock()
	msg := Message{ID: b.newID(), Role: events.RoleUser, Text: text, CreatedAt: at}
	if at.IsZero() {
		msg.CreatedAt = b.now()
	}
	b.mu.RUnlock()
	return msg, b.Append(msg)
}

// Apply folds a normalized provider event into the transcript.
func (b *Buffer) Apply(ev events.Event) {
	switch ev.Type {
	case events.TypeOutputItemAdded:
		role := ev.Role
		if role == "" {
			role = events.RoleAssistant
		}
		b.add(Message{ID: ev.ItemID, Role: role, Text: ev.Text, CreatedAt: ev.Time, Streaming: role == events.RoleAssistant})
	case events.TypeContentPartAdded:
		if ev.Part != events.PartText {
			return
		}
		if b.replaceOpen(ev.Text) {
			return
		}
		b.add(Message{ID: ev.ItemID, Role: events.RoleAssistant, Text: ev.Text, CreatedAt: ev.Time, Streaming: true})
	case events.TypeResponseDone:
		b.closeOpen()
	case events.TypeResponseText, events.TypeFallback, events.TypeError:
		text := ev.Text
		if text == "" {
			text = ev.Err
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		b.Append(Message{Role: events.RoleAssistant, Text: text, CreatedAt: ev.Time})
	}
}

// Messages returns a copy of the transcript in order.
func (b *Buffer) Messages() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Message(nil), b.msgs...)
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.msgs)
}

// Reset drops every message and, when greeting is set, starts over with it.
func (b *Buffer) Reset(greeting string) {
	b.mu.Lock()
	b.msgs = nil
	b.ids = make(map[string]struct{})
	b.open = -1
	b.mu.Unlock()
	if greeting != "" {
		b.Append(Message{Role: events.RoleAssistant, Text: greeting})
	}
}

func (b *Buffer) add(msg Message) bool {
	b.mu.Lock()
	if msg.ID == "" {
		msg.ID = b.newID()
	}
	if _, dup := b.ids[msg.ID]; dup {
		b.mu.Unlock()
		b.logger.Debug("transcript_duplicate_dropped", slog.String("message_id", msg.ID))
		return false
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = b.now()
	}
	closed, hadOpen := b.takeOpenLocked()
	b.ids[msg.ID] = struct{}{}
	b.msgs = append(b.msgs, msg)
	if msg.Streaming {
		b.open = len(b.msgs) - 1
	}
	b.mu.Unlock()

	if hadOpen {
		b.record(closed)
	}
	if !msg.Streaming {
		b.record(msg)
	}
	b.notify(msg)
	return true
}

func (b *Buffer) replaceOpen(text string) bool {
	b.mu.Lock()
	if b.open < 0 {
		b.mu.Unlock()
		return false
	}
	b.msgs[b.open].Text = text
	msg := b.msgs[b.open]
	b.mu.Unlock()
	b.notify(msg)
	return true
}

func (b *Buffer) closeOpen() {
	b.mu.Lock()
	msg, ok := b.takeOpenLocked()
	b.mu.Unlock()
	if ok {
		b.record(msg)
		b.notify(msg)
	}
}

func (b *Buffer) takeOpenLocked() (Message, bool) {
	if b.open < 0 {
		return Message{}, false
	}
	b.msgs[b.open].Streaming = false
	msg := b.msgs[b.open]
	b.open = -1
	return msg, true
}

func (b *Buffer) record(msg Message) {
	if b.recorder == nil {
		return
	}
	if err := b.recorder.Record(msg); err != nil {
		b.logger.Warn("transcript_record_failed",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()))
	}
}

func (b *Buffer) notify(msg Message) {
	if b.onChange != nil {
		b.onChange(msg)
	}
}
