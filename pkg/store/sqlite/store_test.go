package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/store"
	"github.com/harunnryd/airassist/pkg/transcript"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "airassist.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, path
}

func TestValuesSurviveReopen(t *testing.T) {
	s, path := openTemp(t)
	if err := s.Set(store.KeyActiveProvider, "webhook"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetBool(s, store.KeyWebhookConnected, true); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if err := s.Set(store.KeyActiveProvider, "realtime"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, err := store.LoadRecord(reopened)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.ActiveProvider != "realtime" || !rec.WebhookConnected {
		t.Fatalf("unexpected record %+v", rec)
	}
	if v, err := reopened.Get("never_set"); err != nil || v != "" {
		t.Fatalf("expected empty missing key, got %q (%v)", v, err)
	}
}

func TestSetNotifiesSubscribers(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	var got string
	s.Subscribe(func(key, value string) { got = key + "=" + value })
	if err := s.Set(store.KeyActiveProvider, "webhook"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got != "active_provider=webhook" {
		t.Fatalf("unexpected notification %q", got)
	}
}

func TestMessagesHistory(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"lights on", "Turning the lights on.", "thanks"} {
		role := events.RoleUser
		if i == 1 {
			role = events.RoleAssistant
		}
		m := transcript.Message{ID: text, Role: role, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.Record(m); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.Record(transcript.Message{ID: "thanks", Role: events.RoleUser, Text: "thanks!", CreatedAt: base}); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	all, err := s.Messages(0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(all) != 3 || all[2].Text != "thanks!" || all[1].Role != events.RoleAssistant {
		t.Fatalf("unexpected history %+v", all)
	}
	if !all[0].CreatedAt.Equal(base) {
		t.Fatalf("expected timestamp round trip, got %v", all[0].CreatedAt)
	}

	tail, err := s.Messages(2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(tail) != 2 || tail[0].ID != "Turning the lights on." {
		t.Fatalf("unexpected tail %+v", tail)
	}

	if err := s.ClearMessages(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if all, _ := s.Messages(0); len(all) != 0 {
		t.Fatalf("expected empty history, got %d", len(all))
	}
}
