package store

import (
	"errors"
	"testing"
)

func TestMemoryBooleansAsStrings(t *testing.T) {
	m := NewMemory()
	if err := SetBool(m, KeyRealtimeConnected, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := m.Snapshot()[KeyRealtimeConnected]; got != "true" {
		t.Fatalf("expected literal \"true\", got %q", got)
	}
	if err := SetBool(m, KeyRealtimeConnected, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err := GetBool(m, KeyRealtimeConnected)
	if err != nil || ok {
		t.Fatalf("expected false, got %v (%v)", ok, err)
	}
	if v, _ := m.Get("missing"); v != "" {
		t.Fatalf("expected missing key to read empty, got %q", v)
	}
}

func TestMemoryNotifiesSubscribers(t *testing.T) {
	m := NewMemory()
	var seen []string
	unsubscribe := m.Subscribe(func(key, value string) {
		seen = append(seen, key+"="+value)
	})
	_ = m.Set(KeyActiveProvider, "webhook")
	unsubscribe()
	_ = m.Set(KeyActiveProvider, "realtime")
	if len(seen) != 1 || seen[0] != "active_provider=webhook" {
		t.Fatalf("unexpected notifications %v", seen)
	}
}

func TestLoadRecord(t *testing.T) {
	m := NewMemory()
	_ = m.Set(KeyActiveProvider, "realtime")
	_ = m.Set(KeyRealtimeConnected, "true")
	_ = m.Set(KeyRealtimeAPIKey, "sk-test")
	_ = m.Set(KeyWebhookURL, "https://hooks.example.com/air")
	rec, err := LoadRecord(m)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ActiveProvider != "realtime" || !rec.RealtimeConnected || rec.WebhookConnected {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Credentials["webhook"] != "https://hooks.example.com/air" {
		t.Fatalf("unexpected webhook credential %q", rec.Credentials["webhook"])
	}
}

func TestLoadRecordJoinsReadErrors(t *testing.T) {
	_, err := LoadRecord(failingStore{})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !errors.Is(err, errDisk) {
		t.Fatalf("expected underlying error, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	if ConnectedKey("Webhook") != KeyWebhookConnected {
		t.Fatalf("unexpected connected key")
	}
	if k, err := CredentialKey("realtime"); err != nil || k != KeyRealtimeAPIKey {
		t.Fatalf("unexpected credential key %q (%v)", k, err)
	}
	if _, err := CredentialKey("telegram"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

var errDisk = errors.New("disk gone")

type failingStore struct{}

func (failingStore) Get(string) (string, error) { return "", errDisk }
func (failingStore) Set(string, string) error   { return errDisk }
