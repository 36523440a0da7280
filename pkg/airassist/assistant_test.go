package airassist

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/metrics"
	"github.com/harunnryd/airassist/pkg/session"
	"github.com/harunnryd/airassist/pkg/store"
	"github.com/harunnryd/airassist/pkg/transcript"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "state.db")
	cfg.Providers.Realtime.Provider = "mock"
	cfg.Providers.Webhook = VendorConfig{
		Provider: "mock",
		Settings: map[string]any{"url": "https://hooks.example.com/assist"},
	}
	cfg.Session.DisableReconcile = true
	cfg.Session.RouteTimeoutMS = 2000
	cfg.Observability.ArtifactsDir = filepath.Join(dir, "artifacts")
	return cfg
}

func startAssistant(t *testing.T, opts Options) *Assistant {
	t.Helper()
	a, err := New(opts)
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return a
}

func texts(msgs []transcript.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestAssistantSubmitRoutesToWebhook(t *testing.T) {
	observer := metrics.NewMemoryObserver()
	a := startAssistant(t, Options{Config: testConfig(t), Observer: observer})

	res, err := a.Submit(context.Background(), "turn on the lights")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Event.Text != "webhook ack: turn on the lights" {
		t.Fatalf("unexpected reply %+v", res.Event)
	}
	got := texts(a.Messages())
	want := []string{transcript.Greeting, "turn on the lights", "webhook ack: turn on the lights"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected transcript %v", got)
	}

	st := a.Status()
	if st.Active != provider.KindWebhook || st.Messages != 3 {
		t.Fatalf("unexpected status %+v", st)
	}
	for _, ps := range st.Providers {
		if ps.Provider == provider.KindWebhook && ps.State != session.StateConnected {
			t.Fatalf("expected webhook connected, got %s", ps.State)
		}
		if ps.Provider == provider.KindRealtime && ps.State != session.StateDisconnected {
			t.Fatalf("expected realtime disconnected, got %s", ps.State)
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if observer.Count(metrics.EventCommandAccepted) != 1 {
		t.Fatalf("expected one accepted command metric")
	}
	for _, ev := range observer.Snapshot() {
		if ev.Tag(metrics.TagTraceID) != a.TraceID() {
			t.Fatalf("expected trace id on %s", ev.Name)
		}
	}
	timeline := filepath.Join(testArtifactsDir(a), a.TraceID()+".jsonl")
	if _, err := os.Stat(timeline); err != nil {
		t.Fatalf("expected timeline artifact: %v", err)
	}
}

func testArtifactsDir(a *Assistant) string { return a.cfg.Observability.ArtifactsDir }

func TestAssistantRestoresHistoryAndSession(t *testing.T) {
	cfg := testConfig(t)
	a := startAssistant(t, Options{Config: cfg})
	if _, err := a.Submit(context.Background(), "what's the temperature"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := a.SetCredential(provider.KindWebhook, "https://hooks.example.com/other"); err != nil {
		t.Fatalf("set credential: %v", err)
	}
	_ = a.Close()

	b := startAssistant(t, Options{Config: cfg})
	defer b.Close()
	got := texts(b.Messages())
	if len(got) != 3 || got[0] != transcript.Greeting || got[1] != "what's the temperature" {
		t.Fatalf("expected restored history without a second greeting, got %v", got)
	}
	key, _ := store.CredentialKey("webhook")
	cred, err := b.store.Get(key)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if cred != "https://hooks.example.com/other" {
		t.Fatalf("configured url must not overwrite a runtime credential, got %q", cred)
	}
}

func TestAssistantClear(t *testing.T) {
	a := startAssistant(t, Options{Config: testConfig(t)})
	defer a.Close()

	if _, err := a.Submit(context.Background(), "lights off"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := a.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := texts(a.Messages()); len(got) != 1 || got[0] != transcript.ClearedReply {
		t.Fatalf("unexpected transcript after clear %v", got)
	}
	res, err := a.Submit(context.Background(), "lights off")
	if err != nil || !res.Accepted {
		t.Fatalf("expected clear to forget the last command, got %+v err=%v", res, err)
	}
	hist, err := a.history.Messages(0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 || hist[0].Text != transcript.ClearedReply {
		t.Fatalf("expected persisted history to restart after clear, got %v", texts(hist))
	}
}

func TestAssistantRunConsumesLines(t *testing.T) {
	cfg := testConfig(t)
	input := strings.NewReader("turn on the lights\nturn on the lights\nok\nset heat to 22\n")
	a := startAssistant(t, Options{Config: cfg, Input: input})
	defer a.Close()

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := texts(a.Messages())
	want := []string{
		transcript.Greeting,
		"turn on the lights", "webhook ack: turn on the lights",
		"set heat to 22", "webhook ack: set heat to 22",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected transcript %v", got)
	}
}

func TestAssistantSwitchToRealtimeWithoutCredential(t *testing.T) {
	a := startAssistant(t, Options{Config: testConfig(t)})
	defer a.Close()

	if err := a.SetActiveProvider(provider.KindRealtime); err != nil {
		t.Fatalf("switch: %v", err)
	}
	res, err := a.Submit(context.Background(), "open the window")
	var rerr *session.RoutingError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected routing error, got %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected command accepted before routing")
	}
	msgs := a.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != events.RoleAssistant || !strings.HasPrefix(last.Text, "Realtime error:") {
		t.Fatalf("expected realtime fallback, got %+v", last)
	}
	if a.Status().Active != provider.KindRealtime {
		t.Fatalf("expected realtime active")
	}
}

func TestAssistantExport(t *testing.T) {
	a := startAssistant(t, Options{Config: testConfig(t)})
	defer a.Close()
	if _, err := a.Submit(context.Background(), "fan speed high"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var buf bytes.Buffer
	if err := a.Export(&buf, transcript.FormatYAML); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "messages:") || !strings.Contains(out, "fan speed high") {
		t.Fatalf("unexpected yaml export:\n%s", out)
	}
}

func TestNewFailsOnUnknownConnector(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Realtime.Provider = "carrier-pigeon"
	if _, err := New(Options{Config: cfg, Store: store.NewMemory()}); err == nil {
		t.Fatalf("expected unknown connector error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := startAssistant(t, Options{Config: testConfig(t), Store: store.NewMemory()})
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
