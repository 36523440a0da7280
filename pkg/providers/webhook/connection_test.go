package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/errorsx"
	"github.com/harunnryd/airassist/pkg/events"
)

type webhookServer struct {
	mu       sync.Mutex
	payloads []map[string]any
	status   int
	body     string
}

func (s *webhookServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		s.mu.Lock()
		s.payloads = append(s.payloads, payload)
		status, body := s.status, s.body
		s.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (s *webhookServer) last() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[len(s.payloads)-1]
}

func newConnector() *Connector {
	c := New(Config{})
	c.now = func() time.Time { return time.Date(2026, 4, 2, 9, 30, 0, 123000000, time.UTC) }
	return c
}

func TestOpenSendsPing(t *testing.T) {
	ws := &webhookServer{}
	srv := httptest.NewServer(ws.handler(t))
	defer srv.Close()

	conn, err := newConnector().Open(context.Background(), srv.URL, provider.Hooks{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	p := ws.last()
	if p["type"] != "connection_test" || p["message"] != "ping" || p["timestamp"] == "" {
		t.Fatalf("unexpected ping payload %v", p)
	}
}

func TestOpenProbeFailure(t *testing.T) {
	ws := &webhookServer{status: http.StatusNotFound}
	srv := httptest.NewServer(ws.handler(t))
	defer srv.Close()

	_, err := newConnector().Open(context.Background(), srv.URL, provider.Hooks{})
	be, ok := provider.AsBackendError(err)
	if !ok || be.Status != http.StatusNotFound {
		t.Fatalf("expected 404 backend error, got %v", err)
	}
	if !errorsx.HasReason(err, errorsx.ReasonWebhookProbe) {
		t.Fatalf("expected webhook_probe reason")
	}
	if _, err := newConnector().Open(context.Background(), "  ", provider.Hooks{}); !provider.IsMissingCredential(err) {
		t.Fatalf("expected missing credential for empty url, got %v", err)
	}
}

func TestSendPayloadAndReplyExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "response field", body: `{"response":"Lights are on","message":"ignored"}`, want: "Lights are on"},
		{name: "message field", body: `{"message":"Queued"}`, want: "Queued"},
		{name: "json without fields", body: `{"ok":true}`, want: DefaultAck},
		{name: "raw text", body: "Workflow started", want: "Workflow started"},
		{name: "empty body", body: "", want: DefaultAck},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := &webhookServer{}
			srv := httptest.NewServer(ws.handler(t))
			defer srv.Close()
			conn, err := newConnector().Open(context.Background(), srv.URL, provider.Hooks{})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			ws.mu.Lock()
			ws.body = tc.body
			ws.mu.Unlock()

			ev, err := conn.Send(context.Background(), "turn on the lights")
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			if ev.Type != events.TypeResponseText || ev.Role != events.RoleAssistant || ev.Text != tc.want {
				t.Fatalf("unexpected event %+v", ev)
			}
			p := ws.last()
			if p["command"] != "turn on the lights" || p["type"] != "voice_command" {
				t.Fatalf("unexpected command payload %v", p)
			}
			if p["timestamp"] != "2026-04-02T09:30:00.123Z" {
				t.Fatalf("unexpected timestamp %v", p["timestamp"])
			}
		})
	}
}

func TestSendServerError(t *testing.T) {
	ws := &webhookServer{}
	srv := httptest.NewServer(ws.handler(t))
	defer srv.Close()
	conn, err := newConnector().Open(context.Background(), srv.URL, provider.Hooks{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ws.mu.Lock()
	ws.status = http.StatusInternalServerError
	ws.mu.Unlock()

	_, err = conn.Send(context.Background(), "turn on the lights")
	be, ok := provider.AsBackendError(err)
	if !ok {
		t.Fatalf("expected backend error, got %v", err)
	}
	if be.Status != 500 || be.Detail != "HTTP 500: Internal Server Error" {
		t.Fatalf("unexpected backend error %+v", be)
	}
	if !errorsx.HasReason(err, errorsx.ReasonWebhookSend) {
		t.Fatalf("expected webhook_send reason")
	}
}
