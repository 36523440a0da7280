package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/errorsx"
	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/logging"
	"github.com/harunnryd/airassist/pkg/redact"
)

// DefaultAck is returned when the webhook answers 2xx with an empty body.
const DefaultAck = "Command processed successfully"

// maxBody caps how much of a webhook response is read.
const maxBody = 1 << 20

type Config struct {
	Client *http.Client
	// Ack overrides DefaultAck.
	Ack    string
	Logger *slog.Logger
}

// Connector probes and talks to a workflow webhook. The credential is the webhook URL.
// There is no persistent channel: "connected" only means the last ping succeeded.
type Connector struct {
	client *http.Client
	ack    string
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config) *Connector {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Ack == "" {
		cfg.Ack = DefaultAck
	}
	return &Connector{
		client: cfg.Client,
		ack:    cfg.Ack,
		logger: logging.NewComponentLogger(cfg.Logger, "webhook"),
		now:    time.Now,
	}
}

func (c *Connector) Kind() provider.Kind { return provider.KindWebhook }

// Open sends a connection_test ping and returns a connection when it is answered with 2xx.
func (c *Connector) Open(ctx context.Context, url string, hooks provider.Hooks) (provider.Connection, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &provider.MissingCredentialError{Provider: provider.KindWebhook}
	}
	conn := &Connection{url: url, connector: c}
	payload := map[string]any{
		"type":      "connection_test",
		"message":   "ping",
		"timestamp": c.now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := conn.post(ctx, payload); err != nil {
		c.logger.Warn("webhook_probe_failed",
			slog.String("url", redact.URL(url)),
			slog.String("error", redact.Text(err.Error())))
		return nil, errorsx.Wrap(err, errorsx.ReasonWebhookProbe)
	}
	c.logger.Info("webhook_probe_ok", slog.String("url", redact.URL(url)))
	return conn, nil
}

// Connection posts commands to one webhook URL.
type Connection struct {
	url       string
	connector *Connector
}

// Send posts a voice_command and extracts the reply text.
func (c *Connection) Send(ctx context.Context, command string) (events.Event, error) {
	now := c.connector.now()
	payload := map[string]any{
		"command":   command,
		"timestamp": now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"type":      "voice_command",
	}
	body, err := c.post(ctx, payload)
	if err != nil {
		return events.Event{}, errorsx.Wrap(err, errorsx.ReasonWebhookSend)
	}
	return events.Event{
		Type:     events.TypeResponseText,
		Provider: provider.KindWebhook.String(),
		Role:     events.RoleAssistant,
		Text:     replyText(body, c.connector.ack),
		Time:     now,
	}, nil
}

// Close is a no-op; there is nothing to tear down.
func (c *Connection) Close() error { return nil }

func (c *Connection) post(ctx context.Context, payload map[string]any) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, &provider.TransportError{Provider: provider.KindWebhook, Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.connector.client.Do(req)
	if err != nil {
		return nil, &provider.TransportError{Provider: provider.KindWebhook, Op: "post", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.BackendError{
			Provider: provider.KindWebhook,
			Status:   resp.StatusCode,
			Detail:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	if err != nil {
		return nil, &provider.TransportError{Provider: provider.KindWebhook, Op: "read", Err: err}
	}
	return body, nil
}

// replyText prefers a JSON "response" field, then "message", then the raw body, then ack.
func replyText(body []byte, ack string) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ack
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return text
	}
	for _, key := range []string{"response", "message"} {
		if s, ok := parsed[key].(string); ok && s != "" {
			return s
		}
	}
	return ack
}

var (
	_ provider.Connector  = (*Connector)(nil)
	_ provider.Connection = (*Connection)(nil)
)
