package airassist

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/capture"
	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/configutil"
	"github.com/harunnryd/airassist/pkg/providers/deepgram"
	"github.com/harunnryd/airassist/pkg/providers/mock"
	"github.com/harunnryd/airassist/pkg/providers/realtime"
	"github.com/harunnryd/airassist/pkg/providers/webhook"
)

// ConnectorFactory builds the connector serving kind from its settings block.
type ConnectorFactory func(kind provider.Kind, vc VendorConfig, logger *slog.Logger) (provider.Connector, error)

// CaptureFactory builds a capture source reading from input.
type CaptureFactory func(vc VendorConfig, input io.Reader, logger *slog.Logger) (capture.Source, error)

type ProviderRegistry struct {
	connectors map[string]ConnectorFactory
	capture    map[string]CaptureFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		connectors: make(map[string]ConnectorFactory),
		capture:    make(map[string]CaptureFactory),
	}
}

// DefaultRegistry knows the realtime, webhook and mock connectors and the lines and
// deepgram capture sources.
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterConnector("realtime", buildRealtime)
	r.RegisterConnector("webhook", buildWebhook)
	r.RegisterConnector("mock", buildMock)
	r.RegisterCapture("lines", buildLines)
	r.RegisterCapture("deepgram", buildDeepgram)
	return r
}

func (r *ProviderRegistry) RegisterConnector(name string, factory ConnectorFactory) {
	r.connectors[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterCapture(name string, factory CaptureFactory) {
	r.capture[normalizeName(name)] = factory
}

// BuildConnector builds kind's connector. An empty provider name means the kind itself.
func (r *ProviderRegistry) BuildConnector(kind provider.Kind, vc VendorConfig, logger *slog.Logger) (provider.Connector, error) {
	name := vc.Provider
	if strings.TrimSpace(name) == "" {
		name = kind.String()
	}
	fn := r.connectors[normalizeName(name)]
	if fn == nil {
		return nil, fmt.Errorf("connector not registered: %s", name)
	}
	c, err := fn(kind, vc, logger)
	if err != nil {
		return nil, fmt.Errorf("build %s connector: %w", kind, err)
	}
	if c.Kind() != kind {
		return nil, fmt.Errorf("connector %s serves %s, not %s", name, c.Kind(), kind)
	}
	return c, nil
}

func (r *ProviderRegistry) BuildCapture(vc VendorConfig, input io.Reader, logger *slog.Logger) (capture.Source, error) {
	name := vc.Provider
	if strings.TrimSpace(name) == "" {
		name = "lines"
	}
	fn := r.capture[normalizeName(name)]
	if fn == nil {
		return nil, fmt.Errorf("capture provider not registered: %s", name)
	}
	return fn(vc, input, logger)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type realtimeSettings struct {
	WebsocketURL       string                 `mapstructure:"websocket_url"`
	BackendURL         string                 `mapstructure:"backend_url"`
	APIKey             string                 `mapstructure:"api_key"`
	HandshakeTimeoutMS *int                   `mapstructure:"handshake_timeout_ms"`
	RequestTimeoutMS   *int                   `mapstructure:"request_timeout_ms"`
	Session            realtime.SessionConfig `mapstructure:"session"`
	Chat               realtime.ChatConfig    `mapstructure:"chat"`
}

var realtimeSchema = configutil.Schema{
	Optional: []string{"websocket_url", "backend_url", "api_key", "handshake_timeout_ms", "request_timeout_ms", "session", "chat"},
}

func decodeRealtimeSettings(settings map[string]any) (realtimeSettings, error) {
	var out realtimeSettings
	if err := configutil.ValidateSettings(settings, realtimeSchema); err != nil {
		return out, fmt.Errorf("providers.realtime.settings: %w", err)
	}
	if err := configutil.DecodeSettings(settings, &out); err != nil {
		return out, fmt.Errorf("providers.realtime.settings: %w", err)
	}
	return out, nil
}

func buildRealtime(_ provider.Kind, vc VendorConfig, logger *slog.Logger) (provider.Connector, error) {
	s, err := decodeRealtimeSettings(vc.Settings)
	if err != nil {
		return nil, err
	}
	return realtime.New(realtime.Config{
		WebsocketURL:     s.WebsocketURL,
		BackendURL:       s.BackendURL,
		Session:          s.Session,
		Chat:             s.Chat,
		HandshakeTimeout: configutil.Millis(s.HandshakeTimeoutMS, 10*time.Second),
		HTTPClient:       &http.Client{Timeout: configutil.Millis(s.RequestTimeoutMS, 60*time.Second)},
		Logger:           logger,
	}), nil
}

type webhookSettings struct {
	URL       string `mapstructure:"url"`
	TimeoutMS *int   `mapstructure:"timeout_ms"`
	Ack       string `mapstructure:"ack"`
}

var webhookSchema = configutil.Schema{Optional: []string{"url", "timeout_ms", "ack"}}

func decodeWebhookSettings(settings map[string]any) (webhookSettings, error) {
	var out webhookSettings
	if err := configutil.ValidateSettings(settings, webhookSchema); err != nil {
		return out, fmt.Errorf("providers.webhook.settings: %w", err)
	}
	if err := configutil.DecodeSettings(settings, &out); err != nil {
		return out, fmt.Errorf("providers.webhook.settings: %w", err)
	}
	return out, nil
}

func buildWebhook(_ provider.Kind, vc VendorConfig, logger *slog.Logger) (provider.Connector, error) {
	s, err := decodeWebhookSettings(vc.Settings)
	if err != nil {
		return nil, err
	}
	return webhook.New(webhook.Config{
		Client: &http.Client{Timeout: configutil.Millis(s.TimeoutMS, 30*time.Second)},
		Ack:    s.Ack,
		Logger: logger,
	}), nil
}

func buildMock(kind provider.Kind, _ VendorConfig, _ *slog.Logger) (provider.Connector, error) {
	return mock.NewConnector(kind), nil
}

// seedCredential returns the credential configured for kind, if any.
func seedCredential(kind provider.Kind, vc VendorConfig) string {
	switch kind {
	case provider.KindRealtime:
		s, _ := decodeRealtimeSettings(vc.Settings)
		return strings.TrimSpace(s.APIKey)
	case provider.KindWebhook:
		s, _ := decodeWebhookSettings(vc.Settings)
		return strings.TrimSpace(s.URL)
	}
	return ""
}

func buildLines(_ VendorConfig, input io.Reader, _ *slog.Logger) (capture.Source, error) {
	if input == nil {
		return nil, fmt.Errorf("lines capture needs an input stream")
	}
	return capture.NewLineSource(input), nil
}

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     *int   `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
}

var deepgramSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "language", "sample_rate", "encoding", "utterance_end_ms"},
}

func decodeDeepgramSettings(settings map[string]any) (deepgramSettings, error) {
	var out deepgramSettings
	if err := configutil.ValidateSettings(settings, deepgramSchema); err != nil {
		return out, fmt.Errorf("capture.settings: %w", err)
	}
	if err := configutil.DecodeSettings(settings, &out); err != nil {
		return out, fmt.Errorf("capture.settings: %w", err)
	}
	return out, nil
}

func buildDeepgram(vc VendorConfig, input io.Reader, _ *slog.Logger) (capture.Source, error) {
	s, err := decodeDeepgramSettings(vc.Settings)
	if err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("deepgram capture needs an audio stream")
	}
	return deepgram.New(deepgram.Config{
		APIKey:         s.APIKey,
		Model:          s.Model,
		Language:       s.Language,
		SampleRate:     configutil.IntValue(s.SampleRate, 16000),
		Encoding:       s.Encoding,
		UtteranceEndMS: configutil.IntValue(s.UtteranceEndMS, 1000),
		Audio:          input,
	}), nil
}
