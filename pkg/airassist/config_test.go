package airassist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airassist.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AIRASSIST_STORE_PATH", filepath.Join(t.TempDir(), "state.db"))
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers.Default != "webhook" {
		t.Fatalf("expected webhook default, got %q", cfg.Providers.Default)
	}
	if cfg.RouteTimeout().Seconds() != 30 || cfg.ReconcileInterval().Seconds() != 3 {
		t.Fatalf("unexpected session timings %v %v", cfg.RouteTimeout(), cfg.ReconcileInterval())
	}
	if cfg.DuplicateWindow().Milliseconds() != 3000 || cfg.Dispatcher.MinLength != 3 {
		t.Fatalf("unexpected dispatcher defaults %+v", cfg.Dispatcher)
	}
	if !cfg.Privacy.RedactPII || !cfg.Transcript.Greeting {
		t.Fatalf("expected privacy and greeting on by default")
	}
}

func TestLoadConfigFileAndEnvOverrides(t *testing.T) {
	t.Setenv("HOOK_HOST", "hooks.example.com")
	t.Setenv("AIRASSIST_PROVIDER", "realtime")
	t.Setenv("AIRASSIST_REALTIME_API_KEY", "sk-test")
	path := writeConfig(t, `
environment: staging
store:
  path: `+filepath.Join(t.TempDir(), "state.db")+`
providers:
  default: webhook
  webhook:
    settings:
      url: https://${HOOK_HOST}/assist
      timeout_ms: 5000
dispatcher:
  replacements:
    air con: air conditioner
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers.Default != "realtime" {
		t.Fatalf("expected env to override provider, got %q", cfg.Providers.Default)
	}
	if got := seedCredential("webhook", cfg.Providers.Webhook); got != "https://hooks.example.com/assist" {
		t.Fatalf("expected expanded webhook url, got %q", got)
	}
	if got := seedCredential("realtime", cfg.Providers.Realtime); got != "sk-test" {
		t.Fatalf("expected realtime key from env, got %q", got)
	}
	if cfg.Dispatcher.Replacements["air con"] != "air conditioner" {
		t.Fatalf("unexpected replacements %v", cfg.Dispatcher.Replacements)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"providers.default": func(c *Config) { c.Providers.Default = "carrier-pigeon" },
		"websocket_url": func(c *Config) {
			c.Providers.Realtime.Settings = map[string]any{"websocket_url": "http://localhost:3001"}
		},
		"providers.webhook.settings.url": func(c *Config) {
			c.Providers.Webhook.Settings = map[string]any{"url": "ftp://example.com"}
		},
		"unknown setting": func(c *Config) {
			c.Providers.Webhook.Settings = map[string]any{"retries": 3}
		},
		"capture.provider":      func(c *Config) { c.Capture.Provider = "whisper" },
		"api_key":               func(c *Config) { c.Capture.Provider = "deepgram" },
		"route_timeout_ms":      func(c *Config) { c.Session.RouteTimeoutMS = 0 },
		"reconcile_interval_ms": func(c *Config) { c.Session.ReconcileIntervalMS = 10 },
		"sample_rate":           func(c *Config) { c.Observability.SampleRate = 1.5 },
		"store.path":            func(c *Config) { c.Store.Path = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestWarningsInProduction(t *testing.T) {
	cfg := DefaultConfig()
	if w := cfg.Warnings(); len(w) != 0 {
		t.Fatalf("expected no warnings in development, got %v", w)
	}
	cfg.Environment = "production"
	cfg.Privacy.RedactPII = false
	cfg.Providers.Webhook.Settings = map[string]any{"url": "https://hooks.example.com/assist"}
	w := cfg.Warnings()
	joined := strings.Join(w, "\n")
	for _, want := range []string{"websocket_url should use wss", "backend_url points at localhost", "redact_pii"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning containing %q, got %v", want, w)
		}
	}
	if strings.Contains(joined, "webhook") {
		t.Fatalf("secure webhook url should not warn: %v", w)
	}
}
