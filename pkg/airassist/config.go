package airassist

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/configutil"
)

type Config struct {
	AppName       string              `mapstructure:"app_name"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Store         StoreConfig         `mapstructure:"store"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Session       SessionConfig       `mapstructure:"session"`
	Dispatcher    DispatcherConfig    `mapstructure:"dispatcher"`
	Capture       VendorConfig        `mapstructure:"capture"`
	Transcript    TranscriptConfig    `mapstructure:"transcript"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type StoreConfig struct {
	// Path of the SQLite database; ":memory:" keeps everything in process.
	Path string `mapstructure:"path"`
}

type ProvidersConfig struct {
	// Default is the active provider used when nothing is persisted yet.
	Default  string       `mapstructure:"default"`
	Realtime VendorConfig `mapstructure:"realtime"`
	Webhook  VendorConfig `mapstructure:"webhook"`
}

type SessionConfig struct {
	RouteTimeoutMS      int  `mapstructure:"route_timeout_ms"`
	ReconcileIntervalMS int  `mapstructure:"reconcile_interval_ms"`
	DisableReconcile    bool `mapstructure:"disable_reconcile"`
}

type DispatcherConfig struct {
	DuplicateWindowMS int               `mapstructure:"duplicate_window_ms"`
	MinLength         int               `mapstructure:"min_length"`
	Replacements      map[string]string `mapstructure:"replacements"`
}

type TranscriptConfig struct {
	Greeting     bool `mapstructure:"greeting"`
	HistoryLimit int  `mapstructure:"history_limit"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string  `mapstructure:"artifacts_dir"`
	RetentionDays int     `mapstructure:"retention_days"`
	MetricsFile   string  `mapstructure:"metrics_file"`
	SampleRate    float64 `mapstructure:"sample_rate"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// EnvOverrides are read from the process environment after the file, so deploys
// can inject secrets without editing YAML.
type EnvOverrides struct {
	Environment    string `env:"AIRASSIST_ENV"`
	LogLevel       string `env:"AIRASSIST_LOG_LEVEL"`
	StorePath      string `env:"AIRASSIST_STORE_PATH"`
	Provider       string `env:"AIRASSIST_PROVIDER"`
	BackendURL     string `env:"AIRASSIST_BACKEND_URL"`
	WebsocketURL   string `env:"AIRASSIST_WEBSOCKET_URL"`
	WebhookURL     string `env:"AIRASSIST_WEBHOOK_URL"`
	RealtimeAPIKey string `env:"AIRASSIST_REALTIME_API_KEY"`
	DeepgramAPIKey string `env:"DEEPGRAM_API_KEY"`
}

func (c Config) RouteTimeout() time.Duration {
	return time.Duration(c.Session.RouteTimeoutMS) * time.Millisecond
}

func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Session.ReconcileIntervalMS) * time.Millisecond
}

func (c Config) DuplicateWindow() time.Duration {
	return time.Duration(c.Dispatcher.DuplicateWindowMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "Air Assist")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("providers.default", "webhook")
	v.SetDefault("providers.realtime.settings.websocket_url", "ws://localhost:3001/openai-realtime")
	v.SetDefault("providers.realtime.settings.backend_url", "http://localhost:3001")
	v.SetDefault("providers.webhook.settings.timeout_ms", 30000)
	v.SetDefault("session.route_timeout_ms", 30000)
	v.SetDefault("session.reconcile_interval_ms", 3000)
	v.SetDefault("session.disable_reconcile", false)
	v.SetDefault("dispatcher.duplicate_window_ms", 3000)
	v.SetDefault("dispatcher.min_length", 3)
	v.SetDefault("capture.provider", "lines")
	v.SetDefault("transcript.greeting", true)
	v.SetDefault("transcript.history_limit", 200)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", true)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "airassist.db"
	}
	return dir + string(os.PathSeparator) + "airassist" + string(os.PathSeparator) + "airassist.db"
}

// DefaultConfig returns the built-in defaults without reading files or the environment.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// LoadConfig reads path (optional; "" uses defaults only), a .env file in the working
// directory when present, and AIRASSIST_* overrides, then validates the result.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)

	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyOverrides(o EnvOverrides) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&c.Environment, o.Environment)
	set(&c.LogLevel, o.LogLevel)
	set(&c.Store.Path, o.StorePath)
	set(&c.Providers.Default, o.Provider)

	setting := func(vc *VendorConfig, key, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		if vc.Settings == nil {
			vc.Settings = make(map[string]any)
		}
		vc.Settings[key] = v
	}
	setting(&c.Providers.Realtime, "backend_url", o.BackendURL)
	setting(&c.Providers.Realtime, "websocket_url", o.WebsocketURL)
	setting(&c.Providers.Realtime, "api_key", o.RealtimeAPIKey)
	setting(&c.Providers.Webhook, "url", o.WebhookURL)
	if strings.EqualFold(c.Capture.Provider, "deepgram") {
		setting(&c.Capture, "api_key", o.DeepgramAPIKey)
	}
}

func (c *Config) Validate() error {
	if _, err := provider.ParseKind(c.Providers.Default); err != nil {
		return fmt.Errorf("providers.default: %w", err)
	}
	if err := configutil.RequireString(c.Store.Path, "store.path"); err != nil {
		return err
	}
	rs, err := decodeRealtimeSettings(c.Providers.Realtime.Settings)
	if err != nil {
		return err
	}
	if err := configutil.RequireURL(rs.WebsocketURL, "providers.realtime.settings.websocket_url", "ws", "wss"); err != nil {
		return err
	}
	if err := configutil.RequireURL(rs.BackendURL, "providers.realtime.settings.backend_url", "http", "https"); err != nil {
		return err
	}
	ws, err := decodeWebhookSettings(c.Providers.Webhook.Settings)
	if err != nil {
		return err
	}
	if ws.URL != "" {
		if err := configutil.RequireURL(ws.URL, "providers.webhook.settings.url", "http", "https"); err != nil {
			return err
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Capture.Provider)) {
	case "lines", "":
	case "deepgram":
		if _, err := decodeDeepgramSettings(c.Capture.Settings); err != nil {
			return err
		}
	default:
		return fmt.Errorf("capture.provider %q is not supported", c.Capture.Provider)
	}
	if c.Session.RouteTimeoutMS <= 0 {
		return fmt.Errorf("session.route_timeout_ms must be positive")
	}
	if c.Session.ReconcileIntervalMS < 1000 {
		return fmt.Errorf("session.reconcile_interval_ms must be at least 1000")
	}
	if c.Dispatcher.DuplicateWindowMS < 0 || c.Dispatcher.MinLength < 0 {
		return fmt.Errorf("dispatcher settings must not be negative")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1")
	}
	return nil
}

// Warnings lists non-fatal problems, such as plaintext URLs outside development.
func (c *Config) Warnings() []string {
	var out []string
	production := strings.EqualFold(c.Environment, "production")
	rs, _ := decodeRealtimeSettings(c.Providers.Realtime.Settings)
	ws, _ := decodeWebhookSettings(c.Providers.Webhook.Settings)
	check := func(path, raw, secure string) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		if production && !strings.EqualFold(u.Scheme, secure) {
			out = append(out, fmt.Sprintf("%s should use %s in production", path, secure))
		}
		if production && isLocalHost(u.Hostname()) {
			out = append(out, fmt.Sprintf("%s points at %s in production", path, u.Hostname()))
		}
	}
	check("providers.realtime.settings.websocket_url", rs.WebsocketURL, "wss")
	check("providers.realtime.settings.backend_url", rs.BackendURL, "https")
	check("providers.webhook.settings.url", ws.URL, "https")
	if !c.Privacy.RedactPII && production {
		out = append(out, "privacy.redact_pii is disabled in production")
	}
	return out
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Providers.Realtime.Settings = expandSettings(cfg.Providers.Realtime.Settings)
	cfg.Providers.Webhook.Settings = expandSettings(cfg.Providers.Webhook.Settings)
	cfg.Capture.Settings = expandSettings(cfg.Capture.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				v.SetMapIndex(key, reflect.ValueOf(os.ExpandEnv(v.MapIndex(key).String())))
			}
		}
	}
}
