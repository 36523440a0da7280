// Package airassist wires the provider session core into a runnable assistant.
package airassist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/airassist/pkg/adapters/capture"
	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/command"
	"github.com/harunnryd/airassist/pkg/logging"
	"github.com/harunnryd/airassist/pkg/metrics"
	"github.com/harunnryd/airassist/pkg/observers"
	"github.com/harunnryd/airassist/pkg/redact"
	"github.com/harunnryd/airassist/pkg/session"
	"github.com/harunnryd/airassist/pkg/store"
	"github.com/harunnryd/airassist/pkg/store/sqlite"
	"github.com/harunnryd/airassist/pkg/transcript"
)

// History is the durable side of the transcript.
type History interface {
	transcript.Recorder
	Messages(limit int) ([]transcript.Message, error)
	ClearMessages() error
}

type Options struct {
	Config   Config
	Registry *ProviderRegistry
	// Store overrides the SQLite store opened from Config.Store.Path.
	Store store.Store
	// Input feeds the capture source: text lines or raw audio, depending on the provider.
	Input  io.Reader
	Logger *slog.Logger
	// Observer receives every metric in addition to the configured observers.
	Observer  metrics.Observer
	OnMessage func(transcript.Message)
	OnState   func(session.StateChange)
}

// Assistant owns one voice session: store, provider manager, dispatcher and transcript.
type Assistant struct {
	cfg      Config
	logger   *slog.Logger
	traceID  string
	registry *ProviderRegistry
	input    io.Reader

	store      store.Store
	history    History
	transcript *transcript.Buffer
	manager    *session.Manager
	dispatcher *command.Dispatcher

	async    *metrics.AsyncObserver
	observer metrics.Observer
	closers  []func() error

	mu        sync.Mutex
	source    capture.Source
	closeOnce sync.Once
	closeErr  error
}

// StatusReport is a point-in-time view for the CLI.
type StatusReport struct {
	TraceID   string
	Active    provider.Kind
	Providers []session.Status
	Messages  int
	Drifts    int
}

func New(opts Options) (*Assistant, error) {
	cfg := opts.Config
	redact.SetEnabled(cfg.Privacy.RedactPII)
	logger := logging.NewComponentLogger(opts.Logger, "assistant")
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	a := &Assistant{
		cfg:      cfg,
		logger:   logger,
		traceID:  uuid.NewString(),
		registry: registry,
		input:    opts.Input,
	}

	a.buildObservers(opts.Observer)

	st := opts.Store
	if st == nil {
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			_ = a.closeResources()
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = db
		a.closers = append(a.closers, db.Close)
	}
	a.store = st
	if h, ok := st.(History); ok {
		a.history = h
	}

	bufOpts := transcript.Options{Logger: opts.Logger, OnChange: opts.OnMessage}
	if a.history != nil {
		bufOpts.Recorder = a.history
	}
	a.transcript = transcript.NewBuffer(bufOpts)

	connectors := make([]provider.Connector, 0, len(provider.Kinds))
	for _, kind := range provider.Kinds {
		c, err := registry.BuildConnector(kind, a.vendorConfig(kind), opts.Logger)
		if err != nil {
			_ = a.closeResources()
			return nil, err
		}
		connectors = append(connectors, c)
	}
	defaultKind, _ := provider.ParseKind(cfg.Providers.Default)

	mgr, err := session.NewManager(session.Options{
		Store:             st,
		Connectors:        connectors,
		Sink:              a.transcript.Apply,
		Logger:            opts.Logger,
		Observer:          a.observer,
		DefaultProvider:   defaultKind,
		RouteTimeout:      cfg.RouteTimeout(),
		ReconcileInterval: cfg.ReconcileInterval(),
		DisableReconcile:  cfg.Session.DisableReconcile,
	})
	if err != nil {
		_ = a.closeResources()
		return nil, err
	}
	if opts.OnState != nil {
		mgr.AddListener(session.StateListenerFunc(opts.OnState))
	}
	a.manager = mgr

	a.dispatcher = command.NewDispatcher(mgr, command.Options{
		DuplicateWindow: cfg.DuplicateWindow(),
		MinLength:       cfg.Dispatcher.MinLength,
		Replacements:    cfg.Dispatcher.Replacements,
		OnAccepted: func(text string, at time.Time) {
			a.transcript.AddUser(text, at)
		},
		Logger:   opts.Logger,
		Observer: a.observer,
	})

	logger.Info("airassist_init",
		slog.String("app", cfg.AppName),
		slog.String("environment", cfg.Environment),
		slog.String("trace_id", a.traceID),
		slog.String("default_provider", cfg.Providers.Default),
		slog.String("capture", cfg.Capture.Provider))
	for _, w := range cfg.Warnings() {
		logger.Warn("config_warning", slog.String("detail", w))
	}
	return a, nil
}

func (a *Assistant) buildObservers(extra metrics.Observer) {
	cfg := a.cfg.Observability
	list := []metrics.Observer{
		observers.NewLatencyObserver(a.logger),
		observers.NewLoggerObserver(a.logger),
	}
	if dir := strings.TrimSpace(cfg.ArtifactsDir); dir != "" {
		if cfg.RetentionDays > 0 {
			n, err := observers.PurgeArtifacts(dir, time.Duration(cfg.RetentionDays)*24*time.Hour, time.Now())
			if err != nil {
				a.logger.Warn("artifact_purge_failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.Info("artifacts_purged", slog.Int("count", n))
			}
		}
		timeline := observers.NewTimelineObserver(dir)
		usage := observers.NewUsageObserver(dir)
		list = append(list, timeline, usage)
		a.closers = append(a.closers, timeline.Close, usage.Close)
	}
	if path := strings.TrimSpace(cfg.MetricsFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			a.logger.Warn("metrics_file_open_failed", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			list = append(list, metrics.NewJSONLObserver(f))
			a.closers = append(a.closers, f.Close)
		}
	}
	if extra != nil {
		list = append(list, extra)
	}
	var inner metrics.Observer = observers.NewMultiObserver(list...)
	if cfg.SampleRate < 1 {
		inner = metrics.NewSamplingObserver(inner, cfg.SampleRate,
			metrics.EventConnectionState, metrics.EventProviderDrift, metrics.EventReconcile)
	}
	a.async = metrics.NewAsyncObserver(inner, 2048)
	a.observer = metrics.NewTagObserver(a.async, map[string]string{metrics.TagTraceID: a.traceID})
}

func (a *Assistant) vendorConfig(kind provider.Kind) VendorConfig {
	if kind == provider.KindRealtime {
		return a.cfg.Providers.Realtime
	}
	return a.cfg.Providers.Webhook
}

// TraceID identifies this session in logs, metrics and artifacts.
func (a *Assistant) TraceID() string { return a.traceID }

// Manager exposes the session manager for callers that need finer control.
func (a *Assistant) Manager() *session.Manager { return a.manager }

// Start seeds configured credentials, restores the persisted session and transcript,
// and starts background reconciliation.
func (a *Assistant) Start(ctx context.Context) error {
	for _, kind := range provider.Kinds {
		if err := a.seedCredential(kind); err != nil {
			return err
		}
	}
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	a.restoreTranscript()
	return nil
}

// A configured credential only fills an empty slot; values set at runtime win.
func (a *Assistant) seedCredential(kind provider.Kind) error {
	cred := seedCredential(kind, a.vendorConfig(kind))
	if cred == "" {
		return nil
	}
	key, err := store.CredentialKey(kind.String())
	if err != nil {
		return err
	}
	current, err := a.store.Get(key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if current != "" {
		return nil
	}
	if err := a.store.Set(key, cred); err != nil {
		return fmt.Errorf("seed %s: %w", key, err)
	}
	return nil
}

func (a *Assistant) restoreTranscript() {
	if a.history != nil {
		msgs, err := a.history.Messages(a.cfg.Transcript.HistoryLimit)
		if err != nil {
			a.logger.Warn("transcript_restore_failed", slog.String("error", err.Error()))
		}
		for _, m := range msgs {
			a.transcript.Append(m)
		}
	}
	if a.transcript.Len() == 0 && a.cfg.Transcript.Greeting {
		a.transcript.Reset(transcript.Greeting)
	}
}

// Submit runs one finalized transcript through suppression and routing.
func (a *Assistant) Submit(ctx context.Context, text string) (command.Result, error) {
	return a.dispatcher.Submit(ctx, text, time.Now())
}

// Run consumes the configured capture source until it ends or ctx is cancelled.
func (a *Assistant) Run(ctx context.Context) error {
	src, err := a.registry.BuildCapture(a.cfg.Capture, a.input, a.logger)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.source = src
	a.mu.Unlock()
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start capture %s: %w", src.Name(), err)
	}
	a.logger.Info("capture_started", slog.String("source", src.Name()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case tr, ok := <-src.Transcripts():
			if !ok {
				return nil
			}
			if _, err := a.dispatcher.Submit(ctx, tr.Text, tr.At); err != nil {
				var rerr *session.RoutingError
				if !errors.As(err, &rerr) {
					return err
				}
			}
		}
	}
}

func (a *Assistant) SetActiveProvider(kind provider.Kind) error {
	return a.manager.SetActiveProvider(kind)
}

// Connect connects the active provider with its stored credential.
func (a *Assistant) Connect(ctx context.Context, kind provider.Kind) error {
	key, err := store.CredentialKey(kind.String())
	if err != nil {
		return err
	}
	cred, err := a.store.Get(key)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	return a.manager.Connect(ctx, kind, cred)
}

func (a *Assistant) Disconnect(kind provider.Kind) error {
	return a.manager.Disconnect(kind)
}

func (a *Assistant) SetCredential(kind provider.Kind, credential string) error {
	return a.manager.SetCredential(kind, credential)
}

// Messages returns the in-memory transcript.
func (a *Assistant) Messages() []transcript.Message {
	return a.transcript.Messages()
}

// Clear drops the transcript, persisted history included, and posts the cleared reply.
func (a *Assistant) Clear() error {
	if a.history != nil {
		if err := a.history.ClearMessages(); err != nil {
			return err
		}
	}
	a.dispatcher.Reset()
	a.transcript.Reset(transcript.ClearedReply)
	return nil
}

// Export writes the transcript in format.
func (a *Assistant) Export(w io.Writer, format transcript.Format) error {
	return transcript.Export(w, format, a.transcript.Messages())
}

func (a *Assistant) Status() StatusReport {
	report := StatusReport{
		TraceID:  a.traceID,
		Active:   a.manager.ActiveProvider(),
		Messages: a.transcript.Len(),
		Drifts:   a.manager.Drifts(),
	}
	for _, kind := range provider.Kinds {
		report.Providers = append(report.Providers, a.manager.Status(kind))
	}
	return report
}

// Drain implements runner.Drainer.
func (a *Assistant) Drain() error {
	return a.Close()
}

// Close stops capture, tears down providers, flushes observers and closes the store.
func (a *Assistant) Close() error {
	a.closeOnce.Do(func() {
		var errs error
		a.mu.Lock()
		src := a.source
		a.mu.Unlock()
		if src != nil {
			errs = errors.Join(errs, src.Close())
		}
		if a.manager != nil {
			errs = errors.Join(errs, a.manager.Close())
		}
		errs = errors.Join(errs, a.closeResources())
		a.closeErr = errs
	})
	return a.closeErr
}

func (a *Assistant) closeResources() error {
	a.closeObservers()
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = errors.Join(errs, a.closers[i]())
	}
	a.closers = nil
	return errs
}

func (a *Assistant) closeObservers() {
	if a.async != nil {
		a.async.Close()
	}
}
