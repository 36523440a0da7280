package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/errorsx"
	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/logging"
	"github.com/harunnryd/airassist/pkg/metrics"
	"github.com/harunnryd/airassist/pkg/redact"
	"github.com/harunnryd/airassist/pkg/store"
)

const (
	defaultRouteTimeout      = 30 * time.Second
	defaultReconcileInterval = 3 * time.Second
)

// Options configures a Manager.
type Options struct {
	Store      store.Store
	Connectors []provider.Connector
	// Sink receives every normalized event from the active connection, route responses and fallbacks.
	Sink     events.Sink
	Logger   *slog.Logger
	Observer metrics.Observer
	// DefaultProvider is used when the store has no active provider yet.
	DefaultProvider   provider.Kind
	RouteTimeout      time.Duration
	ReconcileInterval time.Duration
	// DisableReconcile turns off the background reconciliation job.
	DisableReconcile bool
}

type slot struct {
	state  State
	reason string
	since  time.Time
	gen    uint64
	conn   provider.Connection
	// ready is closed when the in-flight connect attempt resolves.
	ready chan struct{}
	// dropped marks a transport close seen while the attempt was still Connecting.
	dropped      bool
	lastObserved time.Time
	lastDown     time.Time
}

// Manager owns provider selection, connection lifecycle and command routing.
// The persisted active provider is the routing truth; the cached value only mirrors it.
type Manager struct {
	store       store.Store
	connectors  map[provider.Kind]provider.Connector
	sink        events.Sink
	logger      *slog.Logger
	observer    metrics.Observer
	defaultKind provider.Kind

	routeTimeout      time.Duration
	reconcileInterval time.Duration
	disableReconcile  bool
	now               func() time.Time

	// switchMu orders active-provider writes against routing reads.
	switchMu sync.Mutex

	mu        sync.Mutex
	active    provider.Kind
	slots     map[provider.Kind]*slot
	listeners []StateListener
	drifts    int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	reconciler  *reconciler
	unsubscribe func()
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if len(opts.Connectors) == 0 {
		return nil, errors.New("session: at least one connector is required")
	}
	m := &Manager{
		store:             opts.Store,
		connectors:        make(map[provider.Kind]provider.Connector, len(opts.Connectors)),
		sink:              opts.Sink,
		logger:            logging.NewComponentLogger(opts.Logger, "session_manager"),
		observer:          opts.Observer,
		defaultKind:       opts.DefaultProvider,
		routeTimeout:      opts.RouteTimeout,
		reconcileInterval: opts.ReconcileInterval,
		disableReconcile:  opts.DisableReconcile,
		now:               time.Now,
		slots:             make(map[provider.Kind]*slot, len(provider.Kinds)),
	}
	for _, c := range opts.Connectors {
		if c == nil {
			continue
		}
		if _, dup := m.connectors[c.Kind()]; dup {
			return nil, fmt.Errorf("session: duplicate connector for %s", c.Kind())
		}
		m.connectors[c.Kind()] = c
	}
	if m.observer == nil {
		m.observer = metrics.NoopObserver{}
	}
	if m.defaultKind == "" {
		m.defaultKind = provider.KindWebhook
	}
	if m.routeTimeout <= 0 {
		m.routeTimeout = defaultRouteTimeout
	}
	if m.reconcileInterval <= 0 {
		m.reconcileInterval = defaultReconcileInterval
	}
	for _, k := range provider.Kinds {
		m.slots[k] = &slot{state: StateDisconnected}
	}
	m.active = m.defaultKind
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// AddListener registers a listener for state change events.
func (m *Manager) AddListener(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start restores the persisted session, subscribes to store changes, resumes the
// active provider when the record says it was connected, and starts reconciliation.
func (m *Manager) Start(ctx context.Context) error {
	if ctx != nil {
		m.ctx, m.cancel = context.WithCancel(ctx)
	}
	rec, err := store.LoadRecord(m.store)
	if err != nil {
		m.logger.Warn("session_restore_partial", slog.String("error", err.Error()))
	}
	kind, perr := provider.ParseKind(rec.ActiveProvider)
	if perr != nil {
		kind = m.defaultKind
		m.persist(store.KeyActiveProvider, string(kind))
	}
	m.mu.Lock()
	m.active = kind
	m.mu.Unlock()
	// Only the active provider may look connected.
	m.persist(store.ConnectedKey(kind.Other().String()), store.FormatBool(false))

	if n, ok := m.store.(store.Notifier); ok {
		m.unsubscribe = n.Subscribe(m.handleStoreChange)
	}

	resume := rec.Credentials[kind.String()] != "" &&
		(kind == provider.KindWebhook || rec.RealtimeConnected)
	m.logger.Info("session_restored",
		slog.String("active_provider", kind.String()),
		slog.Bool("resume", resume))
	if resume {
		m.connectAsync(kind, rec.Credentials[kind.String()])
	}

	if !m.disableReconcile {
		m.reconciler = newReconciler(m, m.reconcileInterval, m.logger)
		if err := m.reconciler.start(); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
	}
	return nil
}

// Close stops background work and tears down every open connection.
func (m *Manager) Close() error {
	if m.reconciler != nil {
		m.reconciler.stop()
		m.reconciler = nil
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	var conns []provider.Connection
	var changes []*StateChange
	for _, k := range provider.Kinds {
		s := m.slots[k]
		if s.conn != nil {
			conns = append(conns, s.conn)
			s.conn = nil
		}
		s.gen++
		// Releases callers waiting on the attempt; the connected flag is left for resume.
		if s.state == StateConnecting {
			changes = append(changes, m.transitionLocked(k, StateDisconnected, "manager_closed"))
		}
	}
	m.mu.Unlock()
	for _, c := range changes {
		m.notify(c)
	}

	var errs error
	for _, c := range conns {
		errs = errors.Join(errs, c.Close())
	}
	return errs
}

// ActiveProvider returns the cached active provider.
func (m *Manager) ActiveProvider() provider.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Status returns the current state of one provider.
func (m *Manager) Status(kind provider.Kind) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[kind]
	if !ok {
		return Status{Provider: kind}
	}
	return Status{Provider: kind, State: s.state, Reason: s.reason, Generation: s.gen, Since: s.since}
}

// Drifts counts how often the cached active provider disagreed with the store.
func (m *Manager) Drifts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drifts
}

// SetActiveProvider makes kind the active provider. The store is written before the
// previous provider is torn down, so any later Route already sees kind.
func (m *Manager) SetActiveProvider(kind provider.Kind) error {
	if _, ok := m.connectors[kind]; !ok {
		return fmt.Errorf("no connector registered for %q", kind)
	}

	m.switchMu.Lock()
	m.mu.Lock()
	prev := m.active
	m.active = kind
	m.mu.Unlock()
	m.persist(store.KeyActiveProvider, kind.String())
	m.switchMu.Unlock()

	m.forceDisconnect(kind.Other(), "provider_switch")
	m.logger.Info("provider_switched",
		slog.String("from", prev.String()),
		slog.String("to", kind.String()))

	if cred := m.credential(kind); cred != "" {
		m.connectAsync(kind, cred)
	}
	return nil
}

// SetCredential stores the credential for kind. For Webhook this is the URL.
// A changed Webhook URL is re-probed when Webhook is active.
func (m *Manager) SetCredential(kind provider.Kind, credential string) error {
	key, err := store.CredentialKey(kind.String())
	if err != nil {
		return err
	}
	credential = strings.TrimSpace(credential)
	prev := m.credential(kind)
	if err := m.store.Set(key, credential); err != nil {
		return errorsx.Errorf(errorsx.ReasonStoreWrite, "store credential: %w", err)
	}
	m.logger.Info("credential_updated",
		slog.String("provider", kind.String()),
		slog.String("credential", maskCredential(kind, credential)))

	if credential == prev {
		return nil
	}
	_ = m.Disconnect(kind)
	if credential != "" && m.persistedActive() == kind {
		m.connectAsync(kind, credential)
	}
	return nil
}

// Connect opens kind with credential and waits for the outcome. A call while an
// attempt is already Connecting, or while Connected, is a no-op.
func (m *Manager) Connect(ctx context.Context, kind provider.Kind, credential string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return errorsx.Wrap(&provider.MissingCredentialError{Provider: kind}, errorsx.ReasonMissingCredential)
	}
	connector, ok := m.connectors[kind]
	if !ok {
		return fmt.Errorf("no connector registered for %q", kind)
	}

	// switchMu keeps a concurrent SetActiveProvider from landing between the
	// active check and the Connecting transition.
	m.switchMu.Lock()
	if active := m.persistedActive(); active != kind {
		m.switchMu.Unlock()
		return m.inactive(kind, active)
	}
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		m.switchMu.Unlock()
		return ErrClosed
	}
	s := m.slots[kind]
	if s.state == StateConnecting || s.state == StateConnected {
		m.mu.Unlock()
		m.switchMu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.dropped = false
	s.ready = make(chan struct{})
	change := m.transitionLocked(kind, StateConnecting, "connect")
	m.mu.Unlock()
	m.switchMu.Unlock()
	m.notify(change)

	m.logger.Info("provider_connecting",
		slog.String("provider", kind.String()),
		slog.Uint64("generation", gen))

	openCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	conn, err := connector.Open(openCtx, credential, m.hooksFor(kind, gen))
	stop()
	cancel()
	// A store writer the manager cannot observe may have switched providers meanwhile.
	active := m.persistedActive()

	m.mu.Lock()
	s = m.slots[kind]
	if s.gen != gen {
		m.mu.Unlock()
		m.logger.Info("provider_connect_stale",
			slog.String("provider", kind.String()),
			slog.Uint64("generation", gen),
			slog.Bool("succeeded", err == nil))
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSuperseded
	}
	if err == nil && s.dropped {
		err = &provider.TransportError{Provider: kind, Op: "open", Err: errors.New("closed during connect")}
	}
	if err != nil {
		change = m.transitionLocked(kind, StateError, redact.Text(err.Error()))
		m.persistLocked(store.ConnectedKey(kind.String()), store.FormatBool(false))
		m.mu.Unlock()
		m.notify(change)
		if conn != nil {
			_ = conn.Close()
		}
		m.logger.Warn("provider_connect_failed",
			slog.String("provider", kind.String()),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("error", redact.Text(err.Error())))
		return err
	}
	if active != kind {
		change = m.transitionLocked(kind, StateDisconnected, "provider_switch")
		m.persistLocked(store.ConnectedKey(kind.String()), store.FormatBool(false))
		m.mu.Unlock()
		m.notify(change)
		if conn != nil {
			_ = conn.Close()
		}
		return m.inactive(kind, active)
	}
	s.conn = conn
	change = m.transitionLocked(kind, StateConnected, "connected")
	m.persistLocked(store.ConnectedKey(kind.String()), store.FormatBool(true))
	m.mu.Unlock()
	m.notify(change)
	m.logger.Info("provider_connected",
		slog.String("provider", kind.String()),
		slog.Uint64("generation", gen))
	return nil
}

// Disconnect tears down kind and records it as disconnected. It is a no-op when
// already disconnected. An in-flight connect attempt is superseded.
func (m *Manager) Disconnect(kind provider.Kind) error {
	conn, change := m.disconnect(kind, "manual")
	m.notify(change)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Route delivers command to the provider the store names as active. On failure a
// fallback message is emitted to the sink and a RoutingError returned.
func (m *Manager) Route(ctx context.Context, command string) (events.Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	kind := m.resolveActive()
	m.forceDisconnect(kind.Other(), "exclusion")

	start := m.now()
	conn, gen, err := m.ensureConnected(ctx, kind)
	if err != nil {
		return events.Event{}, m.routeFailed(kind, command, start, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.routeTimeout)
	defer cancel()
	ev, err := conn.Send(sendCtx, command)
	if err != nil {
		if kind == provider.KindWebhook {
			m.markDown(kind, gen, "send_failed")
		}
		return events.Event{}, m.routeFailed(kind, command, start, err)
	}

	if ev.Provider == "" {
		ev.Provider = kind.String()
	}
	if ev.Time.IsZero() {
		ev.Time = m.now()
	}
	m.observe(kind, gen)
	m.emit(ev)
	m.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventRoute,
		Time:  m.now(),
		Value: float64(m.now().Sub(start).Milliseconds()),
		Tags:  map[string]string{metrics.TagProvider: kind.String(), metrics.TagOutcome: "ok"},
	})
	return ev, nil
}

func (m *Manager) routeFailed(kind provider.Kind, command string, start time.Time, err error) error {
	rerr := classify(kind, err)
	m.logger.Warn("route_failed",
		slog.String("provider", kind.String()),
		slog.String("kind", string(rerr.Kind)),
		slog.String("reason_code", string(errorsx.Reason(err))),
		slog.String("detail", redact.Text(rerr.Detail)))
	m.emit(events.Event{
		Type:     events.TypeFallback,
		Provider: kind.String(),
		Role:     events.RoleAssistant,
		Text:     FallbackMessage(kind, command, rerr),
		Err:      rerr.Detail,
		Time:     m.now(),
	})
	m.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventRoute,
		Time:  m.now(),
		Value: float64(m.now().Sub(start).Milliseconds()),
		Tags: map[string]string{
			metrics.TagProvider: kind.String(),
			metrics.TagOutcome:  string(rerr.Kind),
		},
	})
	return rerr
}

// ensureConnected returns the live connection for kind, connecting with the stored
// credential or waiting for an in-flight attempt as needed.
func (m *Manager) ensureConnected(ctx context.Context, kind provider.Kind) (provider.Connection, uint64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		m.mu.Lock()
		s := m.slots[kind]
		switch {
		case s.state == StateConnected && s.conn != nil:
			conn, gen := s.conn, s.gen
			m.mu.Unlock()
			return conn, gen, nil
		case s.state == StateConnecting && s.ready != nil:
			ready := s.ready
			m.mu.Unlock()
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-m.ctx.Done():
				return nil, 0, ErrClosed
			}
		}
		m.mu.Unlock()
		if m.ctx.Err() != nil {
			return nil, 0, ErrClosed
		}

		err := m.Connect(ctx, kind, m.credential(kind))
		if err != nil && !errors.Is(err, ErrSuperseded) {
			return nil, 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.slots[kind]; s.state == StateConnected && s.conn != nil {
		return s.conn, s.gen, nil
	}
	return nil, 0, &provider.TransportError{Provider: kind, Op: "route", Err: errors.New("not connected")}
}

// resolveActive re-reads the persisted active provider and heals the cached copy.
func (m *Manager) resolveActive() provider.Kind {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	cached := m.active
	m.mu.Unlock()

	raw, err := m.store.Get(store.KeyActiveProvider)
	if err != nil {
		m.logger.Warn("active_provider_read_failed",
			slog.String("reason_code", string(errorsx.ReasonStoreRead)),
			slog.String("error", err.Error()))
		return cached
	}
	kind, err := provider.ParseKind(raw)
	if err != nil {
		m.persist(store.KeyActiveProvider, cached.String())
		return cached
	}
	if kind != cached {
		m.mu.Lock()
		m.active = kind
		m.drifts++
		m.mu.Unlock()
		m.logger.Warn("provider_drift",
			slog.String("persisted", kind.String()),
			slog.String("cached", cached.String()))
		m.observer.RecordEvent(metrics.MetricsEvent{
			Name:  metrics.EventProviderDrift,
			Time:  m.now(),
			Value: 1,
			Tags:  map[string]string{metrics.TagProvider: kind.String(), "cached": cached.String()},
		})
	}
	return kind
}

func (m *Manager) inactive(kind, active provider.Kind) error {
	m.logger.Info("provider_connect_skipped",
		slog.String("provider", kind.String()),
		slog.String("active_provider", active.String()))
	return errorsx.Wrap(fmt.Errorf("%s: %w", kind, provider.ErrInactiveProvider), errorsx.ReasonInactiveProvider)
}

func (m *Manager) persistedActive() provider.Kind {
	raw, err := m.store.Get(store.KeyActiveProvider)
	if err == nil {
		if kind, perr := provider.ParseKind(raw); perr == nil {
			return kind
		}
	}
	return m.ActiveProvider()
}

// handleStoreChange reacts to active_provider writes made by another writer of the same store.
func (m *Manager) handleStoreChange(key, value string) {
	if key != store.KeyActiveProvider {
		return
	}
	kind, err := provider.ParseKind(value)
	if err != nil {
		return
	}
	m.mu.Lock()
	if kind == m.active {
		m.mu.Unlock()
		return
	}
	prev := m.active
	m.active = kind
	m.mu.Unlock()
	m.logger.Info("active_provider_changed_externally",
		slog.String("from", prev.String()),
		slog.String("to", kind.String()))
	m.forceDisconnect(kind.Other(), "external_switch")
}

// forceDisconnect moves kind to Disconnected right away; the transport closes in the background.
func (m *Manager) forceDisconnect(kind provider.Kind, reason string) {
	conn, change := m.disconnect(kind, reason)
	m.notify(change)
	if conn == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := conn.Close(); err != nil {
			m.logger.Debug("provider_teardown_error",
				slog.String("provider", kind.String()),
				slog.String("error", err.Error()))
		}
	}()
}

func (m *Manager) disconnect(kind provider.Kind, reason string) (provider.Connection, *StateChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[kind]
	if !ok || s.state == StateDisconnected {
		return nil, nil
	}
	s.gen++
	conn := s.conn
	s.conn = nil
	s.lastDown = m.now()
	change := m.transitionLocked(kind, StateDisconnected, reason)
	m.persistLocked(store.ConnectedKey(kind.String()), store.FormatBool(false))
	return conn, change
}

// markDown records a failure of the current generation without superseding it.
func (m *Manager) markDown(kind provider.Kind, gen uint64, reason string) {
	m.mu.Lock()
	s := m.slots[kind]
	if s.gen != gen || s.state != StateConnected {
		m.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.lastDown = m.now()
	change := m.transitionLocked(kind, StateDisconnected, reason)
	m.persistLocked(store.ConnectedKey(kind.String()), store.FormatBool(false))
	m.mu.Unlock()
	m.notify(change)
	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) hooksFor(kind provider.Kind, gen uint64) provider.Hooks {
	return provider.Hooks{
		OnEvent: func(ev events.Event) {
			if !m.observe(kind, gen) {
				m.logger.Debug("stale_event_dropped",
					slog.String("provider", kind.String()),
					slog.String("type", string(ev.Type)),
					slog.Uint64("generation", gen))
				return
			}
			if ev.Provider == "" {
				ev.Provider = kind.String()
			}
			m.emit(ev)
		},
		OnDisconnect: func(err error) {
			m.transportClosed(kind, gen, err)
		},
	}
}

// observe records that kind produced output. It reports whether gen is current.
func (m *Manager) observe(kind provider.Kind, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[kind]
	if s.gen != gen {
		return false
	}
	s.lastObserved = m.now()
	return true
}

func (m *Manager) transportClosed(kind provider.Kind, gen uint64, cause error) {
	m.mu.Lock()
	s := m.slots[kind]
	if s.gen != gen {
		m.mu.Unlock()
		return
	}
	switch s.state {
	case StateConnecting:
		s.dropped = true
		m.mu.Unlock()
		return
	case StateConnected:
	default:
		m.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.lastDown = m.now()
	change := m.transitionLocked(kind, StateDisconnected, "transport_closed")
	m.persistLocked(store.ConnectedKey(kind.String()), store.FormatBool(false))
	m.mu.Unlock()
	m.notify(change)

	attrs := []any{slog.String("provider", kind.String()), slog.Uint64("generation", gen)}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()), slog.String("reason_code", string(errorsx.Reason(cause))))
	}
	m.logger.Warn("provider_transport_closed", attrs...)
	if conn != nil {
		_ = conn.Close()
	}
}

// transitionLocked applies a validated transition. Invalid transitions are logged, never returned.
func (m *Manager) transitionLocked(kind provider.Kind, to State, reason string) *StateChange {
	s := m.slots[kind]
	from := s.state
	if !transitionValid(from, to) {
		m.logger.Error("invalid_transition",
			slog.String("error", (&InvalidTransitionError{Provider: kind, From: from, To: to}).Error()))
		return nil
	}
	if from == StateConnecting && s.ready != nil {
		close(s.ready)
		s.ready = nil
	}
	s.state = to
	s.reason = ""
	if to == StateError || to == StateDisconnected {
		s.reason = reason
	}
	s.since = m.now()
	return &StateChange{
		Provider:   kind,
		FromState:  from,
		ToState:    to,
		Reason:     reason,
		Generation: s.gen,
		Timestamp:  s.since,
	}
}

func (m *Manager) notify(change *StateChange) {
	if change == nil {
		return
	}
	m.mu.Lock()
	listeners := make([]StateListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.observer.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventConnectionState,
		Time: change.Timestamp,
		Tags: map[string]string{
			metrics.TagProvider: change.Provider.String(),
			metrics.TagState:    change.ToState.String(),
			metrics.TagReason:   change.Reason,
		},
		Fields: map[string]any{"from": change.FromState.String(), "generation": change.Generation},
	})
	for _, l := range listeners {
		l.OnStateChange(*change)
	}
}

func (m *Manager) emit(ev events.Event) {
	if m.sink != nil {
		m.sink(ev)
	}
}

func (m *Manager) credential(kind provider.Kind) string {
	key, err := store.CredentialKey(kind.String())
	if err != nil {
		return ""
	}
	v, err := m.store.Get(key)
	if err != nil {
		m.logger.Warn("credential_read_failed",
			slog.String("provider", kind.String()),
			slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(v)
}

// connectAsync starts a connect tied to the manager lifetime.
func (m *Manager) connectAsync(kind provider.Kind, credential string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Connect(m.ctx, kind, credential); err != nil && !errors.Is(err, ErrSuperseded) {
			m.logger.Debug("background_connect_failed",
				slog.String("provider", kind.String()),
				slog.String("error", redact.Text(err.Error())))
		}
	}()
}

// persist writes outside the state lock. Failures are logged; bookkeeping never fails callers.
func (m *Manager) persist(key, value string) {
	if err := m.store.Set(key, value); err != nil {
		m.logger.Warn("store_write_failed",
			slog.String("key", key),
			slog.String("reason_code", string(errorsx.ReasonStoreWrite)),
			slog.String("error", err.Error()))
	}
}

// persistLocked keeps flag writes ordered with the transitions that produce them.
// Store subscribers must not call back into the manager synchronously for these keys.
func (m *Manager) persistLocked(key, value string) {
	m.persist(key, value)
}

func maskCredential(kind provider.Kind, credential string) string {
	if kind == provider.KindWebhook {
		return redact.URL(credential)
	}
	return redact.Secret(credential)
}
