package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harunnryd/airassist/pkg/errorsx"
	"github.com/harunnryd/airassist/pkg/metrics"
	"github.com/harunnryd/airassist/pkg/store"
)

type reconciler struct {
	m        *Manager
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

func newReconciler(m *Manager, interval time.Duration, logger *slog.Logger) *reconciler {
	return &reconciler{
		m:        m,
		interval: interval,
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

func (r *reconciler) start() error {
	_, err := r.cron.AddFunc("@every "+r.interval.String(), func() {
		r.m.Reconcile(r.m.ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *reconciler) stop() {
	<-r.cron.Stop().Done()
}

// Reconcile runs one reconciliation pass. When the active provider is Disconnected,
// has a credential, and was seen working after its last teardown (or is still
// recorded as connected), it gets exactly one reconnect attempt. It reports whether
// an attempt was made.
func (m *Manager) Reconcile(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return false
	}
	kind := m.persistedActive()
	cred := m.credential(kind)
	if cred == "" {
		return false
	}

	m.mu.Lock()
	s := m.slots[kind]
	if s.state != StateDisconnected {
		m.mu.Unlock()
		return false
	}
	evidence := !s.lastObserved.IsZero() && s.lastObserved.After(s.lastDown)
	m.mu.Unlock()

	if !evidence {
		flag, err := store.GetBool(m.store, store.ConnectedKey(kind.String()))
		evidence = err == nil && flag
	}
	if !evidence {
		return false
	}

	// Clear the evidence first so a failing backend is retried once, not every tick.
	m.mu.Lock()
	s.lastObserved = time.Time{}
	m.mu.Unlock()

	m.logger.Info("reconcile_reconnect", slog.String("provider", kind.String()))
	err := m.Connect(ctx, kind, cred)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		m.logger.Warn("reconcile_reconnect_failed",
			slog.String("provider", kind.String()),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.Bool("transient", errorsx.Transient(errorsx.Reason(err))))
	}
	m.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventReconcile,
		Time:  m.now(),
		Value: 1,
		Tags:  map[string]string{metrics.TagProvider: kind.String(), metrics.TagOutcome: outcome},
	})
	return true
}
