package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/airassist/pkg/metrics"
)

// LatencyObserver measures the time from an accepted command to its routed reply,
// per trace. Commands are routed one at a time per trace.
type LatencyObserver struct {
	mu      sync.Mutex
	pending map[string]time.Time
	log     *slog.Logger
	last    map[string]time.Duration
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		pending: make(map[string]time.Time),
		last:    make(map[string]time.Duration),
		log:     log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	traceID := ev.Tag(metrics.TagTraceID)
	if traceID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventCommandAccepted:
		o.pending[traceID] = ev.Time
	case metrics.EventRoute:
		start, ok := o.pending[traceID]
		if !ok {
			return
		}
		delete(o.pending, traceID)
		d := ev.Time.Sub(start)
		o.last[ev.Tag(metrics.TagProvider)] = d
		o.log.Info("latency",
			"trace_id", traceID,
			"provider", ev.Tag(metrics.TagProvider),
			"outcome", ev.Tag(metrics.TagOutcome),
			"command_to_reply_ms", d.Milliseconds(),
		)
	}
}

// Last returns the most recent command-to-reply latency for a provider.
func (o *LatencyObserver) Last(provider string) (time.Duration, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.last[provider]
	return d, ok
}
