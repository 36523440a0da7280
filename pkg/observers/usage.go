package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/airassist/pkg/metrics"
)

// UsageSummary counts what one session did.
type UsageSummary struct {
	TraceID            string         `json:"trace_id"`
	CommandsAccepted   int            `json:"commands_accepted"`
	CommandsSuppressed int            `json:"commands_suppressed"`
	Routes             map[string]int `json:"routes"`
	Fallbacks          int            `json:"fallbacks"`
	Drifts             int            `json:"drifts"`
	Reconnects         int            `json:"reconnects"`
	RecordedAtUTC      string         `json:"recorded_at_utc"`
}

// UsageObserver aggregates per-trace counters and writes <trace>.usage.json on Close.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tag(metrics.TagTraceID)
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{TraceID: id, Routes: make(map[string]int)}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventCommandAccepted:
		stat.CommandsAccepted++
	case metrics.EventCommandSuppressed:
		stat.CommandsSuppressed++
	case metrics.EventRoute:
		stat.Routes[ev.Tag(metrics.TagProvider)]++
		if ev.Tag(metrics.TagOutcome) != "ok" {
			stat.Fallbacks++
		}
	case metrics.EventProviderDrift:
		stat.Drifts++
	case metrics.EventReconcile:
		stat.Reconnects++
	}
}

// Summary returns a copy of the counters for one trace.
func (o *UsageObserver) Summary(traceID string) (UsageSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat, ok := o.stats[traceID]
	if !ok {
		return UsageSummary{}, false
	}
	out := *stat
	out.Routes = make(map[string]int, len(stat.Routes))
	for k, v := range stat.Routes {
		out.Routes[k] = v
	}
	return out, true
}

func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.stats) == 0 {
		return nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	var errOut error
	for id, stat := range o.stats {
		stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
		b, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			errOut = errors.Join(errOut, err)
			continue
		}
		path := filepath.Join(o.dir, sanitizeID(id)+".usage.json")
		if err := os.WriteFile(path, b, 0o644); err != nil {
			errOut = errors.Join(errOut, err)
		}
	}
	return errOut
}

var _ metrics.Observer = (*UsageObserver)(nil)
