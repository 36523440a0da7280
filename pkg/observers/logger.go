package observers

import (
	"context"
	"log/slog"

	"github.com/harunnryd/airassist/pkg/metrics"
)

// LoggerObserver mirrors metric events into the structured log.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), levelFor(ev), "metrics", attrs...)
}

// Drift and failed routes are worth seeing without debug logging.
func levelFor(ev metrics.MetricsEvent) slog.Level {
	switch {
	case ev.Name == metrics.EventProviderDrift:
		return slog.LevelWarn
	case ev.Name == metrics.EventRoute && ev.Tag(metrics.TagOutcome) != "ok":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}

// Flush flushes every observer that supports it.
func (m *MultiObserver) Flush() error {
	var first error
	for _, obs := range m.list {
		if f, ok := obs.(metrics.Flusher); ok {
			if err := f.Flush(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
