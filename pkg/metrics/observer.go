package metrics

import "time"

// MetricsEvent is one observation from the session core.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Tag returns the tag value or "".
func (ev MetricsEvent) Tag(key string) string {
	if ev.Tags == nil {
		return ""
	}
	return ev.Tags[key]
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// TagObserver adds fixed tags to every event before passing it on. Existing tags win.
type TagObserver struct {
	inner Observer
	tags  map[string]string
}

func NewTagObserver(inner Observer, tags map[string]string) *TagObserver {
	return &TagObserver{inner: inner, tags: tags}
}

func (o *TagObserver) RecordEvent(ev MetricsEvent) {
	if o.inner == nil {
		return
	}
	merged := make(map[string]string, len(ev.Tags)+len(o.tags))
	for k, v := range o.tags {
		merged[k] = v
	}
	for k, v := range ev.Tags {
		merged[k] = v
	}
	ev.Tags = merged
	o.inner.RecordEvent(ev)
}
