package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/harunnryd/airassist/pkg/metrics"
	"github.com/harunnryd/airassist/pkg/redact"
)

// TimelineObserver writes one JSONL timeline per session trace.
// Each line carries a sequence number and the offset from the trace's first event,
// so reconnect storms and slow routes stand out when reading the file.
type TimelineObserver struct {
	dir    string
	mu     sync.Mutex
	traces map[string]*traceFile
}

type traceFile struct {
	f     *os.File
	start time.Time
	seq   int
}

func NewTimelineObserver(dir string) *TimelineObserver {
	return &TimelineObserver{dir: dir, traces: make(map[string]*traceFile)}
}

// RecordEvent implements metrics.Observer.
func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	traceID := ev.Tag(metrics.TagTraceID)
	if traceID == "" || strings.TrimSpace(o.dir) == "" {
		return
	}
	at := ev.Time.UTC()
	if ev.Time.IsZero() {
		at = time.Now().UTC()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	tf := o.traceLocked(traceID, at)
	if tf == nil {
		return
	}
	tf.seq++
	entry := timelineEvent{
		Seq:       tf.seq,
		Time:      at,
		ElapsedMS: at.Sub(tf.start).Milliseconds(),
		Event:     timelineName(ev),
		Provider:  ev.Tag(metrics.TagProvider),
		Value:     ev.Value,
		Tags:      otherTags(ev.Tags),
		Fields:    sanitizeFields(ev.Fields),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = tf.f.Write(append(line, '\n'))
}

func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	for _, tf := range o.traces {
		err = errors.Join(err, tf.f.Close())
	}
	o.traces = make(map[string]*traceFile)
	return err
}

// Flush syncs open timeline files.
func (o *TimelineObserver) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	for _, tf := range o.traces {
		err = errors.Join(err, tf.f.Sync())
	}
	return err
}

type timelineEvent struct {
	Seq       int               `json:"seq"`
	Time      time.Time         `json:"time"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Event     string            `json:"event"`
	Provider  string            `json:"provider,omitempty"`
	Value     float64           `json:"value,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Fields    map[string]any    `json:"fields,omitempty"`
}

func (o *TimelineObserver) traceLocked(id string, at time.Time) *traceFile {
	safe := sanitizeID(id)
	if safe == "" {
		return nil
	}
	if tf := o.traces[safe]; tf != nil {
		return tf
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(o.dir, safe+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	tf := &traceFile{f: f, start: at}
	o.traces[safe] = tf
	return tf
}

// connection_state events read better as "realtime_connected" in a timeline.
func timelineName(ev metrics.MetricsEvent) string {
	if ev.Name == metrics.EventConnectionState {
		if p, s := ev.Tag(metrics.TagProvider), ev.Tag(metrics.TagState); p != "" && s != "" {
			return p + "_" + s
		}
	}
	return ev.Name
}

// sanitizeID keeps trace IDs safe as file names.
func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) || strings.ContainsRune("-_.", r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func otherTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if k == metrics.TagTraceID || k == metrics.TagProvider {
			continue
		}
		out[k] = redact.Text(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sanitizeFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = redact.Text(s)
			continue
		}
		out[k] = v
	}
	return out
}

var _ metrics.Observer = (*TimelineObserver)(nil)
