package observers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/airassist/pkg/metrics"
)

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventConnectionState,
		Time: time.Now(),
		Tags: map[string]string{
			metrics.TagTraceID:  "session-1",
			metrics.TagProvider: "realtime",
			metrics.TagState:    "connected",
		},
	})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRoute, Time: time.Now()})
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "session-1.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line for the traced event, got %d", len(lines))
	}
	var entry timelineEvent
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Event != "realtime_connected" || entry.Provider != "realtime" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestTimelineSequenceAndElapsed(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{metrics.EventCommandAccepted, metrics.EventRoute} {
		obs.RecordEvent(metrics.MetricsEvent{
			Name: name,
			Time: t0.Add(time.Duration(i) * 250 * time.Millisecond),
			Tags: map[string]string{metrics.TagTraceID: "trace/../x"},
		})
	}
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "trace_.._x.jsonl"))
	if err != nil {
		t.Fatalf("expected sanitized file name: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	var second timelineEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.Seq != 2 || second.ElapsedMS != 250 || second.Event != metrics.EventRoute {
		t.Fatalf("unexpected entry %+v", second)
	}
}

func TestTimelineRedactsFields(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventRoute,
		Time:   time.Now(),
		Tags:   map[string]string{metrics.TagTraceID: "s"},
		Fields: map[string]any{"detail": "bad key sk-abcdefghijklmnopqrstuvwxyz"},
	})
	_ = obs.Close()
	b, _ := os.ReadFile(filepath.Join(dir, "s.jsonl"))
	if strings.Contains(string(b), "sk-abcdefghijklmnopqrstuvwxyz") {
		t.Fatalf("expected api key to be redacted: %s", b)
	}
}

func TestUsageObserverSummarizes(t *testing.T) {
	dir := t.TempDir()
	obs := NewUsageObserver(dir)
	tags := func(extra ...string) map[string]string {
		m := map[string]string{metrics.TagTraceID: "s1"}
		for i := 0; i+1 < len(extra); i += 2 {
			m[extra[i]] = extra[i+1]
		}
		return m
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventCommandAccepted, Tags: tags()})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventCommandSuppressed, Tags: tags()})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRoute, Tags: tags(metrics.TagProvider, "webhook", metrics.TagOutcome, "ok")})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRoute, Tags: tags(metrics.TagProvider, "webhook", metrics.TagOutcome, "timeout")})

	sum, ok := obs.Summary("s1")
	if !ok || sum.CommandsAccepted != 1 || sum.CommandsSuppressed != 1 || sum.Routes["webhook"] != 2 || sum.Fallbacks != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "s1.usage.json")); err != nil {
		t.Fatalf("expected usage file: %v", err)
	}
}

func TestLatencyObserverMeasuresCommandToReply(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewJSONHandler(&buf, nil)))
	t0 := time.Now()
	tags := map[string]string{metrics.TagTraceID: "s1", metrics.TagProvider: "webhook", metrics.TagOutcome: "ok"}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventCommandAccepted, Time: t0, Tags: tags})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRoute, Time: t0.Add(120 * time.Millisecond), Tags: tags})

	d, ok := obs.Last("webhook")
	if !ok || d != 120*time.Millisecond {
		t.Fatalf("unexpected latency %v %v", d, ok)
	}
	if !strings.Contains(buf.String(), `"command_to_reply_ms":120`) {
		t.Fatalf("expected latency log line, got %s", buf.String())
	}
}

func TestPurgeArtifactsKeepsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"a.jsonl", "a.usage.json", "notes.txt"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	n, err := PurgeArtifacts(dir, 24*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("expected unrelated file kept: %v", err)
	}
}
