package deepgram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/airassist/pkg/errorsx"
)

func TestEmitOnlyFinalTranscripts(t *testing.T) {
	s := New(Config{APIKey: "dg-test"})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if s.emit("turn on", false) {
		t.Fatalf("expected interim transcript to be dropped")
	}
	if s.emit("   ", true) {
		t.Fatalf("expected blank transcript to be dropped")
	}
	if !s.emit(" turn on the lights ", true) {
		t.Fatalf("expected final transcript to be emitted")
	}
	got := <-s.Transcripts()
	if got.Text != "turn on the lights" || !got.At.Equal(fixed) {
		t.Fatalf("unexpected transcript %+v", got)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	s := New(Config{APIKey: "dg-test"})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if s.emit("hello there", true) {
		t.Fatalf("expected emit after close to be dropped")
	}
}

func TestStartRequiresKeyAndAudio(t *testing.T) {
	err := New(Config{}).Start(context.Background())
	if !errorsx.HasReason(err, errorsx.ReasonCaptureConnect) {
		t.Fatalf("expected capture_connect reason, got %v", err)
	}
	err = New(Config{APIKey: "dg-test"}).Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "audio") {
		t.Fatalf("expected audio input error, got %v", err)
	}
}
