package capture

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLineSourceEmitsNonEmptyLines(t *testing.T) {
	src := NewLineSource(strings.NewReader("turn on the lights\n\n   \nwhat time is it\n"))
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Close()

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tr, ok := <-src.Transcripts():
			if !ok {
				if len(got) != 2 {
					t.Fatalf("expected 2 transcripts, got %v", got)
				}
				if got[0] != "turn on the lights" || got[1] != "what time is it" {
					t.Fatalf("unexpected transcripts %v", got)
				}
				return
			}
			if tr.At.IsZero() {
				t.Fatalf("expected timestamp on transcript")
			}
			got = append(got, tr.Text)
		case <-timeout:
			t.Fatalf("timed out waiting for transcripts")
		}
	}
}
