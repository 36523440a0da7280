package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/events"
)

func TestDecodeFrame(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		raw    string
		result frameResult
		check  func(t *testing.T, ev events.Event)
	}{
		{
			name:   "message item",
			raw:    `{"type":"response.output_item.added","item":{"id":"item_9","type":"message","role":"assistant","content":[{"type":"text","text":"Hi"}]}}`,
			result: frameEvent,
			check: func(t *testing.T, ev events.Event) {
				if ev.ItemID != "item_9" || ev.Role != events.RoleAssistant || ev.Text != "Hi" {
					t.Fatalf("unexpected item event %+v", ev)
				}
			},
		},
		{
			name:   "function call item ignored",
			raw:    `{"type":"response.output_item.added","item":{"id":"fc_1","type":"function_call"}}`,
			result: frameIgnored,
		},
		{
			name:   "audio part",
			raw:    `{"type":"response.content_part.added","item_id":"item_9","part":{"type":"audio","transcript":"spoken"}}`,
			result: frameEvent,
			check: func(t *testing.T, ev events.Event) {
				if ev.Part != events.PartAudio || ev.Text != "spoken" {
					t.Fatalf("unexpected audio part %+v", ev)
				}
			},
		},
		{
			name:   "error frame",
			raw:    `{"type":"error","error":{"type":"invalid_request_error","message":"bad session"}}`,
			result: frameEvent,
			check: func(t *testing.T, ev events.Event) {
				if ev.Err != "bad session" || ev.Text != "Realtime error: bad session" {
					t.Fatalf("unexpected error event %+v", ev)
				}
			},
		},
		{
			name:   "synthetic response.text",
			raw:    `{"type":"response.text","text":"Done","model":"gpt-4o-mini"}`,
			result: frameEvent,
			check: func(t *testing.T, ev events.Event) {
				if ev.Role != events.RoleAssistant || ev.Model != "gpt-4o-mini" || !ev.Time.Equal(now) {
					t.Fatalf("unexpected response.text %+v", ev)
				}
			},
		},
		{
			name:   "unknown type",
			raw:    `{"type":"input_audio_buffer.speech_started"}`,
			result: frameUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, result, err := decodeFrame([]byte(tc.raw), now)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if result != tc.result {
				t.Fatalf("expected result %d, got %d", tc.result, result)
			}
			if tc.check != nil {
				tc.check(t, ev)
			}
		})
	}
}

func TestDecodeFrameParseErrors(t *testing.T) {
	for _, raw := range []string{`{"type":`, `{"text":"no type"}`, `{"type":"response.content_part.added"}`} {
		_, _, err := decodeFrame([]byte(raw), time.Now())
		var pe *provider.ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected parse error for %q, got %v", raw, err)
		}
	}
}
