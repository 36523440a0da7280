package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonRealtimeSend)
	if Reason(err) != ReasonRealtimeSend {
		t.Fatalf("expected reason %s, got %s", ReasonRealtimeSend, Reason(err))
	}
	if !HasReason(err, ReasonRealtimeSend) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonWebhookProbe)
	second := Wrap(first, ReasonWebhookSend)
	if Reason(second) != ReasonWebhookProbe {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("connect realtime: %w", Wrap(assertErr{}, ReasonRealtimeConnect))
	if Reason(err) != ReasonRealtimeConnect {
		t.Fatalf("expected reason through wrap, got %s", Reason(err))
	}
	var target assertErr
	if !errors.As(err, &target) {
		t.Fatalf("expected underlying error to stay reachable")
	}
}

func TestNilError(t *testing.T) {
	if Wrap(nil, ReasonStoreWrite) != nil {
		t.Fatalf("expected nil passthrough")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestErrorfKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Errorf(ReasonCaptureConnect, "deepgram client: %w", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause reachable through Errorf")
	}
	if Reason(err) != ReasonCaptureConnect {
		t.Fatalf("unexpected reason %s", Reason(err))
	}
}

func TestTransient(t *testing.T) {
	if !Transient(ReasonRealtimeClosed) || !Transient(ReasonWebhookProbe) {
		t.Fatalf("expected transport reasons to be transient")
	}
	if Transient(ReasonMissingCredential) || Transient(ReasonUnknown) {
		t.Fatalf("expected configuration reasons to be permanent")
	}
}
