package capture

import (
	"context"
	"time"
)

// Transcript is a finalized utterance produced by a speech capture source.
type Transcript struct {
	Text string
	At   time.Time
}

// Source defines the contract for anything that turns speech (or typed input) into transcripts.
type Source interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start begins producing transcripts until ctx is cancelled or input ends.
	Start(ctx context.Context) error
	// Close stops the source and closes the Transcripts channel.
	Close() error
	// Transcripts returns finalized transcripts only; interim results never appear here.
	Transcripts() <-chan Transcript
}
