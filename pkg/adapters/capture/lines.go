package capture

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// LineSource treats every non-empty input line as a finalized transcript.
// It stands in for a speech recognizer when commands are typed or piped in.
type LineSource struct {
	r      io.Reader
	out    chan Transcript
	now    func() time.Time
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{
		r:    r,
		out:  make(chan Transcript, 16),
		now:  time.Now,
		done: make(chan struct{}),
	}
}

func (s *LineSource) Name() string { return "lines" }

func (s *LineSource) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.scan(ctx)
	return nil
}

func (s *LineSource) scan(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)
	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.out <- Transcript{Text: line, At: s.now()}:
		case <-ctx.Done():
			return
		}
	}
}

// Close cancels scanning. A reader blocked in Read keeps the goroutine alive until it returns.
func (s *LineSource) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// Done is closed once the input is exhausted or the source was cancelled.
func (s *LineSource) Done() <-chan struct{} { return s.done }

func (s *LineSource) Transcripts() <-chan Transcript { return s.out }

var _ Source = (*LineSource)(nil)
