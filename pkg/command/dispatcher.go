// Package command turns finalized transcripts into routed commands.
package command

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/logging"
	"github.com/harunnryd/airassist/pkg/metrics"
)

const (
	DefaultDuplicateWindow = 3000 * time.Millisecond
	DefaultMinLength       = 3
)

// Suppression reasons reported in Result.Reason.
const (
	ReasonDuplicate = "duplicate"
	ReasonNoise     = "noise"
)

// Router delivers an accepted command. *session.Manager satisfies it.
type Router interface {
	Route(ctx context.Context, command string) (events.Event, error)
}

// Options configures a Dispatcher.
type Options struct {
	DuplicateWindow time.Duration
	MinLength       int
	Replacements    map[string]string
	// OnAccepted runs before routing; the assistant appends the user message here.
	OnAccepted func(text string, at time.Time)
	Logger     *slog.Logger
	Observer   metrics.Observer
}

// Result describes what happened to one submitted transcript.
type Result struct {
	Text     string
	Accepted bool
	Reason   string
	Event    events.Event
}

// Dispatcher applies duplicate and noise suppression then routes. The last accepted
// command is a single slot shared by every caller.
type Dispatcher struct {
	router     Router
	window     time.Duration
	minLength  int
	normalizer *Normalizer
	onAccepted func(string, time.Time)
	logger     *slog.Logger
	observer   metrics.Observer

	mu       sync.Mutex
	lastText string
	lastAt   time.Time
	hasLast  bool
}

func NewDispatcher(router Router, opts Options) *Dispatcher {
	if opts.DuplicateWindow <= 0 {
		opts.DuplicateWindow = DefaultDuplicateWindow
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	return &Dispatcher{
		router:     router,
		window:     opts.DuplicateWindow,
		minLength:  opts.MinLength,
		normalizer: NewNormalizer(opts.Replacements),
		onAccepted: opts.OnAccepted,
		logger:     logging.NewComponentLogger(opts.Logger, "command_dispatcher"),
		observer:   opts.Observer,
	}
}

// Admit applies suppression and, when the command passes, records it as last accepted.
func (d *Dispatcher) Admit(text string, at time.Time) (string, string, bool) {
	text = strings.TrimSpace(d.normalizer.Apply(text))
	key := strings.ToLower(text)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast && key == d.lastText {
		// A timestamp earlier than the last accepted one still counts as a repeat.
		if at.Sub(d.lastAt) < d.window {
			return text, ReasonDuplicate, false
		}
	}
	if utf8.RuneCountInString(text) < d.minLength {
		return text, ReasonNoise, false
	}
	d.lastText = key
	d.lastAt = at
	d.hasLast = true
	return text, "", true
}

// Submit admits text and routes it. A suppressed command returns a Result with
// Accepted false and a nil error. Routing errors are returned as-is; the router has
// already surfaced a fallback reply.
func (d *Dispatcher) Submit(ctx context.Context, text string, at time.Time) (Result, error) {
	if at.IsZero() {
		at = time.Now()
	}
	cmd, reason, ok := d.Admit(text, at)
	res := Result{Text: cmd, Accepted: ok, Reason: reason}
	if !ok {
		d.logger.Debug("command_suppressed", slog.String("reason", reason), slog.Int("length", utf8.RuneCountInString(cmd)))
		d.observer.RecordEvent(metrics.MetricsEvent{
			Name:  metrics.EventCommandSuppressed,
			Time:  at,
			Value: 1,
			Tags:  map[string]string{metrics.TagReason: reason},
		})
		return res, nil
	}

	d.logger.Info("command_accepted", slog.Int("length", utf8.RuneCountInString(cmd)))
	d.observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventCommandAccepted,
		Time:  at,
		Value: 1,
	})
	if d.onAccepted != nil {
		d.onAccepted(cmd, at)
	}
	if d.router == nil {
		return res, nil
	}
	ev, err := d.router.Route(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Event = ev
	return res, nil
}

// Reset forgets the last accepted command.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.lastText = ""
	d.lastAt = time.Time{}
	d.hasLast = false
	d.mu.Unlock()
}
