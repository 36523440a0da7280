package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/capture"
	"github.com/harunnryd/airassist/pkg/errorsx"
	"github.com/harunnryd/airassist/pkg/logging"
	"github.com/harunnryd/airassist/pkg/redact"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	UtteranceEndMS int
	// Audio is the raw PCM stream to transcribe, e.g. a microphone pipe.
	Audio io.Reader
}

// Source streams audio to Deepgram and emits only final transcripts.
type Source struct {
	cfg      Config
	dgClient *client.WSCallback
	out      chan capture.Transcript
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	closed bool
}

func New(cfg Config) *Source {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Source{
		cfg:    cfg,
		out:    make(chan capture.Transcript, 64),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_capture"),
		now:    time.Now,
	}
}

func (s *Source) Name() string { return "deepgram" }

func (s *Source) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return errorsx.Errorf(errorsx.ReasonCaptureConnect, "deepgram api key is required")
	}
	if s.cfg.Audio == nil {
		return errorsx.Errorf(errorsx.ReasonCaptureConnect, "deepgram audio input is required")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		InterimResults: false,
		SmartFormat:    true,
	}
	if s.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", s.cfg.UtteranceEndMS)
	}

	s.logger.Info("deepgram_capture_init",
		slog.String("model", s.cfg.Model),
		slog.String("api_key", redact.Secret(s.cfg.APIKey)),
		slog.Int("sample_rate", s.cfg.SampleRate))

	dgClient, err := client.NewWSUsingCallback(s.ctx, s.cfg.APIKey, clientOptions, transcriptOptions, &callback{parent: s})
	if err != nil {
		return errorsx.Errorf(errorsx.ReasonCaptureConnect, "deepgram client: %w", err)
	}
	s.dgClient = dgClient
	if connected := s.dgClient.Connect(); !connected {
		return errorsx.Errorf(errorsx.ReasonCaptureConnect, "deepgram connection failed")
	}

	go func() {
		if err := s.dgClient.Stream(s.cfg.Audio); err != nil && s.ctx.Err() == nil {
			s.logger.Error("deepgram_stream_error",
				slog.String("error", err.Error()),
				slog.String("reason_code", string(errorsx.ReasonCaptureSend)))
		}
	}()
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.out)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.dgClient != nil {
		s.dgClient.Stop()
	}
	return nil
}

func (s *Source) Transcripts() <-chan capture.Transcript { return s.out }

// emit forwards final transcripts; interim results are dropped.
func (s *Source) emit(text string, final bool) bool {
	text = strings.TrimSpace(text)
	if text == "" || !final {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- capture.Transcript{Text: text, At: s.now()}:
		return true
	default:
		s.logger.Warn("deepgram_out_channel_full")
		return false
	}
}

type callback struct {
	parent *Source
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	c.parent.emit(mr.Channel.Alternatives[0].Transcript, mr.IsFinal || mr.SpeechFinal)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.Int("size_bytes", len(byData)))
	return nil
}

var _ capture.Source = (*Source)(nil)
