package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/errorsx"
	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/logging"
)

// Connector opens Realtime connections: a websocket stream for server events plus
// a turn-based chat completions client for text commands.
type Connector struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Connector {
	cfg = cfg.withDefaults()
	return &Connector{
		cfg:    cfg,
		logger: logging.NewComponentLogger(cfg.Logger, "realtime"),
	}
}

func (c *Connector) Kind() provider.Kind { return provider.KindRealtime }

// Open dials the streaming proxy and immediately sends session.create.
func (c *Connector) Open(ctx context.Context, credential string, hooks provider.Hooks) (provider.Connection, error) {
	if credential == "" {
		return nil, &provider.MissingCredentialError{Provider: provider.KindRealtime}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	c.logger.Debug("realtime_dialing", slog.String("url", c.cfg.WebsocketURL))
	ws, resp, err := dialer.DialContext(ctx, c.cfg.WebsocketURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, errorsx.Wrap(&provider.BackendError{
				Provider: provider.KindRealtime,
				Status:   resp.StatusCode,
				Detail:   resp.Status,
			}, errorsx.ReasonRealtimeConnect)
		}
		return nil, errorsx.Wrap(&provider.TransportError{Provider: provider.KindRealtime, Op: "dial", Err: err}, errorsx.ReasonRealtimeConnect)
	}

	chatCfg := openai.DefaultConfig(credential)
	chatCfg.BaseURL = c.cfg.BackendURL + "/api"
	chatCfg.HTTPClient = c.cfg.HTTPClient

	conn := &Connection{
		cfg:    c.cfg,
		ws:     ws,
		chat:   openai.NewClientWithConfig(chatCfg),
		hooks:  hooks,
		logger: c.logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	conn.streamOpen.Store(true)

	if err := conn.writeJSON(sessionCreate{Type: "session.create", Session: c.cfg.Session}); err != nil {
		_ = ws.Close()
		return nil, errorsx.Wrap(&provider.TransportError{Provider: provider.KindRealtime, Op: "session.create", Err: err}, errorsx.ReasonRealtimeSession)
	}
	c.logger.Info("realtime_session_requested",
		slog.String("model", c.cfg.Session.Model),
		slog.String("voice", c.cfg.Session.Voice))

	go conn.readLoop()
	return conn, nil
}

// Connection is one open Realtime session.
type Connection struct {
	cfg    Config
	ws     *websocket.Conn
	chat   *openai.Client
	hooks  provider.Hooks
	logger *slog.Logger
	now    func() time.Time

	writeMu sync.Mutex

	sessionReady atomic.Bool
	streamOpen   atomic.Bool
	closing      atomic.Bool
	closeOnce    sync.Once
	done         chan struct{}

	histMu  sync.Mutex
	history []openai.ChatCompletionMessage
}

// SessionReady reports whether the proxy acknowledged session.create.
func (c *Connection) SessionReady() bool { return c.sessionReady.Load() }

// StreamOpen reports whether the websocket is still delivering frames.
// It goes false after an end-of-turn close while the session stays usable for Send.
func (c *Connection) StreamOpen() bool { return c.streamOpen.Load() }

// Done is closed when the read loop exits.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *Connection) readLoop() {
	defer close(c.done)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.streamOpen.Store(false)
			c.handleClose(err)
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			c.logger.Debug("realtime_binary_frame_drained", slog.Int("size_bytes", len(data)))
		case websocket.TextMessage:
			c.handleFrame(data)
		}
	}
}

func (c *Connection) handleFrame(data []byte) {
	ev, result, err := decodeFrame(data, c.now())
	if err != nil {
		c.logger.Warn("realtime_frame_dropped",
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.ReasonFrameParse)))
		return
	}
	switch result {
	case frameUnknown:
		c.logger.Info("realtime_unknown_frame", slog.String("type", string(ev.Type)))
		return
	case frameIgnored:
		c.logger.Debug("realtime_frame_ignored", slog.String("type", string(ev.Type)))
		return
	}
	if ev.Type == events.TypeSessionCreated {
		c.sessionReady.Store(true)
		c.logger.Info("realtime_session_created")
	}
	if ev.Type == events.TypeError {
		c.logger.Warn("realtime_error_frame", slog.String("error", ev.Err))
	}
	c.hooks.Event(ev)
}

// handleClose separates end-of-turn closes from real disconnects. The proxy uses
// close code 1000 both to finish a response cycle and to hang up; after the session
// was acknowledged a 1000 close only ends the turn.
func (c *Connection) handleClose(err error) {
	if c.closing.Load() {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure && c.sessionReady.Load() {
		c.logger.Info("realtime_turn_complete", slog.Int("close_code", ce.Code))
		return
	}
	c.logger.Warn("realtime_disconnected",
		slog.String("error", err.Error()),
		slog.Bool("session_ready", c.sessionReady.Load()))
	c.hooks.Disconnect(errorsx.Wrap(&provider.TransportError{Provider: provider.KindRealtime, Op: "read", Err: err}, errorsx.ReasonRealtimeClosed))
}

// Send runs a turn-based exchange through the backend proxy rather than the stream.
func (c *Connection) Send(ctx context.Context, command string) (events.Event, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: command}
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Chat.Model,
		Messages:    append(c.historySnapshot(), user),
		MaxTokens:   c.cfg.Chat.MaxTokens,
		Temperature: c.cfg.Chat.Temperature,
	}
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return events.Event{}, errorsx.Wrap(classifyChatError(err), errorsx.ReasonRealtimeSend)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return events.Event{}, errorsx.Wrap(&provider.BackendError{
			Provider: provider.KindRealtime,
			Status:   http.StatusOK,
			Detail:   "empty completion",
		}, errorsx.ReasonRealtimeSend)
	}
	text := resp.Choices[0].Message.Content
	c.remember(user, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text})
	return events.Event{
		Type:     events.TypeResponseText,
		Provider: provider.KindRealtime.String(),
		Role:     events.RoleAssistant,
		Text:     text,
		Model:    resp.Model,
		Time:     c.now(),
	}, nil
}

func (c *Connection) historySnapshot() []openai.ChatCompletionMessage {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	return append([]openai.ChatCompletionMessage(nil), c.history...)
}

func (c *Connection) remember(msgs ...openai.ChatCompletionMessage) {
	if c.cfg.Chat.HistoryTurns <= 0 {
		return
	}
	c.histMu.Lock()
	defer c.histMu.Unlock()
	c.history = append(c.history, msgs...)
	if limit := c.cfg.Chat.HistoryTurns * 2; len(c.history) > limit {
		c.history = append([]openai.ChatCompletionMessage(nil), c.history[len(c.history)-limit:]...)
	}
}

// Close sends a normal close frame and tears down the socket without firing OnDisconnect.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

var (
	_ provider.Connector  = (*Connector)(nil)
	_ provider.Connection = (*Connection)(nil)
)
