package realtime

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultWebsocketURL = "ws://localhost:3001/openai-realtime"
	DefaultBackendURL   = "http://localhost:3001"

	defaultInstructions = "You are Air Assist, a helpful voice-controlled AI assistant. " +
		"Respond naturally and concisely to voice commands. Do not repeat the user's name unnecessarily. " +
		"Focus on being helpful and conversational."
)

// SessionConfig is sent with session.create when the stream opens.
type SessionConfig struct {
	Model             string   `mapstructure:"model" json:"model"`
	Modalities        []string `mapstructure:"modalities" json:"modalities"`
	Instructions      string   `mapstructure:"instructions" json:"instructions"`
	Voice             string   `mapstructure:"voice" json:"voice"`
	InputAudioFormat  string   `mapstructure:"input_audio_format" json:"input_audio_format"`
	OutputAudioFormat string   `mapstructure:"output_audio_format" json:"output_audio_format"`
}

// ChatConfig drives the turn-based chat completions call.
type ChatConfig struct {
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	// HistoryTurns bounds how many prior exchanges are replayed with each request; negative disables replay.
	HistoryTurns int `mapstructure:"history_turns"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:             "gpt-4o-realtime-preview-2024-12-17",
		Modalities:        []string{"text", "audio"},
		Instructions:      defaultInstructions,
		Voice:             "alloy",
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
	}
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Model:        "gpt-4o-mini",
		MaxTokens:    1000,
		Temperature:  0.7,
		HistoryTurns: 10,
	}
}

type Config struct {
	WebsocketURL     string
	BackendURL       string
	Session          SessionConfig
	Chat             ChatConfig
	HandshakeTimeout time.Duration
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.WebsocketURL == "" {
		c.WebsocketURL = DefaultWebsocketURL
	}
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")

	def := DefaultSessionConfig()
	if c.Session.Model == "" {
		c.Session.Model = def.Model
	}
	if len(c.Session.Modalities) == 0 {
		c.Session.Modalities = def.Modalities
	}
	if c.Session.Instructions == "" {
		c.Session.Instructions = def.Instructions
	}
	if c.Session.Voice == "" {
		c.Session.Voice = def.Voice
	}
	if c.Session.InputAudioFormat == "" {
		c.Session.InputAudioFormat = def.InputAudioFormat
	}
	if c.Session.OutputAudioFormat == "" {
		c.Session.OutputAudioFormat = def.OutputAudioFormat
	}

	chat := DefaultChatConfig()
	if c.Chat.Model == "" {
		c.Chat.Model = chat.Model
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = chat.MaxTokens
	}
	if c.Chat.Temperature <= 0 {
		c.Chat.Temperature = chat.Temperature
	}
	if c.Chat.HistoryTurns < 0 {
		c.Chat.HistoryTurns = 0
	} else if c.Chat.HistoryTurns == 0 {
		c.Chat.HistoryTurns = chat.HistoryTurns
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}
