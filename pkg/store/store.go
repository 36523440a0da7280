// Package store holds the durable key/value mirror of provider selection and connection state.
package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Persisted keys. Booleans are stored as the literal strings "true" and "false".
const (
	KeyActiveProvider    = "active_provider"
	KeyRealtimeConnected = "realtime_connected"
	KeyWebhookConnected  = "webhook_connected"
	KeyRealtimeAPIKey    = "realtime_api_key"
	KeyWebhookURL        = "webhook_url"
)

// Store is a string key/value store. Writes are last-writer-wins.
// A missing key reads as "" with a nil error.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// ChangeFunc is called after a key was written.
type ChangeFunc func(key, value string)

// Notifier is implemented by stores that report writes to subscribers.
type Notifier interface {
	Subscribe(fn ChangeFunc) (unsubscribe func())
}

// ConnectedKey returns the connected-flag key for a provider name.
func ConnectedKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "_connected"
}

// CredentialKey returns the credential key for a provider name.
func CredentialKey(provider string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "realtime":
		return KeyRealtimeAPIKey, nil
	case "webhook":
		return KeyWebhookURL, nil
	default:
		return "", fmt.Errorf("no credential key for provider %q", provider)
	}
}

// FormatBool renders a boolean the way it is persisted.
func FormatBool(v bool) string {
	return strconv.FormatBool(v)
}

// GetBool reads a persisted boolean; anything but "true" is false.
func GetBool(s Store, key string) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetBool persists a boolean as "true"/"false".
func SetBool(s Store, key string, v bool) error {
	return s.Set(key, FormatBool(v))
}

// Record is a snapshot of every persisted key.
type Record struct {
	ActiveProvider    string
	RealtimeConnected bool
	WebhookConnected  bool
	Credentials       map[string]string
}

// LoadRecord reads a fresh snapshot. Read failures are joined so callers still get partial data.
func LoadRecord(s Store) (Record, error) {
	var errs error
	get := func(key string) string {
		v, err := s.Get(key)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("read %s: %w", key, err))
		}
		return v
	}
	rec := Record{
		ActiveProvider:    get(KeyActiveProvider),
		RealtimeConnected: get(KeyRealtimeConnected) == "true",
		WebhookConnected:  get(KeyWebhookConnected) == "true",
		Credentials: map[string]string{
			"realtime": get(KeyRealtimeAPIKey),
			"webhook":  get(KeyWebhookURL),
		},
	}
	return rec, errs
}
