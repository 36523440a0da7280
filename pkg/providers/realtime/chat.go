package realtime

import (
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
)

// classifyChatError maps go-openai failures onto the provider error taxonomy.
// The proxy answers non-2xx with {"error": "..."}, which go-openai reports as a RequestError.
func classifyChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &provider.BackendError{
			Provider: provider.KindRealtime,
			Status:   apiErr.HTTPStatusCode,
			Detail:   apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &provider.BackendError{
			Provider: provider.KindRealtime,
			Status:   reqErr.HTTPStatusCode,
			Detail:   proxyErrorDetail(reqErr.Body, reqErr.HTTPStatus),
		}
	}
	return &provider.TransportError{Provider: provider.KindRealtime, Op: "chat", Err: err}
}

func proxyErrorDetail(body []byte, status string) string {
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch v := payload.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return status
}
