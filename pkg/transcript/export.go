package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects an export encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSONL Format = "jsonl"
)

// ParseFormat accepts "yaml"/"yml" and "jsonl"/"json".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "jsonl", "json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

type yamlDocument struct {
	Messages []Message `yaml:"messages"`
}

// Export writes msgs to w in the given format.
func Export(w io.Writer, format Format, msgs []Message) error {
	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, m := range msgs {
			if err := enc.Encode(m); err != nil {
				return fmt.Errorf("encode message %s: %w", m.ID, err)
			}
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlDocument{Messages: msgs}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
