package configutil

import (
	"sort"
	"strings"
)

// Schema lists the keys a vendor settings block may carry. Keys match regardless of
// case, underscores and hyphens, so "api_key", "apiKey" and "API-KEY" are the same key.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError reports every problem in a settings block at once.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks input against schema. A required key holding an empty or
// blank string counts as missing.
func ValidateSettings(input map[string]any, schema Schema) error {
	known := make(map[string]string, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = k
	}
	for _, k := range schema.Required {
		known[normalizeKey(k)] = k
	}

	present := make(map[string]bool, len(input))
	out := &SettingsError{}
	for k, v := range input {
		nk := normalizeKey(k)
		if _, ok := known[nk]; !ok {
			if !schema.AllowUnknown {
				out.Unknown = append(out.Unknown, k)
			}
			continue
		}
		present[nk] = !blank(v)
	}
	for _, k := range schema.Required {
		if !present[normalizeKey(k)] {
			out.Missing = append(out.Missing, k)
		}
	}

	if len(out.Missing) == 0 && len(out.Unknown) == 0 {
		return nil
	}
	sort.Strings(out.Missing)
	sort.Strings(out.Unknown)
	return out
}

func blank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}
