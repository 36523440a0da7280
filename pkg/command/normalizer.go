package command

import (
	"sort"
	"strings"
)

// Normalizer performs simple phrase replacements so recognized speech matches
// the vocabulary the backends expect ("air con" -> "air conditioner").
type Normalizer struct {
	from []string
	to   map[string]string
}

func NewNormalizer(replacements map[string]string) *Normalizer {
	n := &Normalizer{to: make(map[string]string, len(replacements))}
	for from, to := range replacements {
		key := strings.ToLower(strings.TrimSpace(from))
		if key == "" {
			continue
		}
		n.from = append(n.from, key)
		n.to[key] = to
	}
	// Longest phrase first so overlapping entries apply deterministically.
	sort.Slice(n.from, func(i, j int) bool {
		if len(n.from[i]) != len(n.from[j]) {
			return len(n.from[i]) > len(n.from[j])
		}
		return n.from[i] < n.from[j]
	})
	return n
}

// Apply returns text with every configured phrase replaced in a single left-to-right
// pass, so replacement output is never matched again. Matching is case-insensitive;
// text without a match is returned unchanged.
func (n *Normalizer) Apply(text string) string {
	if n == nil || len(n.from) == 0 {
		return text
	}
	lower := strings.ToLower(text)
	var b strings.Builder
	matched := false
	for i := 0; i < len(lower); {
		hit := ""
		for _, from := range n.from {
			if strings.HasPrefix(lower[i:], from) {
				hit = from
				break
			}
		}
		if hit == "" {
			b.WriteByte(lower[i])
			i++
			continue
		}
		matched = true
		b.WriteString(n.to[hit])
		i += len(hit)
	}
	if !matched {
		return text
	}
	return b.String()
}
