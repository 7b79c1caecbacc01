package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alexwox/research-assistant/internal/agent/model"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
)

// ParseResearchResult validates a model payload against the research result
// shape. Models frequently wrap JSON in markdown fences or surround it with
// prose, so the parser extracts the outermost JSON object before decoding.
func ParseResearchResult(content string) (*model.ResearchResult, error) {
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("payload too large: %d bytes", len(content))
	}

	raw := extractJSONObject(stripFences(content))
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in payload")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var result model.ResearchResult
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode research result: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// drop the language tag line (e.g. "json")
		if first := strings.TrimSpace(s[:idx]); first == "" || !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the substring from the first '{' to its matching
// closing brace, tracking strings so braces inside values don't confuse the
// scan.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
