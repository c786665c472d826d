package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseChunkResponse decodes a model reply into a ChunkResult. Models
// occasionally wrap the JSON in markdown fences or prepend prose despite the
// prompt, so the raw object is located before decoding.
func parseChunkResponse(raw string) (ChunkResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return ChunkResult{}, fmt.Errorf("no JSON object in provider response")
	}

	var result ChunkResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return ChunkResult{}, fmt.Errorf("decoding provider response: %w", err)
	}
	if result.CorrectedText == "" {
		return ChunkResult{}, fmt.Errorf("provider response missing corrected_text")
	}
	for i := range result.Issues {
		if result.Issues[i].Type == "" {
			result.Issues[i].Type = IssueSpelling
		}
	}
	return result, nil
}

// extractJSON returns the first top-level JSON object in raw, stripping
// markdown code fences if present.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
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
