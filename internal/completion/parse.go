package completion

import (
	"encoding/json"
	"strings"
)

// ParseStructured extracts structured data from a completion reply.
// It tries a direct decode first, then the first balanced bracketed
// region, and falls back to an empty map so downstream code never sees
// raw text. Top-level arrays are wrapped under "items".
func ParseStructured(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}
	}

	if m, ok := decode(text); ok {
		return m
	}

	if region := balancedRegion(text); region != "" {
		if m, ok := decode(region); ok {
			return m
		}
	}

	return map[string]any{}
}

func decode(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, true
	}
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return map[string]any{"items": arr}, true
	}
	return nil, false
}

// balancedRegion returns the first complete {...} or [...] region,
// tracking nesting and skipping brackets inside JSON strings.
func balancedRegion(text string) string {
	start := -1
	var open, closer rune
	for i, ch := range text {
		if ch == '{' || ch == '[' {
			start = i
			open = ch
			closer = '}'
			if ch == '[' {
				closer = ']'
			}
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := rune(text[i])
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
