package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON returns the JSON document embedded in a model reply.
// Replies that are already valid JSON are returned as-is; otherwise markdown
// fences and surrounding prose are stripped.
func extractJSON(raw string) ([]byte, error) {
	if json.Valid([]byte(raw)) {
		return []byte(raw), nil
	}

	cleaned := stripMarkdownJSON(raw)
	if json.Valid([]byte(cleaned)) {
		return []byte(cleaned), nil
	}

	return nil, fmt.Errorf("%w: reply is not valid JSON: %s", ErrInvalidResponse, truncate(raw, 200))
}

// stripMarkdownJSON removes markdown code fences and leading/trailing non-JSON text.
func stripMarkdownJSON(s string) string {
	s = strings.TrimSpace(s)

	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	}

	// Find first { or [ and last } or ]
	startObj := strings.IndexByte(s, '{')
	startArr := strings.IndexByte(s, '[')

	start := -1
	isArray := false

	switch {
	case startObj >= 0 && startArr >= 0:
		if startArr < startObj {
			start = startArr
			isArray = true
		} else {
			start = startObj
		}
	case startObj >= 0:
		start = startObj
	case startArr >= 0:
		start = startArr
		isArray = true
	}

	if start < 0 {
		return s
	}

	var end int
	if isArray {
		end = strings.LastIndexByte(s, ']')
	} else {
		end = strings.LastIndexByte(s, '}')
	}

	if end <= start {
		return s
	}

	return s[start : end+1]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
