package llm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinContentLength is the shortest file content accepted from the model.
// Anything shorter is almost always a truncated or elided reply.
const MinContentLength = 10

// ErrInvalidResponse marks a reply that is not a usable proposal.
var ErrInvalidResponse = errors.New("invalid model response")

// Validate checks the structure of a decoded model reply. It accepts only an
// object whose "files" array is non-empty, where every entry has a real
// path and content of at least MinContentLength characters.
func Validate(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return invalid("response is not a JSON object")
	}

	rawFiles, ok := obj["files"]
	if !ok {
		return invalid(`response has no "files" field`)
	}
	files, ok := rawFiles.([]any)
	if !ok {
		return invalid(`"files" is not an array`)
	}
	if len(files) == 0 {
		return invalid(`"files" is empty`)
	}

	for i, item := range files {
		entry, ok := item.(map[string]any)
		if !ok {
			return invalid("files[%d] is not an object", i)
		}

		path, ok := entry["path"].(string)
		if !ok || path == "" {
			return invalid("files[%d] has no path", i)
		}

		content, ok := entry["content"].(string)
		if !ok {
			return invalid("files[%d] (%s) has no content", i, path)
		}
		if utf8.RuneCountInString(content) < MinContentLength {
			return invalid("files[%d] (%s) content is shorter than %d characters", i, path, MinContentLength)
		}

		if IsPlaceholderPath(path) {
			return invalid("files[%d] path %q is a placeholder", i, path)
		}
	}

	return nil
}

// IsPlaceholderPath reports whether path looks like an example path copied
// from a prompt rather than a real file.
func IsPlaceholderPath(path string) bool {
	return strings.ContainsAny(path, "<>") ||
		strings.Contains(path, "path/to") ||
		strings.HasSuffix(path, ".ext")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}
