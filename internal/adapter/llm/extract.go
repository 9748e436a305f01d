package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON object could be located in
// the model output.
var ErrNoJSON = errors.New("no json object found in llm response")

// ExtractJSON locates the JSON object embedded in free-form model output.
// Models frequently wrap JSON in prose or code fences, so the policy is
// lenient: first try the greedy brace span (first '{' to last '}'), then the
// whole trimmed text. The span match is not nesting-aware; a response
// carrying multiple top-level objects can defeat it.
func ExtractJSON(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	return nil, ErrNoJSON
}
