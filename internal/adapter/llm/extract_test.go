package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Run("Bare Object", func(t *testing.T) {
		raw, err := ExtractJSON(`{"segment":"CASUAL","confidence":0.5}`)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("extracted span is not valid json: %v", err)
		}
		if parsed["segment"] != "CASUAL" {
			t.Errorf("unexpected payload: %v", parsed)
		}
	})

	t.Run("Wrapped In Prose", func(t *testing.T) {
		text := "Sure! Here is the classification you asked for:\n{\"segment\":\"RECRUITER\"}\nLet me know if you need anything else."
		raw, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("extracted span is not valid json: %v", err)
		}
		if parsed["segment"] != "RECRUITER" {
			t.Errorf("unexpected payload: %v", parsed)
		}
	})

	t.Run("Wrapped In Code Fence", func(t *testing.T) {
		text := "```json\n{\"priority_sections\":[\"projects\"]}\n```"
		raw, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("extracted span is not valid json: %v", err)
		}
	})

	t.Run("Nested Object Uses Greedy Span", func(t *testing.T) {
		text := `prefix {"a":{"b":{"c":1}}} suffix`
		raw, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(raw) != `{"a":{"b":{"c":1}}}` {
			t.Errorf("unexpected span: %s", raw)
		}
	})

	t.Run("No JSON At All", func(t *testing.T) {
		_, err := ExtractJSON("I am terribly sorry but I have no answer.")
		if !errors.Is(err, ErrNoJSON) {
			t.Fatalf("expected ErrNoJSON, got %v", err)
		}
	})

	t.Run("Multiple Objects Defeat The Greedy Span", func(t *testing.T) {
		// Known limitation of the lenient policy: two top-level objects make
		// the greedy span invalid and the whole text is not JSON either.
		_, err := ExtractJSON(`{"a":1} and {"b":2}`)
		if err == nil {
			t.Fatal("expected an error for multiple top-level objects")
		}
	})
}
