package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"transponster/internal/services"
)

// DecodeJSON decodes a JSON object from model output, tolerating code fences
// and chatter around the object.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return fmt.Errorf("llm payload: %w: empty", services.ErrFormat)
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("llm payload: %w: no JSON object in %s", services.ErrFormat, summarizeSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), target); err != nil {
		return fmt.Errorf("llm payload: %w: %w (snippet: %s)", services.ErrFormat, err, summarizeSnippet(trimmed))
	}
	return nil
}

// stripCodeFence removes a surrounding ``` block, with or without a language
// tag.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(strings.TrimSpace(body[:nl]), " \t") {
		body = body[nl+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.Trim(body, "\r\n")
}
