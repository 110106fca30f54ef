package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"transponster/internal/services"
)

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
		// Some providers answer with the streaming schema even when
		// stream=false.
		Delta        completionMessage `json:"delta"`
		Text         string            `json:"text"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type completionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// StatusError is a non-2xx reply from the API.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarizeSnippet(e.Body))
}

// Unwrap tags the error with a services marker.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusPaymentRequired:
		return services.ErrQuota
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return services.ErrConfiguration
	case e.StatusCode == http.StatusRequestTimeout:
		return services.ErrTimeout
	default:
		return services.ErrTransport
	}
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

func (e *emptyContentError) Unwrap() error { return services.ErrTransient }

func (c *Client) complete(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := c.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.completeOnce(ctx, payload, op)
		if err == nil {
			return content, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	if attempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	completion, body, err := c.send(ctx, payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			c.limiter.Cooldown(statusErr.RetryAfter)
		}
		return "", err
	}
	for _, choice := range completion.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, nil
		}
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: empty choices", op, services.ErrTransient)
	}
	choice := completion.Choices[0]
	return "", &emptyContentError{
		Op:           op,
		FinishReason: strings.TrimSpace(choice.FinishReason),
		Refusal:      firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal),
		Snippet:      summarizeSnippet(string(body)),
	}
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: %w: timeout=%s: %w", services.ErrTransport, c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: %w: read body: %w", services.ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, fmt.Errorf("llm request: %w: decode response: %w", services.ErrFormat, err)
	}
	if completion.Error != nil {
		return completion, body, fmt.Errorf("llm request: %w: api error: %s", services.ErrTransport, strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
