package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transponster/internal/config"
	"transponster/internal/services"
	"transponster/internal/services/ratelimit"
	"transponster/internal/transcript"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultModelID = "scribe_v1"
	defaultTimeout = 30 * time.Minute
	maxErrorBody   = 4096
)

// Config captures the transcription settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ModelID        string
	Diarize        bool
	TagAudioEvents bool
	TimeoutSeconds int
}

// ConfigFrom maps the [transcription] section.
func ConfigFrom(cfg config.Transcription) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		ModelID:        cfg.ModelID,
		Diarize:        cfg.Diarize,
		TagAudioEvents: cfg.TagAudioEvents,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
}

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech-to-text: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Unwrap maps the status onto a services marker.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return services.ErrQuota
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrConfiguration
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return services.ErrValidation
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return services.ErrTimeout
	default:
		return services.ErrTransport
	}
}

// Quota reports a quota or rate-limit rejection.
func (e *StatusError) Quota() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusPaymentRequired
}

// Client talks to the speech-to-text API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter paces requests.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewClient constructs a client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads the media read from r under filename. The body is
// streamed, so r is read exactly once.
func (c *Client) Transcribe(ctx context.Context, filename string, r io.Reader) (transcript.Result, error) {
	var result transcript.Result
	if c.cfg.APIKey == "" {
		return result, services.Wrap(services.ErrConfiguration, "transcribe", "speech-to-text", "api key required", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return result, err
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(form, filename, r))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, pr)
	if err != nil {
		return result, fmt.Errorf("speech-to-text: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, services.Wrap(services.ErrTransport, "transcribe", "speech-to-text", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if statusErr.Quota() {
			c.limiter.Cooldown(statusErr.RetryAfter)
		}
		return result, statusErr
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, services.Wrap(services.ErrFormat, "transcribe", "speech-to-text", "decode response", err)
	}
	return result, nil
}

func (c *Client) writeForm(form *multipart.Writer, filename string, r io.Reader) error {
	fields := [][2]string{
		{"model_id", c.cfg.ModelID},
		{"diarize", strconv.FormatBool(c.cfg.Diarize)},
		{"tag_audio_events", strconv.FormatBool(c.cfg.TagAudioEvents)},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("stream media: %w", err)
	}
	return form.Close()
}

// HealthCheck verifies the API key against the user endpoint next to the
// configured speech-to-text URL.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("speech-to-text health: api key required")
	}
	endpoint := strings.TrimSuffix(strings.TrimSuffix(c.cfg.BaseURL, "/"), "/speech-to-text") + "/user"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("speech-to-text health: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "preflight", "speech-to-text", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
