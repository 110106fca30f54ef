package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"transponster/internal/config"
)

const userAgent = "Transponster/1.0"

// Service is the operator alert surface.
type Service interface {
	NotifyStartup(ctx context.Context, detail string) error
	NotifyBatchCompleted(ctx context.Context, batchKey string, succeeded, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, label string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a noop one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		startup:  cfg.Notifications.Startup,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	startup  bool
	errors   bool
}

func (n *ntfyService) NotifyStartup(ctx context.Context, detail string) error {
	if !n.startup {
		return nil
	}
	message := "🎙️ Transponster is listening"
	if detail = strings.TrimSpace(detail); detail != "" {
		message += ": " + detail
	}
	return n.send(ctx, payload{
		title:   "Transponster - Started",
		message: message,
		tags:    []string{"transponster", "startup"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, batchKey string, succeeded, failed int, duration time.Duration) error {
	if failed == 0 {
		return nil
	}
	duration = max(duration.Round(time.Second), 0)
	return n.send(ctx, payload{
		title:   "Transponster - Batch finished with errors",
		message: fmt.Sprintf("Batch %s: %d succeeded, %d failed in %s", batchKey, succeeded, failed, duration),
		tags:    []string{"transponster", "batch", "warning"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, label string) error {
	if !n.errors {
		return nil
	}
	var b strings.Builder
	b.WriteString("❌ Error")
	if label = strings.TrimSpace(label); label != "" {
		b.WriteString(" with ")
		b.WriteString(label)
	}
	b.WriteString(": ")
	if err != nil {
		b.WriteString(strings.TrimSpace(err.Error()))
	} else {
		b.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Transponster - Error",
		message:  b.String(),
		tags:     []string{"transponster", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Transponster - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"transponster", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStartup(context.Context, string) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
