package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"transponster/internal/config"
	"transponster/internal/services"
	"transponster/internal/services/elevenlabs"
	"transponster/internal/services/gdrive"
	"transponster/internal/services/llm"
	"transponster/internal/services/slack"
)

const checkTimeout = 30 * time.Second

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := llm.NewClient(llm.ConfigFrom(cfg), llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", client.Model())}
}

// CheckSlack verifies the bot token through auth.test.
func CheckSlack(ctx context.Context, cfg config.Slack) Result {
	const name = "Slack"
	if strings.TrimSpace(cfg.BotToken) == "" {
		return Result{Name: name, Detail: "bot token missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	identity, err := slack.New(cfg).AuthTest(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError("Slack API", err)}
	}
	detail := fmt.Sprintf("authenticated as %s", identity)
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return Result{Name: name, Detail: detail + ", but signing secret missing"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckTranscription verifies the speech-to-text key.
func CheckTranscription(ctx context.Context, cfg config.Transcription) Result {
	const name = "Speech-to-text"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := elevenlabs.NewClient(elevenlabs.ConfigFrom(cfg))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("speech-to-text API", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", cfg.ModelID)}
}

// CheckDrive verifies the service account can reach the shared drive.
func CheckDrive(ctx context.Context, cfg config.Drive) Result {
	const name = "Google Drive"
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return Result{Name: name, Detail: "credentials file missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	store, err := gdrive.New(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: summarizeError("Drive API", err)}
	}
	id, err := store.SharedDriveID(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError("Drive API", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("shared drive %q (%s)", cfg.SharedDriveName, id)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeError produces a human-readable summary for health check failures.
func summarizeError(what string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", what)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", what)
	}
	switch services.FailureKind(err) {
	case services.KindConfiguration:
		return fmt.Sprintf("credentials rejected (%v)", err)
	case services.KindQuota:
		return fmt.Sprintf("quota exhausted (%v)", err)
	}
	return err.Error()
}
