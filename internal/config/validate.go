package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is structurally usable. Secrets are
// checked separately by ValidateDaemon so CLI commands that never talk to
// Slack can run without them.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateRates(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

// ValidateDaemon checks the credentials the long-running service needs.
func (c *Config) ValidateDaemon() error {
	if err := c.Validate(); err != nil {
		return err
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required. Set SLACK_BOT_TOKEN env var or edit %s (create with 'transponster config init')", defaultPath)
	}
	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required. Set SLACK_SIGNING_SECRET env var or edit %s", defaultPath)
	}
	if c.Transcription.APIKey == "" {
		return errors.New("transcription.api_key is required (or set ELEVENLABS_API_KEY)")
	}
	if c.Drive.Enabled && c.Drive.CredentialsFile == "" {
		return errors.New("drive.credentials_file must be set when drive.enabled is true (or set GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.batch_window_ms":            c.Workflow.BatchWindowMillis,
		"workflow.max_parallel_files":         c.Workflow.MaxParallelFiles,
		"workflow.max_file_mb":                c.Workflow.MaxFileMB,
		"workflow.download_timeout_seconds":   c.Workflow.DownloadTimeoutSeconds,
		"workflow.transcribe_timeout_seconds": c.Workflow.TranscribeTimeoutSeconds,
		"workflow.upload_timeout_seconds":     c.Workflow.UploadTimeoutSeconds,
		"workflow.translate_timeout_seconds":  c.Workflow.TranslateTimeoutSeconds,
		"workflow.document_timeout_seconds":   c.Workflow.DocumentTimeoutSeconds,
		"workflow.subtitle_max_chars":         c.Workflow.SubtitleMaxChars,
	}); err != nil {
		return err
	}
	if c.Workflow.DedupRetentionHours < 0 {
		return errors.New("workflow.dedup_retention_hours must be >= 0")
	}
	if c.Workflow.SubtitleMaxSeconds <= 0 {
		return errors.New("workflow.subtitle_max_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	names := make([]string, 0, len(c.Translation.Reactions))
	for name := range c.Translation.Reactions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lang := c.Translation.Reactions[name]
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("translation.reactions.%s must name a language", name)
		}
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("translation.reactions.%s: invalid language %q: %w", name, lang, err)
		}
	}
	return nil
}

func (c *Config) validateRates() error {
	if c.Transcription.RequestsPerMinute < 0 {
		return errors.New("transcription.requests_per_minute must be >= 0")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm.requests_per_second must be >= 0")
	}
	if c.Drive.RequestsPerSecond < 0 {
		return errors.New("drive.requests_per_second must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
