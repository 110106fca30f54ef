package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSlack()
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeTranslation()
	if err := c.normalizeDrive(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LegacyMappingsFile == "" {
		c.Paths.LegacyMappingsFile = lookupEnv("MAPPINGS_FILE")
	}
	if c.Paths.LegacyMappingsFile, err = expandPath(c.Paths.LegacyMappingsFile); err != nil {
		return fmt.Errorf("paths.legacy_mappings_file: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("TRANSPONSTER_API_TOKEN")
	}
	c.Paths.SlackEventsEndpoint = strings.TrimSpace(c.Paths.SlackEventsEndpoint)
	if c.Paths.SlackEventsEndpoint == "" {
		c.Paths.SlackEventsEndpoint = defaultSlackEventsEndpoint
	}
	if !strings.HasPrefix(c.Paths.SlackEventsEndpoint, "/") {
		c.Paths.SlackEventsEndpoint = "/" + c.Paths.SlackEventsEndpoint
	}
	return nil
}

func (c *Config) normalizeSlack() {
	c.Slack.BotToken = strings.TrimSpace(c.Slack.BotToken)
	if c.Slack.BotToken == "" {
		c.Slack.BotToken = lookupEnv("SLACK_BOT_TOKEN")
	}
	c.Slack.SigningSecret = strings.TrimSpace(c.Slack.SigningSecret)
	if c.Slack.SigningSecret == "" {
		c.Slack.SigningSecret = lookupEnv("SLACK_SIGNING_SECRET")
	}
	c.Slack.StartupChannel = strings.TrimSpace(c.Slack.StartupChannel)
	if c.Slack.StartupChannel == "" {
		c.Slack.StartupChannel = lookupEnv("SLACK_STARTUP_CHANNEL")
	}
	c.Slack.APIURL = strings.TrimSpace(c.Slack.APIURL)
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = lookupEnv("ELEVENLABS_API_KEY")
	}
	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultSTTBaseURL
	}
	c.Transcription.ModelID = strings.TrimSpace(c.Transcription.ModelID)
	if c.Transcription.ModelID == "" {
		c.Transcription.ModelID = defaultSTTModel
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultSTTTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("OPENROUTER_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = 1
	}
}

// normalizeTranslation lowercases reaction names, strips surrounding colons,
// and canonicalizes language tags so "EN-gb" and "en-GB" compare equal.
func (c *Config) normalizeTranslation() {
	if c.Translation.MaxBatchItems <= 0 {
		c.Translation.MaxBatchItems = defaultMaxBatchItems
	}
	if c.Translation.MaxBatchChars <= 0 {
		c.Translation.MaxBatchChars = defaultMaxBatchChars
	}
	if len(c.Translation.Reactions) == 0 {
		c.Translation.Reactions = DefaultReactions()
		return
	}
	reactions := make(map[string]string, len(c.Translation.Reactions))
	for name, lang := range c.Translation.Reactions {
		key := strings.Trim(strings.ToLower(strings.TrimSpace(name)), ":")
		if key == "" {
			continue
		}
		value := strings.TrimSpace(lang)
		if tag, err := language.Parse(value); err == nil {
			value = tag.String()
		}
		reactions[key] = value
	}
	c.Translation.Reactions = reactions
}

func (c *Config) normalizeDrive() error {
	c.Drive.CredentialsFile = strings.TrimSpace(c.Drive.CredentialsFile)
	if c.Drive.CredentialsFile == "" {
		c.Drive.CredentialsFile = lookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	var err error
	if c.Drive.CredentialsFile, err = expandPath(c.Drive.CredentialsFile); err != nil {
		return fmt.Errorf("drive.credentials_file: %w", err)
	}
	c.Drive.SharedDriveName = strings.TrimSpace(c.Drive.SharedDriveName)
	if c.Drive.SharedDriveName == "" {
		c.Drive.SharedDriveName = defaultSharedDriveName
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
