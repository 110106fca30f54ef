package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir             string `toml:"data_dir"`
	LogDir              string `toml:"log_dir"`
	LegacyMappingsFile  string `toml:"legacy_mappings_file"`
	APIBind             string `toml:"api_bind"`
	APIToken            string `toml:"api_token"`
	SlackEventsEndpoint string `toml:"slack_events_endpoint"`
}

// Slack contains bot credentials for the Web and Events APIs.
type Slack struct {
	BotToken       string `toml:"bot_token"`
	SigningSecret  string `toml:"signing_secret"`
	StartupChannel string `toml:"startup_channel"`
	APIURL         string `toml:"api_url"`
}

// Transcription contains the speech-to-text service settings.
type Transcription struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	ModelID           string  `toml:"model_id"`
	Diarize           bool    `toml:"diarize"`
	TagAudioEvents    bool    `toml:"tag_audio_events"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerMinute float64 `toml:"requests_per_minute"`
}

// LLM contains the language model connection used for translation.
type LLM struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Referer           string  `toml:"referer"`
	Title             string  `toml:"title"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RetryAttempts     int     `toml:"retry_attempts"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Translation controls how spans are grouped into model requests and which
// reactions request a translation.
type Translation struct {
	MaxBatchItems int               `toml:"max_batch_items"`
	MaxBatchChars int               `toml:"max_batch_chars"`
	Reactions     map[string]string `toml:"reactions"`
}

// Drive contains the Google Drive document store settings.
type Drive struct {
	Enabled           bool    `toml:"enabled"`
	CredentialsFile   string  `toml:"credentials_file"`
	SharedDriveName   string  `toml:"shared_drive_name"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Workflow contains batching, size limits, and per-call timeouts.
type Workflow struct {
	BatchWindowMillis        int     `toml:"batch_window_ms"`
	DedupRetentionHours      int     `toml:"dedup_retention_hours"`
	MaxParallelFiles         int     `toml:"max_parallel_files"`
	MaxFileMB                int     `toml:"max_file_mb"`
	DownloadTimeoutSeconds   int     `toml:"download_timeout_seconds"`
	TranscribeTimeoutSeconds int     `toml:"transcribe_timeout_seconds"`
	UploadTimeoutSeconds     int     `toml:"upload_timeout_seconds"`
	TranslateTimeoutSeconds  int     `toml:"translate_timeout_seconds"`
	DocumentTimeoutSeconds   int     `toml:"document_timeout_seconds"`
	SubtitleMaxChars         int     `toml:"subtitle_max_chars"`
	SubtitleMaxSeconds       float64 `toml:"subtitle_max_seconds"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Startup        bool   `toml:"startup"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Transponster.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Slack         Slack         `toml:"slack"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Translation   Translation   `toml:"translation"`
	Drive         Drive         `toml:"drive"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MappingsDBPath returns the sqlite file backing the file identity mappings.
func (c *Config) MappingsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "mappings.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "transponster.lock")
}

// BatchWindow returns the debounce window applied per upload thread.
func (c *Config) BatchWindow() time.Duration {
	return time.Duration(c.Workflow.BatchWindowMillis) * time.Millisecond
}

// DedupRetention returns how long flushed file IDs keep absorbing duplicates.
func (c *Config) DedupRetention() time.Duration {
	return time.Duration(c.Workflow.DedupRetentionHours) * time.Hour
}

// MaxFileBytes returns the upload size cap in bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.Workflow.MaxFileMB) * 1_000_000
}

// Seconds converts a positive seconds setting into a duration.
func Seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
