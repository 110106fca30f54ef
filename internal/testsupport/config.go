package testsupport

import (
	"path/filepath"
	"testing"

	"transponster/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Secrets are filled with placeholders so ValidateDaemon passes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Slack.BotToken = "xoxb-test"
	cfgVal.Slack.SigningSecret = "test-signing-secret"
	cfgVal.Transcription.APIKey = "test-stt-key"
	cfgVal.LLM.APIKey = "test-llm-key"
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBatchWindowMillis shortens the debounce window for fast tests.
func WithBatchWindowMillis(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.BatchWindowMillis = ms
	}
}

// WithLegacyMappingsFile points the config at a legacy JSON mapping file
// named name inside the test directory.
func WithLegacyMappingsFile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LegacyMappingsFile = filepath.Join(b.baseDir, name)
	}
}

// WithAPIToken sets the bearer token guarding the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
