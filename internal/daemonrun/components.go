package daemonrun

import (
	"context"
	"log/slog"
	"time"

	"transponster/internal/config"
	"transponster/internal/logging"
	"transponster/internal/services/elevenlabs"
	"transponster/internal/services/gdrive"
	"transponster/internal/services/llm"
	"transponster/internal/services/ratelimit"
	"transponster/internal/services/slack"
	"transponster/internal/translate"
)

// Components are the external adapters shared by the daemon and the CLI.
type Components struct {
	Slack       *slack.Client
	Transcriber *elevenlabs.Client
	LLM         *llm.Client
	Translator  *translate.Translator
	// Drive is nil when drive.enabled is false.
	Drive *gdrive.Store
}

// NewTranslator builds the span translator on the configured LLM.
func NewTranslator(cfg *config.Config, logger *slog.Logger) (*translate.Translator, *llm.Client) {
	client := llm.NewClient(llm.ConfigFrom(cfg.LLM),
		llm.WithLimiter(ratelimit.New(cfg.LLM.RequestsPerSecond, 1)),
	)
	translator := translate.New(client,
		translate.WithMaxBatchItems(cfg.Translation.MaxBatchItems),
		translate.WithMaxBatchChars(cfg.Translation.MaxBatchChars),
		translate.WithRequestTimeout(time.Duration(cfg.Workflow.TranslateTimeoutSeconds)*time.Second),
		translate.WithLogger(logging.NewComponentLogger(logger, "translate")),
	)
	return translator, client
}

// NewDrive opens the document store, or returns nil when disabled.
func NewDrive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gdrive.Store, error) {
	if !cfg.Drive.Enabled {
		return nil, nil
	}
	return gdrive.New(ctx, cfg.Drive, gdrive.WithLogger(logging.NewComponentLogger(logger, "drive")))
}

// BuildComponents constructs every adapter from cfg.
func BuildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Components, error) {
	translator, llmClient := NewTranslator(cfg, logger)
	drive, err := NewDrive(ctx, cfg, logger)
	if err != nil {
		return Components{}, err
	}
	return Components{
		Slack: slack.New(cfg.Slack, slack.WithLogger(logging.NewComponentLogger(logger, "slack"))),
		Transcriber: elevenlabs.NewClient(elevenlabs.ConfigFrom(cfg.Transcription),
			elevenlabs.WithLimiter(ratelimit.PerMinute(cfg.Transcription.RequestsPerMinute, 1)),
		),
		LLM:        llmClient,
		Translator: translator,
		Drive:      drive,
	}, nil
}
