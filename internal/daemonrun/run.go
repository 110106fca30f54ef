package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"transponster/internal/config"
	"transponster/internal/daemon"
	"transponster/internal/fileutil"
	"transponster/internal/logging"
	"transponster/internal/mapping"
	"transponster/internal/notifications"
	"transponster/internal/preflight"
	"transponster/internal/services"
	"transponster/internal/services/slack"
	"transponster/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	Development   bool
	SkipPreflight bool
}

// Run starts the transponster daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("transponster-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		FilePath:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneLogs(logger, cfg.Paths.LogDir, "transponster-*.log", cfg.Logging.RetentionDays, logPath)

	pidPath := filepath.Join(cfg.Paths.DataDir, "transponster.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := mapping.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open mapping store", "mapping_store_open_failed",
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			logging.Error(err),
		)
		return err
	}
	importLegacyMappings(signalCtx, cfg, store, logger)

	components, err := BuildComponents(signalCtx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build adapters: %w", err)
	}

	identity, err := components.Slack.AuthTest(signalCtx)
	botUser := ""
	if err == nil {
		botUser = identity.String()
	} else {
		logging.WarnWithContext(logger, "slack auth.test failed", "slack_auth_failed",
			logging.String(logging.FieldErrorHint, "check slack.bot_token"),
			logging.String(logging.FieldImpact, "the bot may react to its own uploads"),
			logging.Error(err),
		)
	}

	notifier := notifications.NewService(cfg)
	wfOpts := []workflow.Option{
		workflow.WithMappings(store),
		workflow.WithNotifier(notifier),
		workflow.WithLogger(logging.NewComponentLogger(logger, "workflow")),
		workflow.WithBotUserID(identity.UserID),
	}
	if components.Drive != nil {
		wfOpts = append(wfOpts, workflow.WithDocuments(components.Drive))
	}
	manager := workflow.NewManager(cfg, components.Slack, components.Transcriber, components.Translator, wfOpts...)
	events := slack.NewEventHandler(signalCtx, cfg.Slack.SigningSecret, manager, logging.NewComponentLogger(logger, "slack-events"))

	d, err := daemon.New(cfg, store, logger, manager, events, daemon.WithBotUser(botUser))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if !opts.SkipPreflight {
		logPreflight(signalCtx, cfg, logger)
	}

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.String(logging.FieldErrorHint, "check api_bind and that no other instance holds the lock"),
			logging.String(logging.FieldImpact, "no slack events are processed"),
			logging.Error(err),
		)
		return err
	}

	announceStartup(signalCtx, cfg, components.Slack, notifier, logger, botUser)

	<-signalCtx.Done()
	logger.Info("transponster daemon shutting down")
	return nil
}

// importLegacyMappings seeds an empty store from paths.legacy_mappings_file.
func importLegacyMappings(ctx context.Context, cfg *config.Config, store *mapping.Store, logger *slog.Logger) {
	path := strings.TrimSpace(cfg.Paths.LegacyMappingsFile)
	if path == "" {
		return
	}
	count, err := store.Count(ctx)
	if err != nil || count > 0 {
		return
	}
	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "legacy mappings unreadable", "legacy_import_failed",
				logging.String(logging.FieldErrorHint, "check paths.legacy_mappings_file"),
				logging.String("path", path),
				logging.Error(err),
			)
		}
		return
	}
	defer file.Close()

	stats, err := store.ImportJSON(ctx, file, false)
	if err != nil {
		logging.WarnWithContext(logger, "legacy mapping import failed", "legacy_import_failed",
			logging.String(logging.FieldErrorHint, "run `transponster mappings import` to see the error"),
			logging.String(logging.FieldImpact, "translations of older transcripts are not appended to documents"),
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}
	logger.Info("legacy mappings imported",
		logging.String("path", path),
		logging.Int("imported", stats.Imported),
		logging.Int("skipped", stats.Skipped),
	)
}

func logPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, result := range preflight.RunAll(checkCtx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String(logging.FieldErrorHint, "run `transponster check` for details"),
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}

func announceStartup(ctx context.Context, cfg *config.Config, client *slack.Client, notifier notifications.Service, logger *slog.Logger, identity string) {
	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if channel := strings.TrimSpace(cfg.Slack.StartupChannel); channel != "" {
		if err := client.PostMessage(callCtx, channel, "", workflow.StartupMessage); err != nil {
			logging.WarnWithContext(logger, "startup message failed", "startup_message_failed",
				logging.String(logging.FieldErrorHint, hintFor(err)),
				logging.String("channel", channel),
				logging.Error(err),
			)
		} else {
			logger.Info("startup message sent", logging.String("channel", channel))
		}
	} else {
		logger.Info("slack.startup_channel not set; skipping startup message")
	}
	if err := notifier.NotifyStartup(callCtx, identity); err != nil {
		logger.Debug("startup notification failed", logging.Error(err))
	}
}

func hintFor(err error) string {
	switch services.FailureKind(err) {
	case services.KindConfiguration:
		return "invite the bot to the channel and check its scopes"
	case services.KindQuota:
		return "slack rate limit hit; the message was dropped"
	default:
		return "check slack connectivity"
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return fileutil.WriteFileAtomic(path, []byte(value), 0o644)
}
