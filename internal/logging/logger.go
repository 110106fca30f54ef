package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"transponster/internal/config"
)

// LogFileName is the name of the JSON log written under paths.log_dir.
const LogFileName = "transponster.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	Output      io.Writer
	FilePath    string
	Development bool
}

// New constructs a slog logger using the provided options. The console or JSON
// handler writes to Output (stdout by default); when FilePath is set every
// record is also appended to that file as JSON.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var primary slog.Handler
	switch resolveFormat(opts.Format, out) {
	case "json":
		primary = newJSONHandler(out, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(out, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	handlers := []slog.Handler{primary}
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		handlers = append(handlers, newJSONHandler(file, levelVar, addSource))
	}
	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates a logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.FilePath = filepath.Join(dir, LogFileName)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveFormat turns "auto" into console for terminals and JSON otherwise.
func resolveFormat(format string, out io.Writer) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "auto":
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return "console"
		}
		return "json"
	default:
		return format
	}
}
