package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneLogs removes files in dir matching pattern whose modification time is
// older than retentionDays. Paths listed in keep are never removed. It returns
// the number of files deleted; retentionDays <= 0 disables pruning.
func PruneLogs(logger *slog.Logger, dir, pattern string, retentionDays int, keep ...string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	skip := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			skip[abs] = struct{}{}
		}
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range matches {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, ok := skip[abs]; ok {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(abs); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", abs),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", abs), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
