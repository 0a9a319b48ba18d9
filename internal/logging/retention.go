package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"auditexport/internal/config"
)

// PruneReport counts what PruneStale removed.
type PruneReport struct {
	Logs      int
	TempFiles int
}

// PruneStale removes exporter leftovers: log files in paths.log_dir older than
// logging.retention_days (the active log is kept), and temp files a crashed
// run left at the top of paths.output_dir, such as 404.json.tmp. Temp files
// are removed regardless of age, so the caller must hold the export lock.
// A retention of 0 keeps every log.
func PruneStale(logger *slog.Logger, cfg *config.Config, now time.Time) PruneReport {
	var report PruneReport
	if cfg == nil {
		return report
	}
	if now.IsZero() {
		now = time.Now()
	}

	if days := cfg.Logging.RetentionDays; days > 0 && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		cutoff := now.AddDate(0, 0, -days)
		active := filepath.Join(cfg.Paths.LogDir, LogFileName)
		report.Logs = pruneDir(logger, cfg.Paths.LogDir, "*.log*", func(path string, info os.FileInfo) bool {
			return path != active && info.ModTime().Before(cutoff)
		})
	}

	if strings.TrimSpace(cfg.Paths.OutputDir) != "" {
		report.TempFiles = pruneDir(logger, cfg.Paths.OutputDir, "*.tmp", func(string, os.FileInfo) bool {
			return true
		})
	}

	if report.Logs > 0 || report.TempFiles > 0 {
		logger.Info("pruned stale files",
			String(FieldEventType, "stale_files_pruned"),
			Int("logs", report.Logs),
			Int("temp_files", report.TempFiles),
		)
	}
	return report
}

func pruneDir(logger *slog.Logger, dir, pattern string, remove func(string, os.FileInfo) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !remove(path, info) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "stale file not removed", "prune_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir and paths.output_dir"),
				String(FieldImpact, "file remains on disk"),
			)
			continue
		}
		removed++
	}
	return removed
}
