package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"auditexport/internal/config"
	"auditexport/internal/logging"
	"auditexport/internal/services"
)

func newFileLogger(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	return logPath, func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"hello"`) {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := read(); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if content := read(); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithBatch(services.WithRecordID(context.Background(), 101), 3)
	logger = logging.NewComponentLogger(logging.WithContext(ctx, logger), "export")
	logger.Info("record saved", logging.String("file", "tickets/101.json"), logging.Duration("took", 1500*time.Millisecond))

	content := read()
	for _, want := range []string{
		"INFO export: Batch 3 · Record #101: record saved",
		"file=tickets/101.json",
		"took=1.5s",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, "record_id=") {
		t.Fatalf("record id should be rendered as subject, got %q", content)
	}
}

func TestConsoleLoggerQuotesValuesWithSpaces(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("quoted", logging.String("reason", "server said no"), logging.String("empty", ""))

	content := read()
	if !strings.Contains(content, `reason="server said no"`) || !strings.Contains(content, `empty=""`) {
		t.Fatalf("expected quoted values, got %q", content)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "run-9")
	ctx = services.WithRecordID(ctx, 7)
	logging.WithContext(ctx, logger).Info("fetched")

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["run_id"] != "run-9" {
		t.Fatalf("expected run_id, got %v", entry["run_id"])
	}
	if entry["record_id"] != float64(7) {
		t.Fatalf("expected record_id 7, got %v", entry["record_id"])
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "media skipped", "media_skipped", logging.String(logging.FieldImpact, "attachment not saved"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry[logging.FieldEventType] != "media_skipped" {
		t.Fatalf("expected event type, got %v", entry)
	}
	if entry[logging.FieldImpact] != "attachment not saved" {
		t.Fatalf("explicit impact should win, got %v", entry[logging.FieldImpact])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", entry)
	}
}

func TestPruneStaleRemovesExpiredLogsAndTempFiles(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Logging.RetentionDays = 5
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	oldLog := filepath.Join(cfg.Paths.LogDir, "auditexport.log.1")
	freshLog := filepath.Join(cfg.Paths.LogDir, "auditexport.log.2")
	activeLog := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	tempFile := filepath.Join(cfg.Paths.OutputDir, "404.json.tmp")
	missingList := filepath.Join(cfg.Paths.OutputDir, "404.json")
	for _, p := range []string{oldLog, freshLog, activeLog, tempFile, missingList} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	now := time.Now()
	past := now.AddDate(0, 0, -10)
	for _, p := range []string{oldLog, activeLog, missingList} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	report := logging.PruneStale(logging.NewNop(), &cfg, now)
	if report.Logs != 1 || report.TempFiles != 1 {
		t.Fatalf("report = %+v, want 1 log and 1 temp file", report)
	}
	for _, p := range []string{oldLog, tempFile} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", p, err)
		}
	}
	for _, p := range []string{freshLog, activeLog, missingList} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}

func TestPruneStaleKeepsLogsWhenRetentionDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Logging.RetentionDays = 0
	oldLog := filepath.Join(cfg.Paths.LogDir, "old.log")
	if err := os.WriteFile(oldLog, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(-1, 0, 0)
	if err := os.Chtimes(oldLog, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if report := logging.PruneStale(logging.NewNop(), &cfg, time.Time{}); report.Logs != 0 {
		t.Fatalf("report = %+v", report)
	}
	if _, err := os.Stat(oldLog); err != nil {
		t.Fatalf("expected log kept: %v", err)
	}
}
