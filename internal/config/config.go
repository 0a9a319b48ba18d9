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

// Paths contains the directories the exporter reads and writes.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// API contains connection settings for the remote helpdesk API.
type API struct {
	BaseURL               string `toml:"base_url"`
	Subdomain             string `toml:"subdomain"`
	Username              string `toml:"username"`
	Password              string `toml:"password"`
	AuditsPath            string `toml:"audits_path"`
	SubjectKey            string `toml:"subject_key"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MediaTimeoutSeconds   int    `toml:"media_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
}

// Export contains the scheduling knobs for a bulk export run.
type Export struct {
	IDRangeStart        int64  `toml:"id_range_start"`
	IDRangeEnd          int64  `toml:"id_range_end"`
	RateLimitPerMinute  int    `toml:"rate_limit_per_minute"`
	Concurrency         int    `toml:"concurrency"`
	MaxAttempts         int    `toml:"max_attempts"`
	RetryBackoff        string `toml:"retry_backoff"`
	RetryBaseDelayMs    int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMs     int    `toml:"retry_max_delay_ms"`
	WindowMarginSeconds int    `toml:"window_margin_seconds"`
	MediaFailurePolicy  string `toml:"media_failure_policy"`
	SkipExisting        bool   `toml:"skip_existing"`
}

// Metrics contains the optional Prometheus endpoint configuration.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the exporter.
//
// Configuration sections:
//   - Paths: output store, logs, and state (ledger database and run lock)
//   - API: remote endpoint, credentials, and request timeouts
//   - Export: ID range, quota, concurrency, and retry policy
//   - Metrics: optional Prometheus listener
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	API     API     `toml:"api"`
	Export  Export  `toml:"export"`
	Metrics Metrics `toml:"metrics"`
	Logging Logging `toml:"logging"`
}

const (
	ledgerFileName = "ledger.db"
	lockFileName   = "auditexport.lock"
)

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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
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
		_, err = os.Stat(expanded)
		if err != nil {
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

// EnsureDirectories creates the output, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite failure ledger location inside the state dir.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, ledgerFileName)
}

// LockPath returns the single-run lock file location inside the state dir.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, lockFileName)
}

// BucketURL returns the gocloud.dev blob URL for the output directory.
func (c *Config) BucketURL() string {
	return "file://" + filepath.ToSlash(c.Paths.OutputDir) + "?create_dir=true&metadata=skip"
}

// RequestTimeout is the deadline for one audits request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

// MediaTimeout is the deadline for one media download.
func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.API.MediaTimeoutSeconds) * time.Second
}

// RetryBaseDelay is the first retry delay for transient failures.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Export.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay caps the retry delay.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Export.RetryMaxDelayMs) * time.Millisecond
}

// WindowMargin is the pause added past a minute boundary before the quota is re-read.
func (c *Config) WindowMargin() time.Duration {
	return time.Duration(c.Export.WindowMarginSeconds) * time.Second
}

// HasCredentials reports whether both API credentials are present.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.API.Username) != "" && c.API.Password != ""
}

// RequireCredentials returns an error naming the missing credential and how to supply it.
func (c *Config) RequireCredentials() error {
	if strings.TrimSpace(c.API.Username) == "" {
		return fmt.Errorf("api.username is required. Set %s or edit %s (create with 'auditexport config init')", envUsername, displayConfigPath())
	}
	if c.API.Password == "" {
		return fmt.Errorf("api.password is required. Set %s or edit %s", envPassword, displayConfigPath())
	}
	return nil
}

func displayConfigPath() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
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
