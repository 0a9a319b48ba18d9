package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked
// separately by RequireCredentials so read-only commands work without them.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL != "" {
		parsed, err := url.Parse(c.API.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("api.base_url %q must be an absolute URL", c.API.BaseURL)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("api.base_url scheme must be http or https, got %q", parsed.Scheme)
		}
	}
	if !validSubjectKey(c.API.SubjectKey) {
		return fmt.Errorf("api.subject_key %q must contain only letters, digits, and underscores", c.API.SubjectKey)
	}
	if !strings.Contains(c.API.AuditsPath, "{id}") {
		return errors.New("api.audits_path must contain the {id} placeholder")
	}
	return ensurePositiveMap(map[string]int{
		"api.request_timeout_seconds": c.API.RequestTimeoutSeconds,
		"api.media_timeout_seconds":   c.API.MediaTimeoutSeconds,
	})
}

func (c *Config) validateExport() error {
	if err := ensurePositiveMap(map[string]int{
		"export.rate_limit_per_minute": c.Export.RateLimitPerMinute,
		"export.concurrency":           c.Export.Concurrency,
		"export.max_attempts":          c.Export.MaxAttempts,
	}); err != nil {
		return err
	}
	if c.Export.IDRangeStart < 0 || c.Export.IDRangeEnd < 0 {
		return errors.New("export.id_range_start and export.id_range_end must be >= 0")
	}
	if c.Export.IDRangeStart > 0 && c.Export.IDRangeEnd > 0 && c.Export.IDRangeEnd < c.Export.IDRangeStart {
		return fmt.Errorf("export.id_range_end (%d) must be >= export.id_range_start (%d)", c.Export.IDRangeEnd, c.Export.IDRangeStart)
	}
	switch c.Export.RetryBackoff {
	case BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("export.retry_backoff must be %q or %q, got %q", BackoffLinear, BackoffExponential, c.Export.RetryBackoff)
	}
	if c.Export.RetryBaseDelayMs < 0 {
		return errors.New("export.retry_base_delay_ms must be >= 0")
	}
	if c.Export.RetryMaxDelayMs > 0 && c.Export.RetryMaxDelayMs < c.Export.RetryBaseDelayMs {
		return errors.New("export.retry_max_delay_ms must be >= export.retry_base_delay_ms")
	}
	if c.Export.WindowMarginSeconds < 0 {
		return errors.New("export.window_margin_seconds must be >= 0")
	}
	switch c.Export.MediaFailurePolicy {
	case MediaPolicyAbort, MediaPolicySkip:
	default:
		return fmt.Errorf("export.media_failure_policy must be %q or %q, got %q", MediaPolicyAbort, MediaPolicySkip, c.Export.MediaFailurePolicy)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// RequireBaseURL returns an error when no API endpoint is configured.
func (c *Config) RequireBaseURL() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url or api.subdomain must be set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func validSubjectKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
