package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeExport()
	c.normalizeLogging()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if c.API.Username == "" {
		if value, ok := os.LookupEnv(envUsername); ok {
			c.API.Username = value
		}
	}
	if c.API.Password == "" {
		if value, ok := os.LookupEnv(envPassword); ok {
			c.API.Password = value
		}
	}
	c.API.Username = strings.TrimSpace(c.API.Username)

	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		if value, ok := os.LookupEnv(envBaseURL); ok {
			c.API.BaseURL = strings.TrimSpace(value)
		}
	}
	c.API.Subdomain = strings.TrimSpace(c.API.Subdomain)
	if c.API.BaseURL == "" && c.API.Subdomain != "" {
		c.API.BaseURL = SubdomainBaseURL(c.API.Subdomain)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	c.API.AuditsPath = strings.TrimSpace(c.API.AuditsPath)
	if c.API.AuditsPath == "" {
		c.API.AuditsPath = defaultAuditsPath
	}
	if !strings.HasPrefix(c.API.AuditsPath, "/") {
		c.API.AuditsPath = "/" + c.API.AuditsPath
	}
	c.API.SubjectKey = strings.TrimSpace(c.API.SubjectKey)
	if c.API.SubjectKey == "" {
		c.API.SubjectKey = defaultSubjectKey
	}
	if c.API.RequestTimeoutSeconds <= 0 {
		c.API.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if c.API.MediaTimeoutSeconds <= 0 {
		c.API.MediaTimeoutSeconds = defaultMediaTimeout
	}
	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	if c.API.UserAgent == "" {
		c.API.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeExport() {
	c.Export.RetryBackoff = strings.ToLower(strings.TrimSpace(c.Export.RetryBackoff))
	if c.Export.RetryBackoff == "" {
		c.Export.RetryBackoff = BackoffLinear
	}
	c.Export.MediaFailurePolicy = strings.ToLower(strings.TrimSpace(c.Export.MediaFailurePolicy))
	if c.Export.MediaFailurePolicy == "" {
		c.Export.MediaFailurePolicy = MediaPolicyAbort
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// SubdomainBaseURL builds the hosted helpdesk base URL for an account subdomain.
func SubdomainBaseURL(subdomain string) string {
	subdomain = strings.Trim(strings.TrimSpace(subdomain), "./")
	if subdomain == "" {
		return ""
	}
	return "https://" + subdomain + ".zendesk.com"
}
