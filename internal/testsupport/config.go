package testsupport

import (
	"path/filepath"
	"testing"

	"auditexport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retries wait a millisecond so retry paths stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.API.BaseURL = "http://127.0.0.1:1"
	cfgVal.API.Username = "agent@example.com"
	cfgVal.API.Password = "secret"
	cfgVal.Export.IDRangeStart = 1
	cfgVal.Export.IDRangeEnd = 10
	cfgVal.Export.Concurrency = 4
	cfgVal.Export.RetryBaseDelayMs = 1
	cfgVal.Export.RetryMaxDelayMs = 5
	cfgVal.Export.WindowMarginSeconds = 0

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

// WithBaseURL points the API at url, typically a FakeAPI.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = url
	}
}

// WithRange sets the export id range.
func WithRange(start, end int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.IDRangeStart = start
		b.cfg.Export.IDRangeEnd = end
	}
}

// WithRateLimit sets the per-minute call limit.
func WithRateLimit(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.RateLimitPerMinute = limit
	}
}

// WithMediaPolicy sets the media failure policy.
func WithMediaPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.MediaFailurePolicy = policy
	}
}

// WithoutCredentials clears the API credentials.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Username = ""
		b.cfg.API.Password = ""
	}
}
