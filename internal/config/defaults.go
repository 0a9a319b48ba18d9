package config

const (
	defaultConfigPath          = "~/.config/auditexport/config.toml"
	projectConfigName          = "auditexport.toml"
	defaultOutputDir           = "~/auditexport"
	defaultLogDir              = "~/.local/share/auditexport/logs"
	defaultStateDir            = "~/.local/share/auditexport/state"
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultAuditsPath          = "/records/{id}/audits?include=users,records"
	defaultSubjectKey          = "records"
	defaultRequestTimeout      = 5
	defaultMediaTimeout        = 15
	defaultUserAgent           = "auditexport/dev"
	defaultRateLimitPerMinute  = 690
	defaultConcurrency         = 100
	defaultMaxAttempts         = 3
	defaultRetryBaseDelayMs    = 1000
	defaultRetryMaxDelayMs     = 30000
	defaultWindowMarginSeconds = 1

	envUsername = "AUDITEXPORT_USERNAME"
	envPassword = "AUDITEXPORT_PASSWORD"
	envBaseURL  = "AUDITEXPORT_BASE_URL"
)

// Retry backoff modes.
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Media failure policies.
const (
	MediaPolicyAbort = "abort"
	MediaPolicySkip  = "skip"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		API: API{
			AuditsPath:            defaultAuditsPath,
			SubjectKey:            defaultSubjectKey,
			RequestTimeoutSeconds: defaultRequestTimeout,
			MediaTimeoutSeconds:   defaultMediaTimeout,
			UserAgent:             defaultUserAgent,
		},
		Export: Export{
			RateLimitPerMinute:  defaultRateLimitPerMinute,
			Concurrency:         defaultConcurrency,
			MaxAttempts:         defaultMaxAttempts,
			RetryBackoff:        BackoffLinear,
			RetryBaseDelayMs:    defaultRetryBaseDelayMs,
			RetryMaxDelayMs:     defaultRetryMaxDelayMs,
			WindowMarginSeconds: defaultWindowMarginSeconds,
			MediaFailurePolicy:  MediaPolicyAbort,
			SkipExisting:        true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
