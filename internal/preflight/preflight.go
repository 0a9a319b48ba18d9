package preflight

import (
	"context"

	"auditexport/internal/config"
	"auditexport/internal/services/helpdesk"
)

// MinFreeBytes is the free space below which the output directory check fails.
const MinFreeBytes uint64 = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckPaths runs the filesystem checks. Directories are created first so a
// fresh install passes.
func CheckPaths(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	_ = cfg.EnsureDirectories()
	return []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// RunAll executes the filesystem checks plus the credential and API checks.
// probeID is the record id used for the API call; a 404 for it still passes.
func RunAll(ctx context.Context, cfg *config.Config, probeID int64) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckPaths(cfg)
	creds := CheckCredentials(cfg)
	results = append(results, creds)
	if !creds.Passed {
		return results
	}
	client := helpdesk.NewClient(helpdesk.ConfigFrom(cfg))
	return append(results, CheckAPI(ctx, client, probeID))
}
