package main

import (
	"testing"

	"auditexport/internal/testsupport"
)

func TestCheckPassesAgainstReachableAPI(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "API credentials:")
	requireContains(t, out, "API access:")
	requireContains(t, out, "[OK]")
	if got := env.api.Calls(1); got != 1 {
		t.Fatalf("probe calls = %d, want 1", got)
	}
}

func TestCheckReportsMissingCredentials(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutCredentials())

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check failure")
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "[WARN] skipped")
	if got := env.api.TotalCalls(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}
