package preflight

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"auditexport/internal/services/helpdesk"
	"auditexport/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckCredentials(cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	cfg = testsupport.NewConfig(t, testsupport.WithoutCredentials())
	result := CheckCredentials(cfg)
	if result.Passed || !strings.Contains(result.Detail, "api.username") {
		t.Fatalf("expected missing username, got %+v", result)
	}
}

func TestCheckAPI(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	api.Record(1, testsupport.Status(http.StatusNotFound))
	api.Record(2, testsupport.Status(http.StatusUnauthorized))
	client := helpdesk.NewClient(helpdesk.Config{BaseURL: api.URL(), AuditsPath: "/records/{id}/audits", Username: "u", Password: "p"})

	if result := CheckAPI(context.Background(), client, 1); !result.Passed {
		t.Fatalf("expected 404 to pass, got: %s", result.Detail)
	}
	result := CheckAPI(context.Background(), client, 2)
	if result.Passed || !strings.Contains(result.Detail, "401") {
		t.Fatalf("expected rejected credentials, got %+v", result)
	}
	if user, pass := api.LastAuth(); user != "u" || pass != "p" {
		t.Fatalf("unexpected credentials sent: %q %q", user, pass)
	}
}

func TestRunAllCreatesDirectories(t *testing.T) {
	api := testsupport.NewFakeAPI(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(api.URL()))

	results := RunAll(context.Background(), cfg, 1)
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Name == "Output free space" {
			continue
		}
		if !r.Passed {
			t.Fatalf("%s failed: %s", r.Name, r.Detail)
		}
	}
	if _, err := os.Stat(cfg.Paths.StateDir); err != nil {
		t.Fatalf("state dir not created: %v", err)
	}
}

func TestRunAllSkipsAPIWithoutCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCredentials())
	results := RunAll(context.Background(), cfg, 1)
	if len(Failed(results)) == 0 {
		t.Fatal("expected credential failure")
	}
	for _, r := range results {
		if r.Name == "API access" {
			t.Fatal("API check should be skipped without credentials")
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		1 << 30: "1.0 GiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
