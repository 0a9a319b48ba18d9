package export_test

import (
	"errors"
	"path/filepath"
	"testing"

	"auditexport/internal/export"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "auditexport.lock")
	first, err := export.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := export.AcquireLock(path); !errors.Is(err, export.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := export.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	defer second.Release()
	if second.Path() != path {
		t.Fatalf("unexpected lock path %q", second.Path())
	}
}
