package missingcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddPersistsCompactArrayInInsertionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cache := Open(path, nil)

	for _, id := range []int64{101, 7, 55, 7} {
		if err := cache.Add(id); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if got := string(data); got != "[101,7,55]" {
		t.Fatalf("unexpected file contents %q", got)
	}
	if cache.Count() != 3 {
		t.Fatalf("Count = %d, want 3", cache.Count())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should not remain, stat err=%v", err)
	}
}

func TestContains(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), FileName), nil)
	if cache.Contains(5) {
		t.Fatal("empty cache should not contain 5")
	}
	if err := cache.Add(5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !cache.Contains(5) {
		t.Fatal("expected 5 after Add")
	}
}

func TestReloadPreservesEntries(t *testing.T) {
	dir := t.TempDir()
	first := OpenDir(dir, nil)
	if err := first.Add(3); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := first.Add(1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	second := OpenDir(dir, nil)
	got := second.List()
	if len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Fatalf("unexpected reloaded list %v", got)
	}
}

func TestLoadDedupesAndDropsInvalidIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("[4,4,0,-2,9]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cache := Open(path, nil)
	got := cache.List()
	if len(got) != 2 || got[0] != 4 || got[1] != 9 {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cache := Open(path, nil)
	if cache.Count() != 0 {
		t.Fatalf("expected empty cache, got %d", cache.Count())
	}
	if err := cache.Add(12); err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[12]" {
		t.Fatalf("expected rewritten file, got %q", data)
	}
}

func TestAddRejectsNonPositiveID(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), FileName), nil)
	if err := cache.Add(0); err == nil {
		t.Fatal("expected error for zero id")
	}
}

func TestAddFailureLeavesCacheUnchanged(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cache := Open(filepath.Join(blocker, FileName), nil)
	if err := cache.Add(8); err == nil {
		t.Fatal("expected persist error when parent is a file")
	}
	if cache.Contains(8) || cache.Count() != 0 {
		t.Fatal("failed add should not remain in memory")
	}
}
