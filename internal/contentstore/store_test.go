package contentstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"auditexport/internal/contentstore"
	"auditexport/internal/services"
)

func newMemStore(t *testing.T) *contentstore.Store {
	t.Helper()
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return contentstore.New(bucket, nil)
}

func TestSaveRecordWritesSortedIndentedJSON(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	doc := map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"b": true, "a": "x"},
	}
	if err := store.SaveRecord(ctx, 42, doc); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	data, err := store.ReadRecord(ctx, 42)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	want := "{\n    \"alpha\": {\n        \"a\": \"x\",\n        \"b\": true\n    },\n    \"zeta\": 1\n}\n"
	if string(data) != want {
		t.Fatalf("unexpected document:\n%s\nwant:\n%s", data, want)
	}
}

func TestSaveRecordOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	if err := store.SaveRecord(ctx, 7, map[string]int{"v": 1}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveRecord(ctx, 7, map[string]int{"v": 2}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	data, err := store.ReadRecord(ctx, 7)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !strings.Contains(string(data), `"v": 2`) || strings.Contains(string(data), `"v": 1`) {
		t.Fatalf("expected last write to win, got %s", data)
	}
}

func TestRecordExistsAndCount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	exists, err := store.RecordExists(ctx, 100)
	if err != nil || exists {
		t.Fatalf("RecordExists before save = %v, %v", exists, err)
	}
	for _, id := range []int64{100, 102} {
		if err := store.SaveRecord(ctx, id, map[string]int64{"id": id}); err != nil {
			t.Fatalf("SaveRecord(%d): %v", id, err)
		}
	}
	if _, err := store.WriteMedia(ctx, contentstore.MediaCall, "100_9", "audio/mpeg", strings.NewReader("mp3")); err != nil {
		t.Fatalf("WriteMedia: %v", err)
	}

	exists, err = store.RecordExists(ctx, 100)
	if err != nil || !exists {
		t.Fatalf("RecordExists after save = %v, %v", exists, err)
	}
	count, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 2 {
		t.Fatalf("CountRecords = %d, want 2 (media must not be counted)", count)
	}
}

func TestReadRecordMissing(t *testing.T) {
	store := newMemStore(t)
	_, err := store.ReadRecord(context.Background(), 5)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteMediaReplacesExistingObject(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	for _, body := range []string{"first version", "second"} {
		if _, err := store.WriteMedia(ctx, contentstore.MediaAttachment, "5_77_report.pdf", "application/pdf", strings.NewReader(body)); err != nil {
			t.Fatalf("WriteMedia: %v", err)
		}
	}
	data, err := store.ReadMedia(ctx, contentstore.MediaAttachment, "5_77_report.pdf")
	if err != nil {
		t.Fatalf("ReadMedia: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestWriteMediaRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if _, err := store.WriteMedia(ctx, contentstore.MediaCall, name, "", strings.NewReader("x")); !errors.Is(err, services.ErrStorage) {
			t.Fatalf("WriteMedia(%q) expected storage error, got %v", name, err)
		}
	}
	if _, err := store.WriteMedia(ctx, contentstore.MediaKind("video"), "1_2", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestFileBucketLayout(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")
	store, err := contentstore.Open(ctx, "file://"+filepath.ToSlash(dir)+"?create_dir=true&metadata=skip", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.SaveRecord(ctx, 101, map[string]int{"id": 101}); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if _, err := store.WriteMedia(ctx, contentstore.MediaCall, "101_3", "audio/wav", strings.NewReader("wav")); err != nil {
		t.Fatalf("WriteMedia: %v", err)
	}

	for _, rel := range []string{"tickets/101.json", "calls/101_3"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("expected %s on disk: %v", rel, err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dir, "tickets"))
	if err != nil {
		t.Fatalf("read tickets dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".attrs") {
			t.Fatalf("metadata sidecar should not be written: %s", entry.Name())
		}
	}
}

func TestRecordKey(t *testing.T) {
	if got := contentstore.RecordKey(12); got != "tickets/12.json" {
		t.Fatalf("RecordKey = %q", got)
	}
}
