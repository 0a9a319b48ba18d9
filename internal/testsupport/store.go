package testsupport

import (
	"context"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"auditexport/internal/config"
	"auditexport/internal/contentstore"
	"auditexport/internal/ledger"
)

// MustOpenLedger opens the ledger for cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewMemStore returns a content store backed by an in-memory bucket.
func NewMemStore(t testing.TB) *contentstore.Store {
	t.Helper()

	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open mem bucket: %v", err)
	}
	t.Cleanup(func() {
		bucket.Close()
	})
	return contentstore.New(bucket, nil)
}

// MustOpenFileStore opens the file-backed content store under cfg's output dir.
func MustOpenFileStore(t testing.TB, cfg *config.Config) *contentstore.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := contentstore.Open(context.Background(), cfg.BucketURL(), nil)
	if err != nil {
		t.Fatalf("contentstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
