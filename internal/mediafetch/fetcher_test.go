package mediafetch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"auditexport/internal/contentstore"
	"auditexport/internal/mediafetch"
	"auditexport/internal/services"
	"auditexport/internal/services/helpdesk"
)

func newFixture(t *testing.T, handler http.HandlerFunc) (*mediafetch.Fetcher, *contentstore.Store, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	store := contentstore.New(bucket, nil)

	client := helpdesk.NewClient(helpdesk.Config{BaseURL: srv.URL, AuditsPath: "/records/{id}"})
	return mediafetch.New(client, store, nil), store, srv.URL
}

func TestFetchStoresAttachmentWithOriginFilename(t *testing.T) {
	fetcher, store, base := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf; charset=binary")
		w.Header().Set("Content-Disposition", `attachment; filename="a.pdf"`)
		fmt.Fprint(w, "%PDF-1.7")
	})

	asset, err := fetcher.Fetch(context.Background(), base+"/files/9", 100, "9", contentstore.MediaAttachment)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if asset.StorageKey != "100_9_a.pdf" {
		t.Fatalf("unexpected storage key %q", asset.StorageKey)
	}
	if asset.Type == nil || *asset.Type != "application/pdf" {
		t.Fatalf("unexpected type %v", asset.Type)
	}
	if asset.OriginFilename == nil || *asset.OriginFilename != "a.pdf" {
		t.Fatalf("unexpected origin %v", asset.OriginFilename)
	}
	data, err := store.ReadMedia(context.Background(), contentstore.MediaAttachment, "100_9_a.pdf")
	if err != nil {
		t.Fatalf("ReadMedia: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Fatalf("unexpected stored bytes %q", data)
	}
}

func TestFetchWithoutHeadersLeavesMetadataNil(t *testing.T) {
	fetcher, store, base := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x00, 0x01})
	})

	asset, err := fetcher.Fetch(context.Background(), base+"/rec", 7, "3001", contentstore.MediaCall)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if asset.StorageKey != "7_3001" {
		t.Fatalf("unexpected key %q", asset.StorageKey)
	}
	if asset.OriginFilename != nil {
		t.Fatalf("expected nil origin, got %q", *asset.OriginFilename)
	}
	if asset.Type != nil {
		t.Fatalf("expected nil type, got %q", *asset.Type)
	}
	if ok, _ := store.MediaExists(context.Background(), contentstore.MediaCall, "7_3001"); !ok {
		t.Fatal("expected call recording stored")
	}
}

func TestFetchRejectsRedirect(t *testing.T) {
	fetcher, store, base := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})

	_, err := fetcher.Fetch(context.Background(), base+"/files/1", 1, "1", contentstore.MediaAttachment)
	if !errors.Is(err, mediafetch.ErrUnexpectedRedirect) {
		t.Fatalf("expected ErrUnexpectedRedirect, got %v", err)
	}
	if !errors.Is(err, services.ErrMediaUnavailable) {
		t.Fatalf("redirect should classify as media unavailable, got %v", err)
	}
	if ok, _ := store.MediaExists(context.Background(), contentstore.MediaAttachment, "1_1"); ok {
		t.Fatal("nothing should be stored on redirect")
	}
}

func TestFetchRejectsLocationHeaderOnSuccess(t *testing.T) {
	fetcher, _, base := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://cdn.example.com/x")
		fmt.Fprint(w, "body")
	})
	_, err := fetcher.Fetch(context.Background(), base+"/files/1", 1, "1", contentstore.MediaAttachment)
	if !errors.Is(err, mediafetch.ErrUnexpectedRedirect) {
		t.Fatalf("expected ErrUnexpectedRedirect, got %v", err)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	fetcher, _, base := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	_, err := fetcher.Fetch(context.Background(), base+"/files/1", 1, "1", contentstore.MediaAttachment)
	if !errors.Is(err, services.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable, got %v", err)
	}
	if errors.Is(err, mediafetch.ErrUnexpectedRedirect) {
		t.Fatal("410 is not a redirect")
	}
}

type recordingObserver struct {
	calls int
	errs  int
	bytes int64
}

func (o *recordingObserver) MediaFetched(_ contentstore.MediaKind, n int64, err error) {
	o.calls++
	o.bytes += n
	if err != nil {
		o.errs++
	}
}

func TestFetchNotifiesObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "12345")
	}))
	defer srv.Close()
	bucket, _ := blob.OpenBucket(context.Background(), "mem://")
	defer bucket.Close()

	obs := &recordingObserver{}
	fetcher := mediafetch.New(
		helpdesk.NewClient(helpdesk.Config{BaseURL: srv.URL, AuditsPath: "/r/{id}"}),
		contentstore.New(bucket, nil),
		nil,
		mediafetch.WithObserver(obs),
	)
	fetcher.Fetch(context.Background(), srv.URL+"/ok", 1, "1", contentstore.MediaCall)
	fetcher.Fetch(context.Background(), srv.URL+"/bad", 1, "2", contentstore.MediaCall)

	if obs.calls != 2 || obs.errs != 1 || obs.bytes != 5 {
		t.Fatalf("unexpected observer state %+v", obs)
	}
}
