package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"auditexport/internal/contentstore"
	"auditexport/internal/metrics"
	"auditexport/internal/services"
)

func TestCollectorsTrackExportActivity(t *testing.T) {
	m := metrics.New()
	m.CallCompleted("saved", 120*time.Millisecond)
	m.CallCompleted("saved", 80*time.Millisecond)
	m.CallCompleted("missing", 10*time.Millisecond)
	m.BatchCompleted()
	m.QuotaState(12, 3, 690)
	m.QuotaWaited(1500 * time.Millisecond)
	m.MissingIDs(4)
	m.MediaFetched(contentstore.MediaAttachment, 2048, nil)
	m.MediaFetched(contentstore.MediaCall, 0, services.Wrap(services.ErrMediaUnavailable, "mediafetch", "call 1", "http 500", nil))
	m.MediaFetched(contentstore.MediaCall, 10, services.Wrap(services.ErrStorage, "contentstore", "write", "", errors.New("disk full")))

	reg := m.Registry()
	body, err := testutil.GatherAndCount(reg,
		"auditexport_calls_total",
		"auditexport_media_downloads_total",
	)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if body != 5 {
		t.Fatalf("expected 5 labelled series, got %d", body)
	}

	expected := `
# HELP auditexport_calls_total Record fetch calls by outcome.
# TYPE auditexport_calls_total counter
auditexport_calls_total{outcome="missing"} 1
auditexport_calls_total{outcome="saved"} 2
# HELP auditexport_media_bytes_total Bytes of media written to the content store.
# TYPE auditexport_media_bytes_total counter
auditexport_media_bytes_total{kind="attachment"} 2048
auditexport_media_bytes_total{kind="call"} 10
# HELP auditexport_quota_window_used Calls recorded in the current quota window.
# TYPE auditexport_quota_window_used gauge
auditexport_quota_window_used 12
# HELP auditexport_missing_ids Record ids in the 404 cache.
# TYPE auditexport_missing_ids gauge
auditexport_missing_ids 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"auditexport_calls_total",
		"auditexport_media_bytes_total",
		"auditexport_quota_window_used",
		"auditexport_missing_ids",
	); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestMediaResultLabels(t *testing.T) {
	m := metrics.New()
	m.MediaFetched(contentstore.MediaCall, 0, services.Wrap(services.ErrMediaUnavailable, "mediafetch", "call 1", "http 404", nil))
	m.MediaFetched(contentstore.MediaCall, 0, services.Wrap(services.ErrStorage, "contentstore", "write", "", nil))

	expected := `
# HELP auditexport_media_downloads_total Media downloads by kind and result.
# TYPE auditexport_media_downloads_total counter
auditexport_media_downloads_total{kind="call",result="storage_error"} 1
auditexport_media_downloads_total{kind="call",result="unavailable"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "auditexport_media_downloads_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := metrics.New()
	m.BatchCompleted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "auditexport_batches_total 1") {
		t.Fatalf("batches counter missing from output:\n%s", rec.Body.String())
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	m := metrics.New()
	srv, err := metrics.Listen("127.0.0.1:0", m, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		cancel()
		t.Fatalf("GET /health: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(string(data)) != "ok" {
		t.Fatalf("unexpected health body %q", data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
