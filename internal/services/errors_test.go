package services_test

import (
	"errors"
	"strings"
	"testing"

	"auditexport/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrMediaUnavailable, "mediafetch", "download", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrMediaUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"mediafetch", "download", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "export failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureKind(t *testing.T) {
	cases := map[string]error{
		"not_found":         services.ErrNotFound,
		"client_fault":      services.Wrap(services.ErrClientFault, "", "", "", nil),
		"no_response":       services.Wrap(services.ErrNoResponse, "", "", "", errors.New("tls")),
		"media_unavailable": services.ErrMediaUnavailable,
		"storage":           services.ErrStorage,
		"transient":         errors.New("something else"),
		"none":              nil,
	}
	for want, err := range cases {
		if got := services.FailureKind(err); got != want {
			t.Fatalf("FailureKind(%v) = %q, want %q", err, got, want)
		}
	}
}
