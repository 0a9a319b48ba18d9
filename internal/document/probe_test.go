package document_test

import (
	"errors"
	"testing"

	"auditexport/internal/document"
	"auditexport/internal/services"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{name: "valid", raw: `{"records":[{"id":42}]}`, want: 42},
		{name: "extra elements", raw: `{"records":[{"id":1},{"id":2}]}`, want: 1},
		{name: "zero id", raw: `{"records":[{"id":0}]}`, wantErr: true},
		{name: "fractional id", raw: `{"records":[{"id":1.5}]}`, wantErr: true},
		{name: "array root", raw: `[1]`, wantErr: true},
		{name: "subject object", raw: `{"records":{"id":1}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := document.Probe([]byte(tt.raw), "records")
			if tt.wantErr {
				if !errors.Is(err, services.ErrMalformedPayload) {
					t.Fatalf("expected malformed payload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d want %d", got, tt.want)
			}
		})
	}
}
