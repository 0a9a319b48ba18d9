package export

import (
	"testing"
	"time"

	"auditexport/internal/config"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"linear first", Backoff{Strategy: config.BackoffLinear, Base: time.Second}, 1, time.Second},
		{"linear second", Backoff{Strategy: config.BackoffLinear, Base: time.Second}, 2, 2 * time.Second},
		{"exponential third", Backoff{Strategy: config.BackoffExponential, Base: time.Second}, 3, 4 * time.Second},
		{"capped", Backoff{Strategy: config.BackoffExponential, Base: time.Second, Max: 3 * time.Second}, 5, 3 * time.Second},
		{"huge attempt stays capped", Backoff{Strategy: config.BackoffExponential, Base: time.Second, Max: time.Minute}, 80, time.Minute},
		{"zero attempt", Backoff{Base: 500 * time.Millisecond}, 0, 500 * time.Millisecond},
		{"no base", Backoff{}, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backoff.Delay(tt.attempt); got != tt.want {
				t.Fatalf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]outcomeKind{
		404: outcomeMissing,
		500: outcomeServerFault,
		503: outcomeServerFault,
		400: outcomeClientFault,
		401: outcomeClientFault,
		429: outcomeClientFault,
		302: outcomeClientFault,
	}
	for status, want := range cases {
		if got := classifyStatus(status); got != want {
			t.Fatalf("status %d: got %s want %s", status, got, want)
		}
	}
}

func TestPersistGateRejectsAfterClose(t *testing.T) {
	gate := &persistGate{}
	calls := 0
	if err := gate.persist(func() error { calls++; return nil }); err != nil {
		t.Fatalf("persist: %v", err)
	}
	gate.close()
	if err := gate.persist(func() error { calls++; return nil }); err != errGateClosed {
		t.Fatalf("expected errGateClosed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 write, got %d", calls)
	}
}
