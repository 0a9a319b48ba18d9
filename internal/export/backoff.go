package export

import (
	"time"

	"auditexport/internal/config"
)

// Backoff computes retry delays.
type Backoff struct {
	Strategy string
	Base     time.Duration
	Max      time.Duration
}

// Delay returns the wait before the next attempt after attempt failed
// attempts: base×attempt for linear, base×2^(attempt-1) for exponential,
// capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		return 0
	}
	var delay time.Duration
	switch b.Strategy {
	case config.BackoffExponential:
		shift := attempt - 1
		if shift > 30 {
			shift = 30
		}
		delay = base * time.Duration(1<<shift)
	default:
		delay = base * time.Duration(attempt)
	}
	if b.Max > 0 && (delay > b.Max || delay < 0) {
		delay = b.Max
	}
	return delay
}
