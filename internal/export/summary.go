package export

import (
	"time"
)

// Summary totals one Run.
type Summary struct {
	RunID      string
	Start      int64
	End        int64
	Batches    int
	Dispatched int
	Calls      int
	Saved      int
	Missing    int
	Failed     int
	Retries    int
	Skipped    int
	// MediaUnresolved counts media references left unresolved under the skip policy.
	MediaUnresolved int
	Elapsed         time.Duration
}

// BatchStats describes one drained batch.
type BatchStats struct {
	Number     int
	Window     time.Time
	FirstID    int64
	LastID     int64
	Dispatched int
	Calls      int
	Saved      int
	Missing    int
	Failed     int
	Retries    int
	Elapsed    time.Duration
}

func (s *Summary) add(b BatchStats) {
	s.Batches++
	s.Dispatched += b.Dispatched
	s.Calls += b.Calls
	s.Saved += b.Saved
	s.Missing += b.Missing
	s.Failed += b.Failed
	s.Retries += b.Retries
}
