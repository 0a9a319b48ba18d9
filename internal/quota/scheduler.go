package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"auditexport/internal/logging"
)

// Window is the length of one quota bucket.
const Window = time.Minute

// DefaultMargin is added past the minute boundary before a blocked Reserve retries.
const DefaultMargin = time.Second

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleeper overrides how the scheduler waits for the next window.
func WithSleeper(sleep Sleeper) Option {
	return func(s *Scheduler) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithMargin sets the pause added past each minute boundary.
func WithMargin(margin time.Duration) Option {
	return func(s *Scheduler) {
		if margin >= 0 {
			s.margin = margin
		}
	}
}

// WithLogger attaches a logger for window waits.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logging.NewComponentLogger(logger, "quota")
	}
}

// WithWaitObserver registers a callback invoked with each window wait.
func WithWaitObserver(fn func(time.Duration)) Option {
	return func(s *Scheduler) {
		s.onWait = fn
	}
}

// Scheduler tracks calls per minute window and outstanding reservations.
type Scheduler struct {
	mu          sync.Mutex
	limit       int
	margin      time.Duration
	now         func() time.Time
	sleep       Sleeper
	logger      *slog.Logger
	onWait      func(time.Duration)
	used        map[time.Time]int
	outstanding int
}

// NewScheduler constructs a scheduler allowing limit calls per minute.
func NewScheduler(limit int, opts ...Option) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	s := &Scheduler{
		limit:  limit,
		margin: DefaultMargin,
		now:    time.Now,
		sleep:  SleepWithContext,
		logger: logging.NewComponentLogger(nil, "quota"),
		used:   make(map[time.Time]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Reserve grants up to requested calls from the current window. It blocks
// until at least one call is available and only fails when ctx is done.
func (s *Scheduler) Reserve(ctx context.Context, requested int) (int, error) {
	if requested <= 0 {
		return 0, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		s.mu.Lock()
		now := s.now()
		key := now.Truncate(Window)
		s.prune(key)
		budget := s.limit - s.used[key] - s.outstanding
		if budget > 0 {
			grant := min(requested, budget)
			s.outstanding += grant
			s.mu.Unlock()
			return grant, nil
		}
		wait := key.Add(Window).Sub(now) + s.margin
		used := s.used[key]
		outstanding := s.outstanding
		s.mu.Unlock()

		s.logger.Info("call quota exhausted; waiting for next window",
			logging.String(logging.FieldEventType, "quota_wait"),
			logging.Time("window", key),
			logging.Int("used", used),
			logging.Int("outstanding", outstanding),
			logging.Int("limit", s.limit),
			logging.Duration("wait", wait),
		)
		if s.onWait != nil {
			s.onWait(wait)
		}
		if err := s.sleep(ctx, wait); err != nil {
			return 0, err
		}
	}
}

// RecordCall counts one network call against the current window and retires
// one outstanding reservation. Failed calls count too.
func (s *Scheduler) RecordCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.now().Truncate(Window)
	s.used[key]++
	if s.outstanding > 0 {
		s.outstanding--
	}
}

// Release returns n unused reservations.
func (s *Scheduler) Release(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding -= n
	if s.outstanding < 0 {
		s.outstanding = 0
	}
}

// Used reports calls recorded in the current window.
func (s *Scheduler) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[s.now().Truncate(Window)]
}

// UsedAt reports calls recorded in the window containing t, if it has not been pruned.
func (s *Scheduler) UsedAt(t time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[t.Truncate(Window)]
}

// Outstanding reports reservations not yet recorded or released.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}

// Limit reports the per-window call limit.
func (s *Scheduler) Limit() int {
	return s.limit
}

// CurrentWindow reports the start of the current window.
func (s *Scheduler) CurrentWindow() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Truncate(Window)
}

// prune drops windows older than key. Caller holds mu.
func (s *Scheduler) prune(key time.Time) {
	for k := range s.used {
		if k.Before(key) {
			delete(s.used, k)
		}
	}
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
