package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"auditexport/internal/config"
	"auditexport/internal/document"
	"auditexport/internal/ledger"
	"auditexport/internal/logging"
	"auditexport/internal/services"
	"auditexport/internal/services/helpdesk"
)

// RecordSource performs the record call.
type RecordSource interface {
	FetchAudits(ctx context.Context, id int64) (*helpdesk.Response, error)
}

// Assembler turns a payload into a record, downloading its media.
type Assembler interface {
	Assemble(ctx context.Context, raw []byte) (*document.Record, error)
}

// RecordStore persists assembled records.
type RecordStore interface {
	RecordExists(ctx context.Context, id int64) (bool, error)
	SaveRecord(ctx context.Context, id int64, doc any) error
}

// MissingSet is the durable set of ids that returned 404.
type MissingSet interface {
	Contains(id int64) bool
	Add(id int64) error
	Count() int
}

// Quota hands out call reservations per window.
type Quota interface {
	Reserve(ctx context.Context, requested int) (int, error)
	RecordCall()
	Release(n int)
	Used() int
	Outstanding() int
	Limit() int
	CurrentWindow() time.Time
}

// FailureLedger records reported failures. It is optional.
type FailureLedger interface {
	RecordFailure(ctx context.Context, f ledger.Failure) error
	ResolveRecord(ctx context.Context, id int64) error
}

// Observer receives progress for metrics. It is optional.
type Observer interface {
	CallCompleted(outcome string, elapsed time.Duration)
	BatchCompleted()
	QuotaState(used, outstanding, limit int)
	MissingIDs(n int)
}

// Settings tunes a Coordinator.
type Settings struct {
	Concurrency  int
	MaxAttempts  int
	Backoff      Backoff
	SkipExisting bool
	RunID        string
}

// SettingsFrom derives coordinator settings from the application config.
func SettingsFrom(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{SkipExisting: true}
	}
	return Settings{
		Concurrency:  cfg.Export.Concurrency,
		MaxAttempts:  cfg.Export.MaxAttempts,
		SkipExisting: cfg.Export.SkipExisting,
		Backoff: Backoff{
			Strategy: cfg.Export.RetryBackoff,
			Base:     cfg.RetryBaseDelay(),
			Max:      cfg.RetryMaxDelay(),
		},
	}
}

// Deps are the collaborators of a Coordinator. Ledger, Observer, and Logger
// may be nil.
type Deps struct {
	Source    RecordSource
	Assembler Assembler
	Store     RecordStore
	Missing   MissingSet
	Quota     Quota
	Ledger    FailureLedger
	Observer  Observer
	Logger    *slog.Logger
}

// Coordinator drives an export run.
type Coordinator struct {
	source    RecordSource
	assembler Assembler
	store     RecordStore
	missing   MissingSet
	quota     Quota
	ledger    FailureLedger
	observer  Observer
	logger    *slog.Logger
	settings  Settings
}

// New validates deps and settings and constructs a Coordinator.
func New(deps Deps, settings Settings) (*Coordinator, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("export: record source is required")
	case deps.Assembler == nil:
		return nil, errors.New("export: assembler is required")
	case deps.Store == nil:
		return nil, errors.New("export: record store is required")
	case deps.Missing == nil:
		return nil, errors.New("export: missing id cache is required")
	case deps.Quota == nil:
		return nil, errors.New("export: quota scheduler is required")
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 1
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{
		source:    deps.Source,
		assembler: deps.Assembler,
		store:     deps.Store,
		missing:   deps.Missing,
		quota:     deps.Quota,
		ledger:    deps.Ledger,
		observer:  observer,
		logger:    logging.NewComponentLogger(deps.Logger, "export"),
		settings:  settings,
	}, nil
}

// Run exports every id in [start, end]. Ids already saved (unless
// SkipExisting is off) or known to be missing are never requested. A fatal
// error stops the run after the current batch drains and is returned with the
// partial summary.
func (c *Coordinator) Run(ctx context.Context, start, end int64) (Summary, error) {
	summary := Summary{RunID: c.settings.RunID, Start: start, End: end}
	if start <= 0 || end < start {
		return summary, services.Wrap(services.ErrConfiguration, "export", "run",
			fmt.Sprintf("invalid id range [%d, %d]", start, end), nil)
	}
	ctx = services.WithRunID(ctx, c.settings.RunID)
	logger := logging.WithContext(ctx, c.logger)
	began := time.Now()
	defer func() { summary.Elapsed = time.Since(began) }()

	logger.Info("export started",
		logging.String(logging.FieldEventType, "export_started"),
		logging.Int64("range_start", start),
		logging.Int64("range_end", end),
		logging.Int("rate_limit_per_minute", c.quota.Limit()),
		logging.Int("concurrency", c.settings.Concurrency),
		logging.Bool("skip_existing", c.settings.SkipExisting),
	)
	c.observer.MissingIDs(c.missing.Count())

	cursor := start
	for cursor <= end {
		if err := ctx.Err(); err != nil {
			return summary, interrupted(err)
		}

		candidates, next, err := c.scan(ctx, cursor, end, c.quota.Limit())
		if err != nil {
			return summary, err
		}
		if len(candidates) == 0 {
			summary.Skipped += int(next - cursor)
			cursor = next
			continue
		}

		granted, err := c.quota.Reserve(ctx, len(candidates))
		if err != nil {
			return summary, interrupted(err)
		}
		batch := candidates[:granted]
		last := batch[len(batch)-1]
		summary.Skipped += int(last+1-cursor) - len(batch)
		cursor = last + 1

		stats, err := c.runBatch(ctx, summary.Batches+1, batch)
		summary.add(stats.BatchStats)
		summary.MediaUnresolved += stats.mediaUnresolved
		if err != nil {
			return summary, err
		}
	}

	logger.Info("export finished",
		logging.String(logging.FieldEventType, "export_finished"),
		logging.Int("batches", summary.Batches),
		logging.Int("dispatched", summary.Dispatched),
		logging.Int("calls", summary.Calls),
		logging.Int("saved", summary.Saved),
		logging.Int("missing", summary.Missing),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", time.Since(began)),
	)
	return summary, nil
}

// scan collects up to limit ids from [cursor, end] that still need fetching.
// next is the id after the last one examined.
func (c *Coordinator) scan(ctx context.Context, cursor, end int64, limit int) ([]int64, int64, error) {
	candidates := make([]int64, 0, min(int64(limit), end-cursor+1))
	id := cursor
	for ; id <= end && len(candidates) < limit; id++ {
		if (id-cursor)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, id, interrupted(err)
			}
		}
		if c.missing.Contains(id) {
			continue
		}
		if c.settings.SkipExisting {
			exists, err := c.store.RecordExists(ctx, id)
			if err != nil {
				return nil, id, fmt.Errorf("scan record %d: %w", id, err)
			}
			if exists {
				continue
			}
		}
		candidates = append(candidates, id)
	}
	return candidates, id, nil
}

// batchStats adds bookkeeping that only the run summary needs.
type batchStats struct {
	BatchStats
	mediaUnresolved int
}

// runBatch fetches ids with the worker pool and returns once every worker
// has exited. The caller has reserved one call per id.
func (c *Coordinator) runBatch(parent context.Context, number int, ids []int64) (batchStats, error) {
	stats := batchStats{BatchStats: BatchStats{
		Number:     number,
		Window:     c.quota.CurrentWindow(),
		FirstID:    ids[0],
		LastID:     ids[len(ids)-1],
		Dispatched: len(ids),
	}}
	began := time.Now()
	parent = services.WithBatch(parent, number)
	logger := logging.WithContext(parent, c.logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	gate := &persistGate{}
	jobs := make(chan job)
	// Every id has at most one job in flight, so neither channel can fill.
	results := make(chan outcome, len(ids))
	retries := make(chan job, len(ids))

	workers := min(c.settings.Concurrency, len(ids))
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- c.attempt(ctx, gate, j)
			}
		}()
	}

	pending := make([]job, 0, len(ids))
	for _, id := range ids {
		pending = append(pending, job{id: id, attempt: 1})
	}
	var (
		inflight int
		timers   = make(map[int64]*time.Timer)
		fatalErr error
		done     = parent.Done()
	)

	stop := func(err error) {
		if fatalErr != nil {
			return
		}
		fatalErr = err
		cancel()
		gate.close()
		c.quota.Release(len(pending))
		pending = nil
		for id, t := range timers {
			if t.Stop() {
				delete(timers, id)
			}
		}
	}

	for len(pending) > 0 || inflight > 0 || len(timers) > 0 {
		var (
			send chan<- job
			next job
		)
		if len(pending) > 0 {
			send = jobs
			next = pending[0]
		}

		select {
		case send <- next:
			pending = pending[1:]
			inflight++

		case o := <-results:
			inflight--
			if o.called {
				stats.Calls++
				c.quota.RecordCall()
				c.observer.CallCompleted(o.kind.String(), o.elapsed)
			} else {
				c.quota.Release(1)
			}
			if fatalErr != nil {
				continue
			}
			if err := c.handle(ctx, logger, &stats, o, func(j job, delay time.Duration) {
				timers[j.id] = time.AfterFunc(delay, func() { retries <- j })
			}); err != nil {
				stop(err)
			}

		case j := <-retries:
			delete(timers, j.id)
			if fatalErr != nil {
				continue
			}
			if _, err := c.quota.Reserve(ctx, 1); err != nil {
				stop(interrupted(err))
				continue
			}
			pending = append(pending, j)

		case <-done:
			done = nil
			stop(interrupted(parent.Err()))
		}
	}
	close(jobs)
	wg.Wait()

	stats.Elapsed = time.Since(began)
	c.observer.BatchCompleted()
	c.observer.QuotaState(c.quota.Used(), c.quota.Outstanding(), c.quota.Limit())
	c.observer.MissingIDs(c.missing.Count())

	logger.Info("batch complete",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Time("window", stats.Window),
		logging.Int64("first_id", stats.FirstID),
		logging.Int64("last_id", stats.LastID),
		logging.Int("dispatched", stats.Dispatched),
		logging.Int("calls", stats.Calls),
		logging.Int("saved", stats.Saved),
		logging.Int("missing", stats.Missing),
		logging.Int("failed", stats.Failed),
		logging.Int("retries", stats.Retries),
		logging.Int("quota_used", c.quota.Used()),
		logging.Duration("elapsed", stats.Elapsed),
	)
	return stats, fatalErr
}

// handle applies one outcome on the coordinator goroutine. It returns an
// error when the batch must stop.
func (c *Coordinator) handle(ctx context.Context, logger *slog.Logger, stats *batchStats, o outcome, retry func(job, time.Duration)) error {
	id := o.job.id
	recLogger := logger.With(logging.Int64(logging.FieldRecordID, id))

	switch o.kind {
	case outcomeSaved:
		stats.Saved++
		c.resolve(ctx, recLogger, id)
		if o.record != nil {
			for _, failure := range o.record.Unresolved {
				stats.mediaUnresolved++
				c.report(ctx, recLogger, ledger.Failure{
					RecordID: id,
					Kind:     ledger.KindMediaUnavailable,
					MediaID:  failure.MediaID,
					Attempts: o.job.attempt,
					Message:  errString(failure.Err),
					URL:      failure.URL,
				})
			}
		}
		recLogger.Debug("record saved", logging.Int("media", mediaCount(o.record)))
		return nil

	case outcomeMissing:
		if err := c.missing.Add(id); err != nil {
			return services.Wrap(services.ErrStorage, "export", fmt.Sprintf("record %d", id), "persist 404 cache", err)
		}
		stats.Missing++
		c.resolve(ctx, recLogger, id)
		recLogger.Debug("record not found; cached as missing")
		return nil

	case outcomeServerFault, outcomeConnectionFault:
		if o.kind.retriable() && o.job.attempt < c.settings.MaxAttempts {
			delay := c.settings.Backoff.Delay(o.job.attempt)
			stats.Retries++
			recLogger.Info("retrying record after transient fault",
				logging.String(logging.FieldEventType, "record_retry"),
				logging.Int("attempt", o.job.attempt),
				logging.Int("status", o.status),
				logging.Duration("delay", delay),
				logging.Error(o.err),
			)
			retry(job{id: id, attempt: o.job.attempt + 1}, delay)
			return nil
		}
		c.fail(ctx, recLogger, stats, o, ledger.KindTransient)
		return nil

	case outcomeClientFault:
		c.fail(ctx, recLogger, stats, o, ledger.KindClientFault)
		return nil

	case outcomeNoResponse:
		c.fail(ctx, recLogger, stats, o, ledger.KindNoResponse)
		return nil

	case outcomeCanceled:
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}
		return interrupted(context.Canceled)

	default:
		logging.ErrorWithContext(recLogger, "record export failed; stopping run", "record_fatal",
			logging.String("failure_kind", services.FailureKind(o.err)),
			logging.Error(o.err),
			logging.String(logging.FieldErrorHint, fatalHint(o.err)),
		)
		return fmt.Errorf("export record %d: %w", id, o.err)
	}
}

// attempt performs one call for j and, on success, assembles and saves the
// record. It runs on a worker goroutine.
func (c *Coordinator) attempt(ctx context.Context, gate *persistGate, j job) outcome {
	began := time.Now()
	o := outcome{job: j}
	ctx = services.WithRecordID(ctx, j.id)

	if err := ctx.Err(); err != nil {
		o.kind = outcomeCanceled
		o.err = err
		return o
	}
	o.called = true
	resp, err := c.source.FetchAudits(ctx, j.id)
	if err != nil {
		o.kind = classifyTransport(ctx, err)
		o.err = err
		o.elapsed = time.Since(began)
		return o
	}
	o.status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		o.kind = classifyStatus(resp.StatusCode)
		o.elapsed = time.Since(began)
		return o
	}

	record, err := c.assembler.Assemble(ctx, resp.Body)
	if err != nil {
		o.kind = outcomeFatal
		if ctx.Err() != nil {
			o.kind = outcomeCanceled
		}
		o.err = err
		o.elapsed = time.Since(began)
		return o
	}
	if record.ID != j.id {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "payload subject id differs from requested id", "record_id_mismatch",
			logging.Int64("subject_id", record.ID),
			logging.String(logging.FieldImpact, "record saved under the requested id"),
		)
	}

	err = gate.persist(func() error {
		return c.store.SaveRecord(ctx, j.id, record)
	})
	switch {
	case errors.Is(err, errGateClosed):
		o.kind = outcomeCanceled
	case err != nil:
		o.kind = outcomeFatal
		o.err = err
	default:
		o.kind = outcomeSaved
		o.record = record
	}
	o.elapsed = time.Since(began)
	return o
}

func (c *Coordinator) fail(ctx context.Context, logger *slog.Logger, stats *batchStats, o outcome, kind string) {
	stats.Failed++
	err := failureError(o)
	logging.WarnWithContext(logger, "record export failed", "record_failed",
		logging.String("failure_kind", kind),
		logging.Int("status", o.status),
		logging.Int("attempts", o.job.attempt),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "see 'auditexport failures list'; the id is retried on the next run"),
		logging.String(logging.FieldImpact, "record not exported"),
	)
	c.report(ctx, logger, ledger.Failure{
		RecordID:   o.job.id,
		Kind:       kind,
		RunID:      c.settings.RunID,
		StatusCode: o.status,
		Attempts:   o.job.attempt,
		Message:    err.Error(),
	})
}

// report writes a failure row. Ledger problems are logged and never stop the run.
func (c *Coordinator) report(ctx context.Context, logger *slog.Logger, f ledger.Failure) {
	if c.ledger == nil {
		return
	}
	if f.RunID == "" {
		f.RunID = c.settings.RunID
	}
	if err := c.ledger.RecordFailure(context.WithoutCancel(ctx), f); err != nil {
		logging.WarnWithContext(logger, "failed to record failure in ledger", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory"),
			logging.String(logging.FieldImpact, "failure not listed by 'auditexport failures'"),
		)
	}
}

func (c *Coordinator) resolve(ctx context.Context, logger *slog.Logger, id int64) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.ResolveRecord(context.WithoutCancel(ctx), id); err != nil {
		logging.WarnWithContext(logger, "failed to clear resolved failures", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory"),
		)
	}
}

func interrupted(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("export interrupted: %w", err)
	}
	return err
}

func fatalHint(err error) string {
	switch {
	case errors.Is(err, services.ErrMalformedPayload):
		return "check api.audits_path and api.subject_key against the API response"
	case errors.Is(err, services.ErrMediaUnavailable):
		return "set export.media_failure_policy = \"skip\" to export records with unreachable media"
	case errors.Is(err, services.ErrStorage):
		return "check free space and permissions under paths.output_dir"
	default:
		return "check logs for details"
	}
}

func mediaCount(r *document.Record) int {
	if r == nil {
		return 0
	}
	return len(r.Media)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type nopObserver struct{}

func (nopObserver) CallCompleted(string, time.Duration) {}
func (nopObserver) BatchCompleted()                     {}
func (nopObserver) QuotaState(int, int, int)            {}
func (nopObserver) MissingIDs(int)                      {}
