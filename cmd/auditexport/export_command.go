package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"auditexport/internal/config"
	"auditexport/internal/contentstore"
	"auditexport/internal/document"
	"auditexport/internal/export"
	"auditexport/internal/ledger"
	"auditexport/internal/logging"
	"auditexport/internal/mediafetch"
	"auditexport/internal/metrics"
	"auditexport/internal/missingcache"
	"auditexport/internal/preflight"
	"auditexport/internal/quota"
	"auditexport/internal/services/helpdesk"
)

type exportOptions struct {
	start       int64
	end         int64
	force       bool
	metricsBind string
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every record in the id range",
		Long: `Export fetches each record id in the range, downloads its call recordings and
attachments, and writes one JSON document per record. Ids that are already
saved or known to be missing are not requested again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("start") {
				opts.start = cfg.Export.IDRangeStart
			}
			if !cmd.Flags().Changed("end") {
				opts.end = cfg.Export.IDRangeEnd
			}
			if !cmd.Flags().Changed("metrics-bind") {
				opts.metricsBind = cfg.Metrics.Bind
			}
			return runExport(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.start, "start", 0, "First record id (default export.id_range_start)")
	cmd.Flags().Int64Var(&opts.end, "end", 0, "Last record id, inclusive (default export.id_range_end)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Refetch records that are already saved")
	cmd.Flags().StringVar(&opts.metricsBind, "metrics-bind", "", "Serve Prometheus metrics on this address during the run")
	return cmd
}

func runExport(parent context.Context, out io.Writer, cfg *config.Config, opts exportOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := cfg.RequireBaseURL(); err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	if failed := preflight.Failed(preflight.CheckPaths(cfg)); len(failed) > 0 {
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}

	lock, err := export.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, export.ErrLocked) {
			return fmt.Errorf("another export is already running against %s", cfg.Paths.StateDir)
		}
		return err
	}
	defer lock.Release()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.PruneStale(logger, cfg, time.Now())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := contentstore.Open(ctx, cfg.BucketURL(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	led, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer led.Close()
	if n, err := led.MarkAbandonedRuns(ctx); err != nil {
		logging.WarnWithContext(logger, "could not mark abandoned runs", "ledger_abandoned_runs_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history may list stale running entries"),
		)
	} else if n > 0 {
		logger.Info("marked abandoned runs as interrupted", logging.Int64("runs", n))
	}

	m := metrics.New()
	if opts.metricsBind != "" {
		srv, err := metrics.Listen(opts.metricsBind, m, logger)
		if err != nil {
			return err
		}
		serveCtx, cancelServe := context.WithCancel(context.Background())
		served := make(chan error, 1)
		go func() { served <- srv.Serve(serveCtx) }()
		defer func() {
			cancelServe()
			if err := <-served; err != nil {
				logging.WarnWithContext(logger, "metrics endpoint stopped with error", "metrics_serve_failed", logging.Error(err))
			}
		}()
	}

	runID := uuid.NewString()
	coordinator, err := buildCoordinator(cfg, opts, runID, store, led, m, logger)
	if err != nil {
		return err
	}

	run := ledger.Run{
		ID:         runID,
		RangeStart: opts.start,
		RangeEnd:   opts.end,
		Forced:     opts.force,
		StartedAt:  time.Now(),
	}
	if err := led.StartRun(ctx, run); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}

	summary, runErr := coordinator.Run(ctx, opts.start, opts.end)

	run = finishedRun(run, summary, runErr)
	if err := led.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logger, "could not record run result", "ledger_finish_run_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history shows this run as running until the next export"),
		)
	}

	printSummary(out, summary, run.Status)
	return runErr
}

func buildCoordinator(cfg *config.Config, opts exportOptions, runID string, store *contentstore.Store, led *ledger.Store, m *metrics.Metrics, logger *slog.Logger) (*export.Coordinator, error) {
	scheduler := quota.NewScheduler(cfg.Export.RateLimitPerMinute,
		quota.WithMargin(cfg.WindowMargin()),
		quota.WithLogger(logger),
		quota.WithWaitObserver(m.QuotaWaited),
	)
	client := helpdesk.NewClient(helpdesk.ConfigFrom(cfg))
	fetcher := mediafetch.New(client, store, logger, mediafetch.WithObserver(m))
	assembler := document.NewAssembler(fetcher,
		document.WithSubjectKey(cfg.API.SubjectKey),
		document.WithMediaPolicy(document.MediaPolicy(cfg.Export.MediaFailurePolicy)),
		document.WithLogger(logger),
	)

	settings := export.SettingsFrom(cfg)
	settings.RunID = runID
	if opts.force {
		settings.SkipExisting = false
	}

	return export.New(export.Deps{
		Source:    client,
		Assembler: assembler,
		Store:     store,
		Missing:   missingcache.OpenDir(cfg.Paths.OutputDir, logger),
		Quota:     scheduler,
		Ledger:    led,
		Observer:  m,
		Logger:    logger,
	}, settings)
}

func finishedRun(run ledger.Run, summary export.Summary, runErr error) ledger.Run {
	run.Batches = summary.Batches
	run.Dispatched = summary.Dispatched
	run.Calls = summary.Calls
	run.Saved = summary.Saved
	run.Missing = summary.Missing
	run.Failed = summary.Failed
	run.Skipped = summary.Skipped
	run.FinishedAt = time.Now()
	switch {
	case runErr == nil:
		run.Status = ledger.RunCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		run.Status = ledger.RunInterrupted
		run.Error = runErr.Error()
	default:
		run.Status = ledger.RunFailed
		run.Error = runErr.Error()
	}
	return run
}

func printSummary(out io.Writer, s export.Summary, status ledger.RunStatus) {
	rows := [][]string{
		{"Run", s.RunID},
		{"Status", string(status)},
		{"Range", fmt.Sprintf("%d-%d", s.Start, s.End)},
		{"Batches", fmt.Sprint(s.Batches)},
		{"API calls", fmt.Sprint(s.Calls)},
		{"Saved", fmt.Sprint(s.Saved)},
		{"Missing (404)", fmt.Sprint(s.Missing)},
		{"Failed", fmt.Sprint(s.Failed)},
		{"Retries", fmt.Sprint(s.Retries)},
		{"Skipped", fmt.Sprint(s.Skipped)},
		{"Media unresolved", fmt.Sprint(s.MediaUnresolved)},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(out, renderTable("Export summary", []string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
