package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of an export run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one export invocation.
type Run struct {
	ID         string
	RangeStart int64
	RangeEnd   int64
	Status     RunStatus
	Forced     bool
	Batches    int
	Dispatched int
	Calls      int
	Saved      int
	Missing    int
	Failed     int
	Skipped    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration reports how long the run took, or has been running.
func (r Run) Duration(now time.Time) time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = now
	}
	if r.StartedAt.IsZero() || end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}

const runColumns = "id, range_start, range_end, status, forced, batches, dispatched, calls, saved, missing, failed, skipped, error_message, started_at, finished_at"

// StartRun inserts a run row in the running state.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("start run: id is required")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	forced := 0
	if run.Forced {
		forced = 1
	}
	_, err := s.exec(ctx, `INSERT INTO runs (id, range_start, range_end, status, forced, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.RangeStart, run.RangeEnd, string(RunRunning), forced, formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	status := run.Status
	if status == "" || status == RunRunning {
		status = RunCompleted
	}
	res, err := s.exec(ctx, `UPDATE runs SET
			status = ?, batches = ?, dispatched = ?, calls = ?, saved = ?, missing = ?,
			failed = ?, skipped = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		string(status), run.Batches, run.Dispatched, run.Calls, run.Saved, run.Missing,
		run.Failed, run.Skipped, nullableString(run.Error), formatTime(finished), run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", run.ID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MarkAbandonedRuns flags runs left in the running state by a crashed
// process. Call it while holding the export lock.
func (s *Store) MarkAbandonedRuns(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `UPDATE runs SET status = ?, error_message = COALESCE(error_message, 'process exited before the run finished')
		WHERE status = ?`, string(RunInterrupted), string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run      Run
		status   string
		forced   int
		errMsg   sql.NullString
		started  string
		finished sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.RangeStart, &run.RangeEnd, &status, &forced, &run.Batches,
		&run.Dispatched, &run.Calls, &run.Saved, &run.Missing, &run.Failed, &run.Skipped,
		&errMsg, &started, &finished); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.Forced = forced != 0
	run.Error = errMsg.String
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	return run, nil
}
