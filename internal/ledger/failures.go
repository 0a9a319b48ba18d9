package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Failure kinds written by the exporter. They match services.FailureKind.
const (
	KindClientFault      = "client_fault"
	KindNoResponse       = "no_response"
	KindTransient        = "transient"
	KindMediaUnavailable = "media_unavailable"
)

// Failure is one outstanding problem with a record. MediaID is empty for
// record-level failures and set for media left unresolved under the skip policy.
type Failure struct {
	RecordID   int64
	Kind       string
	MediaID    string
	RunID      string
	StatusCode int
	Attempts   int
	Message    string
	URL        string
	RecordedAt time.Time
}

const failureColumns = "record_id, kind, media_id, run_id, status_code, attempts, message, url, recorded_at"

// RecordFailure inserts or refreshes a failure row. A repeat failure of the
// same record, kind, and media replaces the earlier row.
func (s *Store) RecordFailure(ctx context.Context, f Failure) error {
	if f.RecordID <= 0 {
		return fmt.Errorf("record failure: invalid record id %d", f.RecordID)
	}
	if f.Kind == "" {
		return fmt.Errorf("record failure %d: kind is required", f.RecordID)
	}
	recorded := f.RecordedAt
	if recorded.IsZero() {
		recorded = s.now()
	}
	_, err := s.exec(ctx, `INSERT INTO failures (`+failureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_id, kind, media_id) DO UPDATE SET
			run_id = excluded.run_id,
			status_code = excluded.status_code,
			attempts = excluded.attempts,
			message = excluded.message,
			url = excluded.url,
			recorded_at = excluded.recorded_at`,
		f.RecordID, f.Kind, f.MediaID, nullableString(f.RunID), f.StatusCode, f.Attempts,
		nullableString(f.Message), nullableString(f.URL), formatTime(recorded),
	)
	if err != nil {
		return fmt.Errorf("record failure %d: %w", f.RecordID, err)
	}
	return nil
}

// ResolveRecord drops record-level failures for id after it was saved or
// found missing. Media failure rows are replaced by the caller when the new
// save left media unresolved again.
func (s *Store) ResolveRecord(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, `DELETE FROM failures WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("resolve record %d: %w", id, err)
	}
	return nil
}

// ListFailures returns outstanding failures ordered by record id. A limit of
// zero or less returns every row.
func (s *Store) ListFailures(ctx context.Context, limit int) ([]Failure, error) {
	query := `SELECT ` + failureColumns + ` FROM failures ORDER BY record_id, kind, media_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FailureCounts returns outstanding failures grouped by kind.
func (s *Store) FailureCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(1) FROM failures GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failure counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// ClearFailures deletes failure rows. With no ids every row is removed.
func (s *Store) ClearFailures(ctx context.Context, ids ...int64) (int64, error) {
	query := `DELETE FROM failures`
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += ` WHERE record_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear failures: %w", err)
	}
	return res.RowsAffected()
}

func scanFailure(scanner interface{ Scan(dest ...any) error }) (Failure, error) {
	var (
		f        Failure
		runID    sql.NullString
		message  sql.NullString
		url      sql.NullString
		recorded string
	)
	if err := scanner.Scan(&f.RecordID, &f.Kind, &f.MediaID, &runID, &f.StatusCode, &f.Attempts, &message, &url, &recorded); err != nil {
		return Failure{}, err
	}
	f.RunID = runID.String
	f.Message = message.String
	f.URL = url.String
	f.RecordedAt = parseTime(recorded)
	return f, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	buf := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}
