package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, program, suite, started_at, finished_at, total, passed, skipped, failed, percentile, verdict
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadRun returns a single run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program, suite, started_at, finished_at, total, passed, skipped, failed, percentile, verdict
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadCaseResults returns the case results of a run ordered by seq. With
// failedOnly, only failed cases are returned, downgraded ones included.
//
// Returns an empty slice (not nil) if the run has no matching results.
func (s *Store) ReadCaseResults(ctx context.Context, runID string, failedOnly bool) ([]CaseRecord, error) {
	query := `
		SELECT run_id, seq, name, level, status, counted, diagnostics
		FROM case_results
		WHERE run_id = ?
	`
	if failedOnly {
		query += ` AND status = 'failed'`
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query case results: %w", err)
	}
	defer rows.Close()

	records := []CaseRecord{}
	for rows.Next() {
		var (
			rec     CaseRecord
			counted int
			diags   string
		)
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Name, &rec.Level, &rec.Status, &counted, &diags); err != nil {
			return nil, fmt.Errorf("scan case result: %w", err)
		}
		rec.Counted = counted != 0
		rec.Diagnostics, err = unmarshalDiagnostics(diags)
		if err != nil {
			return nil, fmt.Errorf("case result %s/%d: %w", rec.RunID, rec.Seq, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case results: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Program,
		&run.Suite,
		&startedAt,
		&finishedAt,
		&run.Total,
		&run.Passed,
		&run.Skipped,
		&run.Failed,
		&run.Percentile,
		&run.Verdict,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if finishedAt.Valid {
		run.FinishedAt, err = parseTime(finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
		}
	}

	return run, nil
}
