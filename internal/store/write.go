package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thesayyn/conform/internal/stats"
)

// Run verdicts as stored in runs.verdict.
const (
	VerdictRunning = "running"
	VerdictPassed  = "passed"
	VerdictFailed  = "failed"
	VerdictAborted = "aborted"
)

// ErrRunNotFound is returned for run ids that are not in the database.
var ErrRunNotFound = errors.New("run not found")

// RunInfo describes a run when it starts.
type RunInfo struct {
	Program string
	Suite   string
	Total   int
}

// Run is one row of runs.
type Run struct {
	ID         string
	Program    string
	Suite      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	Total      int
	Passed     int
	Skipped    int
	Failed     int
	Percentile float64
	Verdict    string
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// CaseRecord is one row of case_results.
type CaseRecord struct {
	RunID       string
	Seq         int
	Name        string
	Level       string
	Status      string
	Counted     bool
	Diagnostics []string
}

// BeginRun inserts a run in the "running" state and returns its id.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, program, suite, started_at, total, verdict)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		id,
		info.Program,
		info.Suite,
		formatTime(s.now()),
		info.Total,
		VerdictRunning,
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}

	return id, nil
}

// WriteCaseResult inserts a case result.
// Uses ON CONFLICT DO NOTHING for idempotency - a second write for the same
// (run_id, seq) is silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteCaseResult(ctx context.Context, rec CaseRecord) error {
	diags, err := marshalDiagnostics(rec.Diagnostics)
	if err != nil {
		return fmt.Errorf("write case result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_results (run_id, seq, name, level, status, counted, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.Name,
		rec.Level,
		rec.Status,
		boolToInt(rec.Counted),
		diags,
	)
	if err != nil {
		return fmt.Errorf("write case result: %w", err)
	}

	return nil
}

// FinishRun stores the final counters and verdict of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, st *stats.Stats) error {
	verdict := VerdictPassed
	switch {
	case st.Aborted:
		verdict = VerdictAborted
	case st.RunFailed():
		verdict = VerdictFailed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, passed = ?, skipped = ?, failed = ?, percentile = ?, verdict = ?
		WHERE id = ?
	`,
		formatTime(s.now()),
		st.Passed,
		st.Skipped,
		st.Failed,
		st.Percentile,
		verdict,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}

	return nil
}
