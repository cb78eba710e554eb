package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesayyn/conform/internal/harness"
	"github.com/thesayyn/conform/internal/stats"
	"github.com/thesayyn/conform/internal/testcase"
	"github.com/thesayyn/conform/internal/testutil"
)

// createTestStore opens a store with a step clock and sequential run ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(testutil.NewStepClock().Now),
		WithIDGenerator(testutil.NewSequentialIDs("run").Next),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func finishedStats(passed, skipped, failed, total int) *stats.Stats {
	st := stats.New(total)
	for i := 0; i < passed; i++ {
		st.RecordPass()
	}
	for i := 0; i < skipped; i++ {
		st.RecordSkip()
	}
	for i := 0; i < failed; i++ {
		st.RecordFail(true)
	}
	st.Finalize()
	return st
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	id, err := s1.BeginRun(context.Background(), RunInfo{Program: "iut", Suite: "s.yaml", Total: 1})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	run, err := s2.ReadRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "iut", run.Program)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigratesVersionZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec("DROP INDEX idx_case_results_status")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var name string
	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_case_results_status'`).Scan(&name)
	require.NoError(t, err)
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	require.Error(t, err)
}

func TestBeginRun_DefaultIDsAreUUIDv7(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	id, err := s.BeginRun(context.Background(), RunInfo{Program: "iut", Suite: "s.yaml", Total: 3})
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	id, err := s.BeginRun(ctx, RunInfo{Program: "./iut", Suite: "suite.yaml", Total: 3})
	require.NoError(t, err)
	assert.Equal(t, "run-0001", id)

	run, err := s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, VerdictRunning, run.Verdict)
	assert.False(t, run.Finished())
	assert.Equal(t, testutil.Epoch, run.StartedAt)
	assert.Equal(t, 3, run.Total)

	require.NoError(t, s.FinishRun(ctx, id, finishedStats(1, 1, 1, 3)))

	run, err = s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.True(t, run.Finished())
	assert.Equal(t, testutil.Epoch.Add(time.Second), run.FinishedAt)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)
	assert.InDelta(t, 50.0, run.Percentile, 1e-9)
	assert.Equal(t, VerdictFailed, run.Verdict)
}

func TestFinishRun_Verdicts(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	passed, err := s.BeginRun(ctx, RunInfo{Program: "a", Suite: "s", Total: 1})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, passed, finishedStats(1, 0, 0, 1)))

	aborted, err := s.BeginRun(ctx, RunInfo{Program: "b", Suite: "s", Total: 2})
	require.NoError(t, err)
	st := finishedStats(1, 0, 0, 2)
	st.Abort()
	require.NoError(t, s.FinishRun(ctx, aborted, st))

	run, err := s.ReadRun(ctx, passed)
	require.NoError(t, err)
	assert.Equal(t, VerdictPassed, run.Verdict)

	run, err = s.ReadRun(ctx, aborted)
	require.NoError(t, err)
	assert.Equal(t, VerdictAborted, run.Verdict)
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), "nope", finishedStats(0, 0, 0, 0))
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = s.ReadRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.BeginRun(ctx, RunInfo{Program: "iut", Suite: "s", Total: i})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-0003", runs[0].ID)
	assert.Equal(t, "run-0001", runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-0003", runs[0].ID)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestWriteCaseResult(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	id, err := s.BeginRun(ctx, RunInfo{Program: "iut", Suite: "s", Total: 2})
	require.NoError(t, err)

	require.NoError(t, s.WriteCaseResult(ctx, CaseRecord{
		RunID: id, Seq: 1, Name: "Required.A", Level: "Required", Status: "passed", Counted: true,
	}))
	require.NoError(t, s.WriteCaseResult(ctx, CaseRecord{
		RunID: id, Seq: 2, Name: "Recommended.B", Level: "Recommended", Status: "failed",
		Diagnostics: []string{"- a: <1>", "+ a: <2>"},
	}))

	all, err := s.ReadCaseResults(ctx, id, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{}, all[0].Diagnostics)
	assert.True(t, all[0].Counted)

	failed, err := s.ReadCaseResults(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, CaseRecord{
		RunID:       id,
		Seq:         2,
		Name:        "Recommended.B",
		Level:       "Recommended",
		Status:      "failed",
		Counted:     false,
		Diagnostics: []string{"- a: <1>", "+ a: <2>"},
	}, failed[0])

	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT diagnostics FROM case_results WHERE seq = 2`).Scan(&raw))
	assert.Equal(t, `["- a: <1>","+ a: <2>"]`, raw)
}

func TestWriteCaseResult_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	id, err := s.BeginRun(ctx, RunInfo{Program: "iut", Suite: "s", Total: 1})
	require.NoError(t, err)

	rec := CaseRecord{RunID: id, Seq: 1, Name: "Required.A", Level: "Required", Status: "passed", Counted: true}
	require.NoError(t, s.WriteCaseResult(ctx, rec))
	rec.Status = "failed"
	require.NoError(t, s.WriteCaseResult(ctx, rec))

	all, err := s.ReadCaseResults(ctx, id, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "passed", all[0].Status)
}

func TestWriteCaseResult_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteCaseResult(context.Background(), CaseRecord{RunID: "missing", Seq: 1, Name: "x", Level: "Required", Status: "passed"})
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	id, err := s.BeginRun(ctx, RunInfo{Program: "iut", Suite: "s", Total: 3})
	require.NoError(t, err)

	rec := NewRecorder(ctx, s, id)
	var _ harness.CaseObserver = rec

	required := &testcase.TestCase{Name: "Required.A", Level: testcase.Required}
	recommended := &testcase.TestCase{Name: "Recommended.B", Level: testcase.Recommended}

	rec.CaseFinished(harness.CaseResult{Seq: 1, Case: required, Outcome: harness.Outcome{Status: harness.Passed}, Counted: true})
	rec.CaseFinished(harness.CaseResult{Seq: 2, Case: required, Outcome: harness.Outcome{Status: harness.Skipped, SkipReason: "not supported"}, Counted: true})
	rec.CaseFinished(harness.CaseResult{Seq: 3, Case: recommended, Outcome: harness.Outcome{Status: harness.Failed, Diagnostics: []string{"boom"}}})

	require.NoError(t, rec.Err())
	assert.Equal(t, 3, rec.Written())

	all, err := s.ReadCaseResults(ctx, id, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "skipped", all[1].Status)
	assert.Equal(t, []string{"not supported"}, all[1].Diagnostics)
	assert.Equal(t, "Recommended", all[2].Level)
	assert.False(t, all[2].Counted)
	assert.Equal(t, []string{"boom"}, all[2].Diagnostics)
}

func TestRecorder_KeepsFirstError(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := NewRecorder(ctx, s, "missing-run")
	tc := &testcase.TestCase{Name: "Required.A"}

	rec.CaseFinished(harness.CaseResult{Seq: 1, Case: tc, Outcome: harness.Outcome{Status: harness.Passed}, Counted: true})
	first := rec.Err()
	require.Error(t, first)

	rec.CaseFinished(harness.CaseResult{Seq: 2, Case: tc, Outcome: harness.Outcome{Status: harness.Passed}, Counted: true})
	assert.Equal(t, first, rec.Err())
	assert.Equal(t, 0, rec.Written())
}

func TestRecorder_WritesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := createTestStore(t)
	id, err := s.BeginRun(ctx, RunInfo{Program: "iut", Suite: "s", Total: 1})
	require.NoError(t, err)

	rec := NewRecorder(ctx, s, id)
	cancel()
	rec.CaseFinished(harness.CaseResult{Seq: 1, Case: &testcase.TestCase{Name: "Required.A"}, Outcome: harness.Outcome{Status: harness.Passed}, Counted: true})

	require.NoError(t, rec.Err())
	assert.Equal(t, 1, rec.Written())
}
