// Package store records conformance runs in a SQLite database so results
// can be compared across runs of the same implementation.
//
// A run is one row in runs, keyed by a UUIDv7 so ids sort by start time.
// Each reported case is one row in case_results, keyed by (run_id, seq).
//
// # Lifecycle
//
//	run, _ := s.BeginRun(ctx, store.RunInfo{Program: "./iut", Suite: "suite.yaml", Total: n})
//	rec := store.NewRecorder(ctx, s, run)   // harness.CaseObserver
//	// ... harness.Run with rec as an observer ...
//	_ = s.FinishRun(ctx, run, st)
//
// A run that never reaches FinishRun keeps finished_at NULL and the verdict
// "running", which is how interrupted runs show up in history.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
