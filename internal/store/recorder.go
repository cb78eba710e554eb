package store

import (
	"context"
	"sync"

	"github.com/thesayyn/conform/internal/harness"
)

// Recorder writes every finished case of a run to the store. It implements
// harness.CaseObserver. The first write error stops recording and is kept
// for Err; the run itself carries on.
type Recorder struct {
	ctx   context.Context
	store *Store
	runID string

	mu      sync.Mutex
	err     error
	written int
}

// NewRecorder returns a Recorder for runID.
func NewRecorder(ctx context.Context, s *Store, runID string) *Recorder {
	return &Recorder{ctx: ctx, store: s, runID: runID}
}

// CaseFinished implements harness.CaseObserver.
func (r *Recorder) CaseFinished(res harness.CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	diags := res.Outcome.Diagnostics
	if res.Outcome.Status == harness.Skipped && res.Outcome.SkipReason != "" {
		diags = []string{res.Outcome.SkipReason}
	}

	// The run may be cancelled mid-way; the case that finished is still
	// recorded.
	err := r.store.WriteCaseResult(context.WithoutCancel(r.ctx), CaseRecord{
		RunID:       r.runID,
		Seq:         res.Seq,
		Name:        res.Case.Name,
		Level:       res.Case.Level.String(),
		Status:      res.Outcome.Status.String(),
		Counted:     res.Counted,
		Diagnostics: diags,
	})
	if err != nil {
		r.err = err
		return
	}
	r.written++
}

// Written returns the number of recorded cases.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
