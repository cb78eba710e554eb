package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/thesayyn/conform/internal/stats"
	"github.com/thesayyn/conform/internal/testcase"
)

// Channel is the exchange with the IUT. runner.Runner implements it.
type Channel interface {
	Spawn() error
	Send(payload []byte) ([]byte, error)
	Kill() error
}

// Interrupter is implemented by channels that can abandon a blocked Send.
// Interrupt may be called from another goroutine; Kill is still called
// afterwards.
type Interrupter interface {
	Interrupt() error
}

// Reporter receives the report stream. report.TAP implements it.
type Reporter interface {
	Plan(total int)
	Ok(n int, name string)
	Skip(n int, name, reason string)
	NotOk(n int, name string, downgraded bool)
	Diagnostic(msg string)
	Summary(s *stats.Stats)
}

// CaseResult is one finished case as seen by observers.
type CaseResult struct {
	Seq     int
	Case    *testcase.TestCase
	Outcome Outcome

	// Counted is false for failures downgraded by the Recommended policy.
	Counted bool
}

// CaseObserver is notified after each case is reported.
type CaseObserver interface {
	CaseFinished(r CaseResult)
}

// Config configures a Harness.
type Config struct {
	Channel  Channel
	Asserter *Asserter
	Reporter Reporter

	// Program names the IUT in diagnostics.
	Program string

	// ExitEarly stops the run after the first failing case.
	ExitEarly bool

	// EnforceRecommended counts Recommended failures toward the verdict.
	EnforceRecommended bool

	Observers []CaseObserver
	Logger    *slog.Logger
}

// Harness runs cases sequentially against one IUT process.
type Harness struct {
	channel   Channel
	asserter  *Asserter
	reporter  Reporter
	observers []CaseObserver
	logger    *slog.Logger

	program            string
	exitEarly          bool
	enforceRecommended bool
}

// New returns a Harness for cfg.
func New(cfg Config) *Harness {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	asserter := cfg.Asserter
	if asserter == nil {
		asserter = NewAsserter(nil, nil, false)
	}
	return &Harness{
		channel:            cfg.Channel,
		asserter:           asserter,
		reporter:           cfg.Reporter,
		observers:          cfg.Observers,
		logger:             logger,
		program:            cfg.Program,
		exitEarly:          cfg.ExitEarly,
		enforceRecommended: cfg.EnforceRecommended,
	}
}

// Run executes cases in order and returns the final stats.
//
// Execution flow:
// 1. Emit the plan for len(cases)
// 2. Spawn the IUT; it is killed exactly once when the loop ends
// 3. Send each case, assert the response, report and record it
// 4. Emit the summary
//
// A transport error fails the case in flight, aborts the run and is
// returned. So is a cancelled ctx, checked between cases. The summary is
// emitted on every path.
func (h *Harness) Run(ctx context.Context, cases []*testcase.TestCase) (*stats.Stats, error) {
	st := stats.New(len(cases))
	h.reporter.Plan(len(cases))

	err := h.execute(ctx, cases, st)
	if err != nil {
		st.Abort()
		h.reporter.Diagnostic(err.Error())
	}

	st.Finalize()
	h.reporter.Summary(st)

	h.logger.Info("run finished",
		"total", st.Total,
		"passed", st.Passed,
		"skipped", st.Skipped,
		"failed", st.Failed,
		"downgraded", st.Downgraded,
		"aborted", st.Aborted,
	)
	return st, err
}

func (h *Harness) execute(ctx context.Context, cases []*testcase.TestCase, st *stats.Stats) error {
	// Nothing was started, so there is nothing to kill.
	if err := h.channel.Spawn(); err != nil {
		return err
	}
	defer func() {
		if err := h.channel.Kill(); err != nil {
			h.logger.Warn("failed to kill the testee program", "error", err)
		}
	}()

	if in, ok := h.channel.(Interrupter); ok {
		stop := context.AfterFunc(ctx, func() {
			if err := in.Interrupt(); err != nil {
				h.logger.Warn("failed to interrupt the testee program", "error", err)
			}
		})
		defer stop()
	}

	if h.program != "" {
		h.reporter.Diagnostic(fmt.Sprintf("%s is running now", h.program))
	}

	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted before case %d: %w", i+1, err)
		}
		seq := i + 1

		// A case whose envelope does not decode is never sent.
		var out Outcome
		if tc.RequestErr != nil {
			out = failed(tc.RequestErr.Error())
		} else {
			raw, err := h.channel.Send(tc.Payload)
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					h.record(seq, tc, failed(fmt.Sprintf("interrupted: %v", err)), st)
					return fmt.Errorf("run interrupted during case %d: %w", seq, cerr)
				}
				h.record(seq, tc, failed(err.Error()), st)
				return err
			}
			out = h.asserter.Assert(tc, raw)
		}
		h.record(seq, tc, out, st)

		if out.Status == Failed && h.exitEarly {
			h.reporter.Diagnostic(fmt.Sprintf("stopping after the first failure (%d of %d cases run)", seq, len(cases)))
			return nil
		}
	}
	return nil
}

func (h *Harness) record(seq int, tc *testcase.TestCase, out Outcome, st *stats.Stats) {
	counted := true
	switch out.Status {
	case Passed:
		st.RecordPass()
		h.reporter.Ok(seq, tc.Name)
	case Skipped:
		st.RecordSkip()
		h.reporter.Skip(seq, tc.Name, out.SkipReason)
	default:
		counted = tc.IsRequired() || h.enforceRecommended
		st.RecordFail(counted)
		h.reporter.NotOk(seq, tc.Name, !counted)
		for _, d := range out.Diagnostics {
			h.reporter.Diagnostic(d)
		}
		h.reporter.Diagnostic(tc.String())
	}

	h.logger.Debug("case finished",
		"seq", seq,
		"name", tc.Name,
		"status", out.Status,
		"counted", counted,
	)

	r := CaseResult{Seq: seq, Case: tc, Outcome: out, Counted: counted}
	for _, o := range h.observers {
		o.CaseFinished(r)
	}
}
