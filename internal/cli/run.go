package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thesayyn/conform/internal/harness"
	"github.com/thesayyn/conform/internal/message"
	"github.com/thesayyn/conform/internal/report"
	"github.com/thesayyn/conform/internal/runner"
	"github.com/thesayyn/conform/internal/store"
	"github.com/thesayyn/conform/internal/testcase"
	"github.com/thesayyn/conform/internal/validator"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	Program    string
	Suite      string
	Schema     string
	Output     string
	Filter     string
	Validators string

	ExitEarly          bool
	EnforceRecommended bool
	StrictWire         bool
	Progress           bool

	Stderr   string
	Env      []string
	EnvFiles []string

	JSONStats  string
	MetricsOut string
	ResultsDB  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run --program PATH --suite FILE [flags] [-- program args...]",
		Short: "Run a conformance suite against a program",
		Long: `Run every case of a suite against the implementation under test.

The program is started once and receives the cases in order. Arguments
after "--" are passed to it. The report is written as TAP version 14 to
stdout or to --output; logs and the colored verdict go to stderr.

Exit codes:
  0 - Suite passed
  1 - Suite failed
  2 - Command or transport error

Examples:
  conform run --program ./testee --suite suite.yaml --schema conformance.binpb
  conform run -p ./testee -s suite.yaml.zst --filter 'Required.*' --exit-early
  conform run -p ./testee -s suite.yaml --results-db runs.db --json-stats stats.json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Program, "program", "p", "", "path of the program under test (required)")
	f.StringVarP(&opts.Suite, "suite", "s", "", "suite file, optionally .zst or .lz4 compressed (required)")
	f.StringVar(&opts.Schema, "schema", "", "FileDescriptorSet of the test messages, needed by equivalence cases")
	f.StringVarP(&opts.Output, "output", "o", "-", "report destination, - for stdout")
	f.StringVar(&opts.Filter, "filter", "", "only run cases whose name matches this glob")
	f.StringVar(&opts.Validators, "validators", "", "CUE file with extra JSON validators")
	f.BoolVar(&opts.ExitEarly, "exit-early", false, "stop after the first failing case")
	f.BoolVar(&opts.EnforceRecommended, "enforce-recommended", false, "count Recommended failures toward the verdict")
	f.BoolVar(&opts.StrictWire, "strict-wire", false, "require byte-identical protobuf output where a case asks for it")
	f.BoolVar(&opts.Progress, "progress", false, "show a progress bar on stderr")
	f.StringVar(&opts.Stderr, "stderr", "ignore", "where the program's stderr goes: ignore or a file path")
	f.StringArrayVar(&opts.Env, "env", nil, "KEY=VALUE added to the program environment (repeatable)")
	f.StringArrayVar(&opts.EnvFiles, "env-file", nil, "dotenv file added to the program environment (repeatable)")
	f.StringVar(&opts.JSONStats, "json-stats", "", "write run counters as JSON to this file")
	f.StringVar(&opts.MetricsOut, "metrics-out", "", "write run counters as a Prometheus textfile")
	f.StringVar(&opts.ResultsDB, "results-db", "", "record the run in this SQLite database")

	return cmd
}

func runSuite(cmd *cobra.Command, opts *RunOptions, args []string) error {
	logger := opts.logger(cmd)

	if opts.Program == "" {
		return NewExitError(ExitCommandError, "--program is required")
	}
	if opts.Suite == "" {
		return NewExitError(ExitCommandError, "--suite is required")
	}

	cases, err := loadCases(opts.Suite, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	logger.Info("suite loaded", "suite", opts.Suite, "cases", len(cases), "filter", opts.Filter)

	asserter, err := buildAsserter(opts, cases, logger)
	if err != nil {
		return err
	}

	env, err := parseEnv(opts.Env, opts.EnvFiles)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid program environment", err)
	}

	out, err := openReport(cmd, opts.Output)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open report", err)
	}
	defer out.Close()

	// The first signal interrupts the IUT and lets the run report; a second
	// one gets the default behaviour.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)

	var observers []harness.CaseObserver

	var (
		db       *store.Store
		runID    string
		recorder *store.Recorder
	)
	if opts.ResultsDB != "" {
		db, err = store.Open(opts.ResultsDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open results database", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("error closing results database", "error", err)
			}
		}()

		runID, err = db.BeginRun(ctx, store.RunInfo{Program: opts.Program, Suite: opts.Suite, Total: len(cases)})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		recorder = store.NewRecorder(ctx, db, runID)
		observers = append(observers, recorder)
		logger.Info("recording run", "db", opts.ResultsDB, "run", runID)
	}

	var bar *progress
	if opts.Progress {
		bar = newProgress(cmd.ErrOrStderr(), len(cases))
		observers = append(observers, bar)
	}

	tap := report.NewTAP(out)
	h := harness.New(harness.Config{
		Channel: runner.New(runner.Config{
			Program: opts.Program,
			Args:    args,
			Env:     env,
			Stderr:  opts.Stderr,
			Logger:  logger,
		}),
		Asserter:           asserter,
		Reporter:           tap,
		Program:            opts.Program,
		ExitEarly:          opts.ExitEarly,
		EnforceRecommended: opts.EnforceRecommended,
		Observers:          observers,
		Logger:             logger,
	})

	st, runErr := h.Run(ctx, cases)
	if bar != nil {
		bar.Finish()
	}

	if db != nil {
		if err := recorder.Err(); err != nil {
			logger.Warn("run history is incomplete", "run", runID, "error", err)
		}
		if err := db.FinishRun(context.WithoutCancel(ctx), runID, st); err != nil {
			logger.Error("failed to finish run record", "run", runID, "error", err)
		}
	}

	if opts.JSONStats != "" {
		if err := st.WriteJSON(opts.JSONStats); err != nil {
			return WrapExitError(ExitCommandError, "failed to write stats", err)
		}
	}
	if opts.MetricsOut != "" {
		if err := st.WriteMetrics(opts.MetricsOut); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}
	if err := tap.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if err := out.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close report", err)
	}

	printVerdict(cmd.ErrOrStderr(), st)

	if runErr != nil {
		return WrapExitError(ExitCommandError, "run aborted", runErr)
	}
	if st.RunFailed() {
		return NewExitError(ExitFailure, st.Verdict())
	}
	return nil
}

func loadCases(suite, filter string) ([]*testcase.TestCase, error) {
	cases, err := testcase.LoadSuite(suite)
	if err != nil {
		return nil, err
	}
	return testcase.Filter(cases, filter)
}

func buildAsserter(opts *RunOptions, cases []*testcase.TestCase, logger *slog.Logger) (*harness.Asserter, error) {
	var schema *message.Schema
	if opts.Schema != "" {
		s, err := message.LoadSchema(opts.Schema)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
		}
		schema = s
	} else if n := countEquivalence(cases); n > 0 {
		logger.Warn("no --schema given; equivalence cases will fail", "cases", n)
	}

	validators := validator.Default()
	if opts.Validators != "" {
		extra, err := validator.LoadCUE(opts.Validators)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load validators", err)
		}
		validators, err = validators.With(extra)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load validators", err)
		}
		logger.Debug("validators loaded", "file", opts.Validators, "extra", len(extra), "total", validators.Len())
	}

	return harness.NewAsserter(schema, validators, opts.StrictWire), nil
}

func countEquivalence(cases []*testcase.TestCase) int {
	n := 0
	for _, tc := range cases {
		if _, ok := tc.Mode.(testcase.Equivalence); ok {
			n++
		}
	}
	return n
}

// openReport returns the command's stdout for "-", otherwise a new file.
func openReport(cmd *cobra.Command, dest string) (io.WriteCloser, error) {
	if dest == "" || dest == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return report.Open(dest)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
