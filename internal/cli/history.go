package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/thesayyn/conform/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	ResultsDB string
	Limit     int
	RunID     string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history --results-db FILE",
		Short: "Show recorded runs",
		Long: `List the runs recorded with run --results-db, newest first.

With --run, list the failing cases of that run instead. Failures that did
not count toward the verdict are marked as not counted.

Examples:
  conform history --results-db runs.db
  conform history --results-db runs.db --limit 5
  conform history --results-db runs.db --run 0190a3c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ResultsDB, "results-db", "", "SQLite database written by run (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list, 0 for all")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "list the failing cases of this run")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	if opts.ResultsDB == "" {
		return NewExitError(ExitCommandError, "--results-db is required")
	}

	db, err := store.Open(opts.ResultsDB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open results database", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	f := &OutputFormatter{Format: opts.Format, Writer: w}

	if opts.RunID != "" {
		if _, err := db.ReadRun(ctx, opts.RunID); err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		failures, err := db.ReadCaseResults(ctx, opts.RunID, true)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read case results", err)
		}
		if f.JSON() {
			return f.Success(failures)
		}
		printTable(w, failureRows(failures), []string{"Seq", "Name", "Level", "Counted", "Diagnostic"})
		return nil
	}

	runs, err := db.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if f.JSON() {
		return f.Success(runs)
	}
	printTable(w, runRows(runs), []string{"Run", "Started", "Program", "Suite", "Verdict", "Passed", "Skipped", "Failed", "Percentile"})
	return nil
}

func runRows(runs []store.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			r.Program,
			r.Suite,
			r.Verdict,
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			fmt.Sprintf("%.2f%%", r.Percentile),
		})
	}
	return rows
}

func failureRows(records []store.CaseRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		counted := "yes"
		if !rec.Counted {
			counted = "no"
		}
		rows = append(rows, []string{
			strconv.Itoa(rec.Seq),
			rec.Name,
			rec.Level,
			counted,
			firstLine(rec.Diagnostics),
		})
	}
	return rows
}

// firstLine is the first line of the first diagnostic.
func firstLine(diags []string) string {
	if len(diags) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(diags[0], "\n")
	return line
}

func printTable(w io.Writer, rows [][]string, header []string) {
	buf := &bytes.Buffer{}
	tw := tablewriter.NewWriter(buf)
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeader(header)
	tw.AppendBulk(rows)
	tw.Render()
	// tablewriter puts a leading space on every line.
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		fmt.Fprintln(w, strings.TrimLeft(scanner.Text(), " "))
	}
}
