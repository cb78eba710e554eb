package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thesayyn/conform/internal/testcase"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Suite  string
	Filter string
}

// CaseSummary is one listed case.
type CaseSummary struct {
	Name        string `json:"name"`
	Level       string `json:"level"`
	MessageType string `json:"message_type"`
	Assertion   string `json:"assertion"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list --suite FILE",
		Short: "List the cases of a suite",
		Long: `Load a suite and print the names of its cases, one per line.

The suite is fully validated, so list doubles as a suite linter.

Examples:
  conform list --suite suite.yaml
  conform list --suite suite.yaml.zst --filter 'Recommended.*'
  conform list --suite suite.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCases(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Suite, "suite", "s", "", "suite file (required)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only list cases whose name matches this glob")

	return cmd
}

func listCases(cmd *cobra.Command, opts *ListOptions) error {
	if opts.Suite == "" {
		return NewExitError(ExitCommandError, "--suite is required")
	}

	cases, err := loadCases(opts.Suite, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	opts.logger(cmd).Debug("suite loaded", "suite", opts.Suite, "cases", len(cases))

	w := cmd.OutOrStdout()
	f := &OutputFormatter{Format: opts.Format, Writer: w}
	if f.JSON() {
		summaries := make([]CaseSummary, 0, len(cases))
		for _, tc := range cases {
			summaries = append(summaries, CaseSummary{
				Name:        tc.Name,
				Level:       tc.Level.String(),
				MessageType: tc.MessageType,
				Assertion:   assertionName(tc.Mode),
			})
		}
		return f.Success(summaries)
	}

	for _, tc := range cases {
		fmt.Fprintln(w, tc.Name)
	}
	return nil
}

// assertionName is the suite file spelling of an assertion mode.
func assertionName(mode testcase.AssertionMode) string {
	switch mode.(type) {
	case testcase.Equivalence:
		return "equivalence"
	case testcase.ExpectParseError:
		return "parse_error"
	case testcase.ExpectSerializeError:
		return "serialize_error"
	case testcase.ValidateJSON:
		return "json_validator"
	}
	return fmt.Sprintf("%T", mode)
}
