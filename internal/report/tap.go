// Package report streams run results in the Test Anything Protocol,
// version 14.
//
// A run produces:
//
//	TAP version 14
//	1..3
//	ok 1 - Required.Proto3.ProtobufInput.ValidDataScalar.INT32.ProtobufOutput
//	not ok 2 - Required.Proto3.JsonInput.EnumFieldUnknownValue.Validator
//	# optionalNestedEnum was not equal to 123
//	ok 3 - Recommended.Proto3.JsonInput.Int64FieldBeString.Validator # SKIP not supported
//	# test suite has failed (50.00%)
//	# 1 passed
//	# 1 skipped
//	# 1 failed
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thesayyn/conform/internal/stats"
)

// DowngradedDirective marks a reported failure that does not count toward
// the verdict.
const DowngradedDirective = "recommended"

// TAP writes a TAP 14 stream. Write errors are sticky and surface from Err.
type TAP struct {
	w   io.Writer
	err error
}

// NewTAP returns a TAP writer on w.
func NewTAP(w io.Writer) *TAP {
	return &TAP{w: w}
}

// Plan writes the version line and the plan for total cases.
func (t *TAP) Plan(total int) {
	t.printf("TAP version 14\n")
	t.printf("1..%d\n", total)
}

// Ok reports passing case n.
func (t *TAP) Ok(n int, name string) {
	t.printf("ok %d - %s\n", n, escape(name))
}

// Skip reports case n as skipped.
func (t *TAP) Skip(n int, name, reason string) {
	t.printf("ok %d - %s # SKIP%s\n", n, escape(name), directiveText(reason))
}

// NotOk reports failing case n. A downgraded failure carries a TODO
// directive so TAP consumers do not count it.
func (t *TAP) NotOk(n int, name string, downgraded bool) {
	if downgraded {
		t.printf("not ok %d - %s # TODO %s\n", n, escape(name), DowngradedDirective)
		return
	}
	t.printf("not ok %d - %s\n", n, escape(name))
}

// Diagnostic writes msg as comment lines.
func (t *TAP) Diagnostic(msg string) {
	msg = strings.TrimRight(msg, "\n")
	t.printf("# %s\n", strings.ReplaceAll(msg, "\n", "\n# "))
}

// Summary writes the verdict and the counters.
func (t *TAP) Summary(s *stats.Stats) {
	t.Diagnostic(s.Verdict())
	t.Diagnostic(strings.Join(s.Counters(), "\n"))
}

// Err returns the first write error.
func (t *TAP) Err() error {
	return t.err
}

func (t *TAP) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	if _, err := fmt.Fprintf(t.w, format, args...); err != nil {
		t.err = fmt.Errorf("failed to write report: %w", err)
	}
}

var descriptionEscaper = strings.NewReplacer(`\`, `\\`, "#", `\#`)

// escape keeps a '#' in a case name from starting a directive and a '\'
// from escaping the character after it.
func escape(name string) string {
	return descriptionEscaper.Replace(name)
}

func directiveText(reason string) string {
	reason = strings.Join(strings.Fields(reason), " ")
	if reason == "" {
		return ""
	}
	return " " + reason
}

// Open returns the report destination: stdout for "-", otherwise a newly
// created file.
func Open(dest string) (io.WriteCloser, error) {
	if dest == "" || dest == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to open the report file: %w", err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
