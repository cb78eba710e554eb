// Package differ compares two canonical text renderings line by line.
package differ

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op tags a line of a diff.
type Op int

const (
	Both Op = iota
	LeftOnly
	RightOnly
)

// Line is one aligned line of a diff.
type Line struct {
	Op   Op
	Text string
}

// Result is the outcome of Diff.
type Result struct {
	// Differs is true iff at least one line is not shared by both sides.
	Differs bool

	// Lines is the alignment in output order.
	Lines []Line

	// Text renders Lines: shared lines verbatim, left-only lines prefixed
	// with "- ", right-only lines with "+ ".
	Text string
}

// Diff aligns left and right on their longest common subsequence of lines.
// Identical inputs render back verbatim.
func Diff(left, right string) Result {
	a, b := splitLines(left), splitLines(right)

	var res Result
	for _, d := range lineDiff(a, b) {
		res.Lines = appendSide(res.Lines, lineOp(d.Type), splitLines(d.Text))
	}

	var sb strings.Builder
	for i, l := range res.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch l.Op {
		case LeftOnly:
			sb.WriteString("- ")
			res.Differs = true
		case RightOnly:
			sb.WriteString("+ ")
			res.Differs = true
		}
		sb.WriteString(l.Text)
	}
	if len(res.Lines) > 0 && trailingNewline(left, right) {
		sb.WriteByte('\n')
	}
	res.Text = sb.String()
	return res
}

// lineDiff runs a Myers diff with one rune per line. A zero timeout keeps
// diffmatchpatch off its half-match shortcut, so shared lines form a longest
// common subsequence.
func lineDiff(a, b []string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	ra, rb, lines := dmp.DiffLinesToRunes(joinLines(a), joinLines(b))
	return dmp.DiffCharsToLines(dmp.DiffMainRunes(ra, rb, false), lines)
}

func lineOp(t diffmatchpatch.Operation) Op {
	switch t {
	case diffmatchpatch.DiffDelete:
		return LeftOnly
	case diffmatchpatch.DiffInsert:
		return RightOnly
	}
	return Both
}

// joinLines terminates every line, including the last, so equal lines hash
// equally wherever they sit.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func appendSide(lines []Line, op Op, texts []string) []Line {
	for _, t := range texts {
		lines = append(lines, Line{Op: op, Text: t})
	}
	return lines
}

// splitLines splits s on "\n". A trailing newline does not open an extra
// line and the empty string has no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func trailingNewline(left, right string) bool {
	if left != "" {
		return strings.HasSuffix(left, "\n")
	}
	return strings.HasSuffix(right, "\n")
}
