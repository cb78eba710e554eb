// Package stats aggregates case outcomes into run counters.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
)

// Stats holds the counters of one run. Total is fixed at construction; the
// other counters move once per case.
type Stats struct {
	Total      int     `json:"total"`
	Passed     int     `json:"passed"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	Percentile float64 `json:"percentile"`

	// Downgraded counts failures that were reported but left out of Failed
	// because the case is Recommended and enforcement is off.
	Downgraded int `json:"-"`

	// Aborted is set when the run stopped on a transport error.
	Aborted bool `json:"-"`
}

// New returns Stats for a run of total cases.
func New(total int) *Stats {
	return &Stats{Total: total}
}

func (s *Stats) RecordPass() {
	s.Passed++
}

func (s *Stats) RecordSkip() {
	s.Skipped++
}

// RecordFail records a failing case. Uncounted failures do not affect the
// verdict.
func (s *Stats) RecordFail(counted bool) {
	if counted {
		s.Failed++
		return
	}
	s.Downgraded++
}

// Abort marks the run as ended by a transport error.
func (s *Stats) Abort() {
	s.Aborted = true
}

// Finalize computes the percentile.
func (s *Stats) Finalize() {
	s.Percentile = Percentile(s.Total, s.Passed, s.Skipped)
}

// Percentile is 100*passed/(total-skipped). A run where every case was
// skipped is vacuously 100%.
func Percentile(total, passed, skipped int) float64 {
	denom := total - skipped
	if denom <= 0 {
		return 100
	}
	return 100 * float64(passed) / float64(denom)
}

// RunFailed is the run verdict.
func (s *Stats) RunFailed() bool {
	return s.Failed > 0 || s.Aborted
}

// Verdict renders the verdict line of the summary.
func (s *Stats) Verdict() string {
	if s.RunFailed() {
		return fmt.Sprintf("test suite has failed (%.2f%%)", s.Percentile)
	}
	return fmt.Sprintf("test suite has succeeded (%.2f%%)", s.Percentile)
}

// Counters renders the raw counters, one per line.
func (s *Stats) Counters() []string {
	lines := []string{
		fmt.Sprintf("%d passed", s.Passed),
		fmt.Sprintf("%d skipped", s.Skipped),
		fmt.Sprintf("%d failed", s.Failed),
	}
	if s.Downgraded > 0 {
		lines = append(lines, fmt.Sprintf("%d recommended failures not enforced", s.Downgraded))
	}
	return lines
}

// WriteJSON writes {total, passed, skipped, failed, percentile} to path.
func (s *Stats) WriteJSON(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize stats into json: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write json stats: %w", err)
	}
	return nil
}
