package harness

import "fmt"

// Status is the verdict for one case.
type Status int

const (
	// Failed is the zero value so an Outcome never passes by omission.
	Failed Status = iota
	Passed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Failed:
		return "failed"
	case Passed:
		return "passed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome is the result of asserting one case.
type Outcome struct {
	Status Status `json:"status"`

	// Diagnostics explain a failure, in order.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// SkipReason is the IUT's reason for skipping.
	SkipReason string `json:"skip_reason,omitempty"`
}

// AddDiagnostic appends a diagnostic line.
func (o *Outcome) AddDiagnostic(d string) {
	o.Diagnostics = append(o.Diagnostics, d)
}

func passed() Outcome {
	return Outcome{Status: Passed}
}

func failed(diagnostics ...string) Outcome {
	return Outcome{Status: Failed, Diagnostics: diagnostics}
}
