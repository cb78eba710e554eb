package cli

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/thesayyn/conform/internal/harness"
)

// progress advances a progress bar once per finished case.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, total int) *progress {
	return &progress{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("running"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
		),
	}
}

// CaseFinished implements harness.CaseObserver.
func (p *progress) CaseFinished(harness.CaseResult) {
	_ = p.bar.Add(1)
}

// Finish clears the bar.
func (p *progress) Finish() {
	_ = p.bar.Finish()
}
