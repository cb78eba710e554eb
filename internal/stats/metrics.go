package stats

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics writes the counters to path in the Prometheus text format, for
// a node exporter textfile collector.
func (s *Stats) WriteMetrics(path string) error {
	cases := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conform_cases",
			Help: "Number of conformance cases by status in the last run",
		}, []string{"status"},
	)
	total := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conform_cases_selected",
			Help: "Number of conformance cases selected for the last run",
		},
	)
	percentile := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conform_percentile",
			Help: "Share of passed cases among the cases that were not skipped",
		},
	)
	runFailed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conform_run_failed",
			Help: "1 when the last run failed, 0 otherwise",
		},
	)

	cases.WithLabelValues("passed").Set(float64(s.Passed))
	cases.WithLabelValues("skipped").Set(float64(s.Skipped))
	cases.WithLabelValues("failed").Set(float64(s.Failed))
	cases.WithLabelValues("downgraded").Set(float64(s.Downgraded))
	total.Set(float64(s.Total))
	percentile.Set(s.Percentile)
	if s.RunFailed() {
		runFailed.Set(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(cases, total, percentile, runFailed)
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
