package stats

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPercentile(t *testing.T) {
	assert.Equal(t, 50.0, Percentile(4, 2, 0))
	assert.Equal(t, 100.0, Percentile(4, 2, 2))
	assert.Equal(t, 0.0, Percentile(3, 0, 0))
}

func TestPercentile_AllSkipped(t *testing.T) {
	assert.Equal(t, 100.0, Percentile(0, 0, 0))
	assert.Equal(t, 100.0, Percentile(5, 0, 5))
}

func TestPercentile_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		passed := rapid.IntRange(0, 10000).Draw(t, "passed")
		failed := rapid.IntRange(0, 10000).Draw(t, "failed")
		skipped := rapid.IntRange(0, 10000).Draw(t, "skipped")
		total := passed + failed + skipped

		got := Percentile(total, passed, skipped)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("percentile is not finite: %v", got)
		}
		if total == skipped {
			if got != 100 {
				t.Fatalf("all skipped: got %v, want 100", got)
			}
			return
		}
		want := 100 * float64(passed) / float64(total-skipped)
		if got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
}

func TestStats_Counters(t *testing.T) {
	s := New(5)
	s.RecordPass()
	s.RecordPass()
	s.RecordSkip()
	s.RecordFail(true)
	s.RecordFail(false)
	s.Finalize()

	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Downgraded)
	assert.Equal(t, 50.0, s.Percentile)
	assert.True(t, s.RunFailed())
	assert.Equal(t, "test suite has failed (50.00%)", s.Verdict())
	assert.Equal(t, []string{
		"2 passed",
		"1 skipped",
		"1 failed",
		"1 recommended failures not enforced",
	}, s.Counters())
}

func TestStats_DowngradedFailureKeepsVerdict(t *testing.T) {
	s := New(2)
	s.RecordPass()
	s.RecordFail(false)
	s.Finalize()

	assert.Zero(t, s.Failed)
	assert.False(t, s.RunFailed())
	assert.Equal(t, "test suite has succeeded (50.00%)", s.Verdict())
}

func TestStats_AbortFailsRun(t *testing.T) {
	s := New(3)
	s.RecordPass()
	s.Abort()
	s.Finalize()

	assert.True(t, s.RunFailed())
	assert.Equal(t, []string{"1 passed", "0 skipped", "0 failed"}, s.Counters())
}

func TestStats_WriteJSON(t *testing.T) {
	s := New(4)
	s.RecordPass()
	s.RecordPass()
	s.RecordSkip()
	s.RecordFail(false)
	s.Finalize()

	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, s.WriteJSON(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, map[string]any{
		"total":      4.0,
		"passed":     2.0,
		"skipped":    1.0,
		"failed":     0.0,
		"percentile": 200.0 / 3.0,
	}, got)
}

func TestStats_WriteJSONBadPath(t *testing.T) {
	err := New(0).WriteJSON(filepath.Join(t.TempDir(), "missing", "stats.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write json stats")
}

func TestStats_WriteMetrics(t *testing.T) {
	s := New(3)
	s.RecordPass()
	s.RecordFail(true)
	s.RecordSkip()
	s.Finalize()

	path := filepath.Join(t.TempDir(), "conform.prom")
	require.NoError(t, s.WriteMetrics(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, `conform_cases{status="passed"} 1`)
	assert.Contains(t, text, `conform_cases{status="failed"} 1`)
	assert.Contains(t, text, `conform_cases{status="skipped"} 1`)
	assert.Contains(t, text, "conform_cases_selected 3")
	assert.Contains(t, text, "conform_percentile 50")
	assert.Contains(t, text, "conform_run_failed 1")
}
