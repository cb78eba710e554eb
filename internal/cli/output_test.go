package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesayyn/conform/internal/stats"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure, "suite failed")
	assert.Equal(t, "suite failed", err.Error())
	assert.Nil(t, errors.Unwrap(err))

	cause := errors.New("disk full")
	wrapped := WrapExitError(ExitCommandError, "failed to write stats", cause)
	assert.Equal(t, "failed to write stats: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"failure", NewExitError(ExitFailure, "x"), ExitFailure},
		{"command error", WrapExitError(ExitCommandError, "x", errors.New("y")), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitFailure, "x")), ExitFailure},
		{"plain error", errors.New("boom"), ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestOutputFormatter_Success(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success([]string{"a", "b"}))
	assert.JSONEq(t, `{"status":"ok","data":["a","b"]}`, buf.String())
	assert.True(t, f.JSON())
}

func TestOutputFormatter_Error(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf}

		require.NoError(t, f.Error(NewExitError(ExitFailure, "test suite has failed (50.00%)")))
		assert.Equal(t, "Error: test suite has failed (50.00%)\n", buf.String())
		assert.False(t, f.JSON())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &buf}

		require.NoError(t, f.Error(errors.New("boom")))
		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Nil(t, resp.Data)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ExitCommandError, resp.Error.Code)
		assert.Equal(t, "boom", resp.Error.Message)
	})
}

func TestPrintVerdict(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	passed := &stats.Stats{Total: 2, Passed: 2, Percentile: 100}
	failed := &stats.Stats{Total: 2, Passed: 1, Failed: 1, Percentile: 50}

	var buf bytes.Buffer
	printVerdict(&buf, passed)
	printVerdict(&buf, failed)

	assert.Equal(t, "test suite has succeeded (100.00%)\ntest suite has failed (50.00%)\n", buf.String())
}
