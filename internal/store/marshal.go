package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// marshalDiagnostics converts diagnostics to JSON TEXT for storage. A nil
// slice is stored as [] so the column never holds null.
func marshalDiagnostics(diags []string) (string, error) {
	if diags == nil {
		diags = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // diff lines carry '<' and '>' verbatim
	if err := enc.Encode(diags); err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDiagnostics(data string) ([]string, error) {
	diags := []string{}
	if data == "" {
		return diags, nil
	}
	if err := json.Unmarshal([]byte(data), &diags); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return diags, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
