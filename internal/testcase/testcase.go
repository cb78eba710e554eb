// Package testcase models conformance cases and loads them from suite files.
package testcase

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Level classifies a case. Required cases must always pass; Recommended
// failures may be downgraded by the run policy.
type Level int

const (
	Required Level = iota
	Recommended
)

func (l Level) String() string {
	switch l {
	case Required:
		return "Required"
	case Recommended:
		return "Recommended"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "required":
		return Required, nil
	case "recommended":
		return Recommended, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// levelFromName infers the level from the conventional name prefix.
func levelFromName(name string) (Level, bool) {
	switch {
	case strings.HasPrefix(name, "Required."):
		return Required, true
	case strings.HasPrefix(name, "Recommended."):
		return Recommended, true
	}
	return 0, false
}

// AssertionMode selects how a response is judged. The variants are
// Equivalence, ExpectParseError, ExpectSerializeError and ValidateJSON.
type AssertionMode interface {
	isAssertionMode()
}

// Equivalence requires the response to decode to the same message as
// Expected (binary wire format).
type Equivalence struct {
	Expected []byte

	// RequireSameWire asks for a byte-identical protobuf encoding. It is only
	// enforced when the harness runs with strict wire checking.
	RequireSameWire bool
}

// ExpectParseError requires the IUT to reject the input.
type ExpectParseError struct{}

// ExpectSerializeError requires the IUT to fail while encoding the output.
type ExpectSerializeError struct{}

// ValidateJSON checks the JSON output with the validator registered under
// the case name.
type ValidateJSON struct{}

func (Equivalence) isAssertionMode()          {}
func (ExpectParseError) isAssertionMode()     {}
func (ExpectSerializeError) isAssertionMode() {}
func (ValidateJSON) isAssertionMode()         {}

// TestCase is one immutable conformance case.
type TestCase struct {
	Name        string
	Level       Level
	Syntax      string
	MessageType string

	// Payload is the encoded request envelope sent to the IUT verbatim.
	Payload []byte

	// RequestErr is set when a raw request envelope does not decode. Such a
	// case is never sent and always fails.
	RequestErr error

	Mode AssertionMode
}

func (c *TestCase) IsRequired() bool {
	return c.Level == Required
}

func (c *TestCase) IsRecommended() bool {
	return c.Level == Recommended
}

// String renders the case context printed after a failing case.
func (c *TestCase) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "syntax: %s\n", c.Syntax)
	fmt.Fprintf(&b, "level: %s\n", c.Level)
	fmt.Fprintf(&b, "message_type: %s\n", c.MessageType)
	fmt.Fprintf(&b, "payload: %s", base64.StdEncoding.EncodeToString(c.Payload))
	return b.String()
}

// syntaxFromMessageType derives "proto2"/"proto3" from the canonical names.
func syntaxFromMessageType(messageType string) string {
	switch {
	case strings.Contains(messageType, ".proto3."):
		return "proto3"
	case strings.Contains(messageType, ".proto2."):
		return "proto2"
	}
	return ""
}
