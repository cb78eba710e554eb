package testcase

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/thesayyn/conform/internal/conformance"
)

// Assertion kinds accepted in suite files.
const (
	KindEquivalence    = "equivalence"
	KindParseError     = "parse_error"
	KindSerializeError = "serialize_error"
	KindJSONValidator  = "json_validator"
)

// suiteFile is the YAML layout of a suite:
//
//	cases:
//	  - name: Required.Proto3.ProtobufInput.ValidDataScalar.INT32.ProtobufOutput
//	    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
//	    input: { protobuf: CAE= }
//	    assert: { kind: equivalence, expected: CAE= }
type suiteFile struct {
	Cases []caseEntry `yaml:"cases"`
}

type caseEntry struct {
	Name        string `yaml:"name"`
	Level       string `yaml:"level,omitempty"`
	Syntax      string `yaml:"syntax,omitempty"`
	MessageType string `yaml:"message_type,omitempty"`

	// Request is a base64 encoded request envelope. Mutually exclusive with Input.
	Request string      `yaml:"request,omitempty"`
	Input   *inputEntry `yaml:"input,omitempty"`

	OutputFormat string `yaml:"output_format,omitempty"`
	TestCategory string `yaml:"test_category,omitempty"`

	Assert assertEntry `yaml:"assert"`
}

type inputEntry struct {
	Protobuf *string `yaml:"protobuf,omitempty"` // base64
	JSON     *string `yaml:"json,omitempty"`
}

type assertEntry struct {
	Kind                  string  `yaml:"kind"`
	Expected              *string `yaml:"expected,omitempty"` // base64, may be empty
	RequireSameWireFormat bool    `yaml:"require_same_wire_format,omitempty"`
}

// LoadError reports a suite entry that could not be turned into a case.
type LoadError struct {
	Index int
	Name  string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cases[%d] (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("cases[%d]: %v", e.Index, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadSuite reads a suite file and returns its cases in file order.
func LoadSuite(path string) ([]*TestCase, error) {
	rc, err := OpenSuite(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data)
}

// OpenSuite opens a suite file, decompressing .zst and .lz4 files.
func OpenSuite(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open suite file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd suite: %w", err)
		}
		return &decompressor{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	case ".lz4":
		return &decompressor{Reader: lz4.NewReader(f), close: f.Close}, nil
	}
	return f, nil
}

type decompressor struct {
	io.Reader
	close func() error
}

func (d *decompressor) Close() error {
	return d.close()
}

// ParseSuite decodes suite YAML. Unknown keys are rejected.
func ParseSuite(data []byte) ([]*TestCase, error) {
	var suite suiteFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		if errors.Is(err, io.EOF) {
			return []*TestCase{}, nil
		}
		return nil, fmt.Errorf("failed to parse suite YAML: %w", err)
	}

	cases := make([]*TestCase, 0, len(suite.Cases))
	seen := make(map[string]int, len(suite.Cases))
	for i, entry := range suite.Cases {
		tc, err := buildCase(entry)
		if err != nil {
			return nil, &LoadError{Index: i, Name: entry.Name, Err: err}
		}
		if prev, dup := seen[tc.Name]; dup {
			return nil, &LoadError{Index: i, Name: tc.Name, Err: fmt.Errorf("duplicate case name (first defined at cases[%d])", prev)}
		}
		seen[tc.Name] = i
		cases = append(cases, tc)
	}
	return cases, nil
}

func buildCase(e caseEntry) (*TestCase, error) {
	name := norm.NFC.String(strings.TrimSpace(e.Name))
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	tc := &TestCase{Name: name}

	if e.Level != "" {
		level, err := ParseLevel(e.Level)
		if err != nil {
			return nil, err
		}
		tc.Level = level
	} else {
		level, ok := levelFromName(name)
		if !ok {
			return nil, fmt.Errorf("level is required when the name has no Required./Recommended. prefix")
		}
		tc.Level = level
	}

	var err error
	switch {
	case e.Request != "" && e.Input != nil:
		return nil, fmt.Errorf("request and input are mutually exclusive")
	case e.Request != "":
		err = fromRawRequest(tc, e)
	case e.Input != nil:
		err = fromInput(tc, e)
	default:
		return nil, fmt.Errorf("one of request or input is required")
	}
	if err != nil {
		return nil, err
	}

	tc.Syntax = e.Syntax
	if tc.Syntax == "" {
		tc.Syntax = syntaxFromMessageType(tc.MessageType)
	}

	tc.Mode, err = buildMode(e.Assert)
	if err != nil {
		return nil, fmt.Errorf("assert: %w", err)
	}
	return tc, nil
}

func fromRawRequest(tc *TestCase, e caseEntry) error {
	if e.OutputFormat != "" || e.TestCategory != "" {
		return fmt.Errorf("output_format and test_category only apply to structured input")
	}
	payload, err := base64.StdEncoding.DecodeString(e.Request)
	if err != nil {
		return fmt.Errorf("request: invalid base64: %w", err)
	}
	tc.Payload = payload

	req, err := conformance.UnmarshalRequest(payload)
	if err != nil {
		tc.RequestErr = fmt.Errorf("malformed request envelope: %w", err)
		tc.MessageType = e.MessageType
		return nil
	}

	switch {
	case e.MessageType != "" && req.MessageType != "" && e.MessageType != req.MessageType:
		return fmt.Errorf("message_type %q does not match request message type %q", e.MessageType, req.MessageType)
	case req.MessageType != "":
		tc.MessageType = req.MessageType
	case e.MessageType != "":
		tc.MessageType = e.MessageType
	default:
		return fmt.Errorf("message_type is required")
	}
	return nil
}

func fromInput(tc *TestCase, e caseEntry) error {
	if e.MessageType == "" {
		return fmt.Errorf("message_type is required")
	}

	req := &conformance.Request{MessageType: e.MessageType}
	switch {
	case e.Input.Protobuf != nil && e.Input.JSON != nil:
		return fmt.Errorf("input: protobuf and json are mutually exclusive")
	case e.Input.Protobuf != nil:
		b, err := base64.StdEncoding.DecodeString(*e.Input.Protobuf)
		if err != nil {
			return fmt.Errorf("input.protobuf: invalid base64: %w", err)
		}
		req.PayloadFormat = conformance.WireFormatProtobuf
		req.Payload = b
		req.TestCategory = conformance.CategoryBinary
	case e.Input.JSON != nil:
		req.PayloadFormat = conformance.WireFormatJSON
		req.Payload = []byte(*e.Input.JSON)
		req.TestCategory = conformance.CategoryJSON
	default:
		return fmt.Errorf("input: one of protobuf or json is required")
	}

	req.RequestedOutputFormat = req.PayloadFormat
	if e.OutputFormat != "" {
		f, err := conformance.ParseWireFormat(e.OutputFormat)
		if err != nil {
			return fmt.Errorf("output_format: %w", err)
		}
		req.RequestedOutputFormat = f
	}
	if e.TestCategory != "" {
		c, err := conformance.ParseTestCategory(e.TestCategory)
		if err != nil {
			return fmt.Errorf("test_category: %w", err)
		}
		req.TestCategory = c
	}

	payload, err := req.Marshal()
	if err != nil {
		return err
	}
	tc.MessageType = e.MessageType
	tc.Payload = payload
	return nil
}

func buildMode(a assertEntry) (AssertionMode, error) {
	if a.Kind != KindEquivalence && (a.Expected != nil || a.RequireSameWireFormat) {
		return nil, fmt.Errorf("expected and require_same_wire_format only apply to %s", KindEquivalence)
	}

	switch a.Kind {
	case KindEquivalence:
		if a.Expected == nil {
			return nil, fmt.Errorf("expected is required for %s", KindEquivalence)
		}
		b, err := base64.StdEncoding.DecodeString(*a.Expected)
		if err != nil {
			return nil, fmt.Errorf("expected: invalid base64: %w", err)
		}
		return Equivalence{Expected: b, RequireSameWire: a.RequireSameWireFormat}, nil
	case KindParseError:
		return ExpectParseError{}, nil
	case KindSerializeError:
		return ExpectSerializeError{}, nil
	case KindJSONValidator:
		return ValidateJSON{}, nil
	case "":
		return nil, fmt.Errorf("kind is required")
	}
	return nil, fmt.Errorf("unknown assertion kind %q", a.Kind)
}

// Filter keeps the cases whose name matches the glob pattern. "*" matches
// across dots and "{a,b}" selects alternatives. An empty pattern keeps every
// case.
func Filter(cases []*TestCase, pattern string) ([]*TestCase, error) {
	if pattern == "" {
		return cases, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter pattern: %w", err)
	}

	var kept []*TestCase
	for _, tc := range cases {
		if g.Match(tc.Name) {
			kept = append(kept, tc)
		}
	}
	return kept, nil
}
