package harness

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/thesayyn/conform/internal/conformance"
	"github.com/thesayyn/conform/internal/differ"
	"github.com/thesayyn/conform/internal/message"
	"github.com/thesayyn/conform/internal/testcase"
	"github.com/thesayyn/conform/internal/validator"
)

// Fixed diagnostics.
const (
	MsgShouldFailParse     = "should have failed to parse but didn't."
	MsgShouldFailSerialize = "should have failed to serialize but didn't."
	MsgExpectedJSON        = "expected json payload"
	MsgWireDiffers         = "wire format differs from expected"
)

// ErrNoSchema is reported by equivalence cases when no schema was loaded.
var ErrNoSchema = errors.New("no message schema loaded; equivalence cases need --schema")

// Asserter turns a raw response into an Outcome for a case.
type Asserter struct {
	schema     *message.Schema
	validators *validator.Registry
	strictWire bool
}

// NewAsserter returns an Asserter. schema may be nil when the suite has no
// equivalence cases; validators defaults to validator.Default().
func NewAsserter(schema *message.Schema, validators *validator.Registry, strictWire bool) *Asserter {
	if validators == nil {
		validators = validator.Default()
	}
	return &Asserter{
		schema:     schema,
		validators: validators,
		strictWire: strictWire,
	}
}

// Assert never returns an error: anything that goes wrong while judging the
// response fails the case with the error text as its only diagnostic.
func (a *Asserter) Assert(tc *testcase.TestCase, raw []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(fmt.Sprintf("internal error: %v", r))
		}
	}()

	out, err := a.assert(tc, raw)
	if err != nil {
		return failed(err.Error())
	}
	return out
}

func (a *Asserter) assert(tc *testcase.TestCase, raw []byte) (Outcome, error) {
	res, err := conformance.UnmarshalResponse(raw)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if reason, ok := res.(conformance.Skipped); ok {
		return Outcome{Status: Skipped, SkipReason: string(reason)}, nil
	}

	switch mode := tc.Mode.(type) {
	case testcase.Equivalence:
		return a.assertEquivalence(tc, mode, res)
	case testcase.ExpectParseError:
		if _, ok := res.(conformance.ParseError); ok {
			return passed(), nil
		}
		return failed(conformance.Describe(res), MsgShouldFailParse), nil
	case testcase.ExpectSerializeError:
		if _, ok := res.(conformance.SerializeError); ok {
			return passed(), nil
		}
		return failed(conformance.Describe(res), MsgShouldFailSerialize), nil
	case testcase.ValidateJSON:
		return a.assertJSON(tc, res)
	}
	return Outcome{}, fmt.Errorf("unhandled assertion mode %T", tc.Mode)
}

func (a *Asserter) assertEquivalence(tc *testcase.TestCase, mode testcase.Equivalence, res conformance.Response) (Outcome, error) {
	var (
		format  conformance.WireFormat
		payload []byte
	)
	switch r := res.(type) {
	case conformance.ParseError, conformance.RuntimeError, conformance.SerializeError, conformance.TimeoutError:
		return failed(conformance.Describe(res)), nil
	case conformance.ProtobufPayload:
		if a.strictWire && mode.RequireSameWire && !bytes.Equal(r, mode.Expected) {
			return failed(conformance.Describe(res), MsgWireDiffers), nil
		}
		format, payload = conformance.WireFormatProtobuf, r
	case conformance.JSONPayload:
		format, payload = conformance.WireFormatJSON, []byte(r)
	case conformance.TextPayload:
		return failed(conformance.Describe(res), "text format output is not supported"), nil
	case conformance.JspbPayload:
		return failed(conformance.Describe(res), "jspb output is not supported"), nil
	default:
		return Outcome{}, fmt.Errorf("unexpected response kind %T", res)
	}

	if a.schema == nil {
		return Outcome{}, ErrNoSchema
	}
	got, err := a.schema.Decode(tc.MessageType, format, payload)
	if err != nil {
		return Outcome{}, err
	}
	want, err := a.schema.Decode(tc.MessageType, conformance.WireFormatProtobuf, mode.Expected)
	if err != nil {
		return Outcome{}, fmt.Errorf("expected message: %w", err)
	}

	d := differ.Diff(got.Text(), want.Text())
	if d.Differs {
		return failed(d.Text), nil
	}
	return passed(), nil
}

func (a *Asserter) assertJSON(tc *testcase.TestCase, res conformance.Response) (Outcome, error) {
	doc, ok := res.(conformance.JSONPayload)
	if !ok || len(doc) == 0 {
		return failed(MsgExpectedJSON), nil
	}

	v, err := validator.Decode([]byte(doc))
	if err != nil {
		return Outcome{}, err
	}
	if err := a.validators.Lookup(tc.Name)(v); err != nil {
		return failed(err.Error()), nil
	}
	return passed(), nil
}
