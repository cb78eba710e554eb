package conformance

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrNoResult is returned when a response envelope carries no result field.
var ErrNoResult = errors.New("response was not set")

// Response is the decoded result of one exchange. The set of variants is
// closed; consumers switch over the concrete types and treat anything else
// as an error.
type Response interface {
	isResponse()
}

type (
	// ProtobufPayload is the message re-encoded in binary wire format.
	ProtobufPayload []byte
	// JSONPayload is the message re-encoded as JSON.
	JSONPayload string
	// TextPayload is the message re-encoded in text format.
	TextPayload string
	// JspbPayload is the message re-encoded as JSPB.
	JspbPayload string
	// ParseError reports that the IUT rejected the input.
	ParseError string
	// RuntimeError reports a failure unrelated to the input.
	RuntimeError string
	// SerializeError reports that the IUT could not encode the output.
	SerializeError string
	// TimeoutError reports that the IUT gave up on the request.
	TimeoutError string
	// Skipped reports that the IUT does not support the test.
	Skipped string
)

func (ProtobufPayload) isResponse() {}
func (JSONPayload) isResponse()     {}
func (TextPayload) isResponse()     {}
func (JspbPayload) isResponse()     {}
func (ParseError) isResponse()      {}
func (RuntimeError) isResponse()    {}
func (SerializeError) isResponse()  {}
func (TimeoutError) isResponse()    {}
func (Skipped) isResponse()         {}

const (
	resParseError      protowire.Number = 1
	resRuntimeError    protowire.Number = 2
	resProtobufPayload protowire.Number = 3
	resJSONPayload     protowire.Number = 4
	resSkipped         protowire.Number = 5
	resSerializeError  protowire.Number = 6
	resJspbPayload     protowire.Number = 7
	resTextPayload     protowire.Number = 8
	resTimeoutError    protowire.Number = 9
)

// UnmarshalResponse decodes a response envelope. When several result fields
// are present the last one wins, as with any protobuf oneof.
func UnmarshalResponse(b []byte) (Response, error) {
	var res Response
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || num < resParseError || num > resTimeoutError {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case resParseError:
			res = ParseError(v)
		case resRuntimeError:
			res = RuntimeError(v)
		case resProtobufPayload:
			res = ProtobufPayload(append([]byte{}, v...))
		case resJSONPayload:
			res = JSONPayload(v)
		case resSkipped:
			res = Skipped(v)
		case resSerializeError:
			res = SerializeError(v)
		case resJspbPayload:
			res = JspbPayload(v)
		case resTextPayload:
			res = TextPayload(v)
		case resTimeoutError:
			res = TimeoutError(v)
		}
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res == nil {
		return nil, ErrNoResult
	}
	return res, nil
}

// MarshalResponse encodes a response envelope.
func MarshalResponse(res Response) ([]byte, error) {
	var (
		num protowire.Number
		v   []byte
	)
	switch r := res.(type) {
	case ParseError:
		num, v = resParseError, []byte(r)
	case RuntimeError:
		num, v = resRuntimeError, []byte(r)
	case ProtobufPayload:
		num, v = resProtobufPayload, []byte(r)
	case JSONPayload:
		num, v = resJSONPayload, []byte(r)
	case Skipped:
		num, v = resSkipped, []byte(r)
	case SerializeError:
		num, v = resSerializeError, []byte(r)
	case JspbPayload:
		num, v = resJspbPayload, []byte(r)
	case TextPayload:
		num, v = resTextPayload, []byte(r)
	case TimeoutError:
		num, v = resTimeoutError, []byte(r)
	default:
		return nil, fmt.Errorf("unexpected response kind %T", res)
	}
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, v), nil
}

// IsError reports whether the response is one of the four error kinds.
func IsError(res Response) bool {
	switch res.(type) {
	case ParseError, RuntimeError, SerializeError, TimeoutError:
		return true
	}
	return false
}

// Describe renders a one-line description of the response. Payloads are
// redacted to their size.
func Describe(res Response) string {
	switch r := res.(type) {
	case ParseError:
		return fmt.Sprintf("parse error: %s", string(r))
	case RuntimeError:
		return fmt.Sprintf("runtime error: %s", string(r))
	case SerializeError:
		return fmt.Sprintf("serialize error: %s", string(r))
	case TimeoutError:
		return fmt.Sprintf("timeout error: %s", string(r))
	case Skipped:
		return fmt.Sprintf("skipped: %s", string(r))
	case ProtobufPayload:
		return fmt.Sprintf("protobuf payload: [redacted payload] %d bytes", len(r))
	case JSONPayload:
		return fmt.Sprintf("json payload: [redacted payload] %d bytes", len(r))
	case JspbPayload:
		return fmt.Sprintf("jspb payload: [redacted payload] %d bytes", len(r))
	case TextPayload:
		return fmt.Sprintf("text payload: [redacted payload] %d bytes", len(r))
	}
	return fmt.Sprintf("unexpected response kind %T", res)
}
