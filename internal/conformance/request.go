package conformance

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// WireFormat identifies a serialization of a test message.
type WireFormat int32

const (
	WireFormatUnspecified WireFormat = 0
	WireFormatProtobuf    WireFormat = 1
	WireFormatJSON        WireFormat = 2
	WireFormatJSPB        WireFormat = 3
	WireFormatTextFormat  WireFormat = 4
)

var wireFormatNames = map[WireFormat]string{
	WireFormatUnspecified: "unspecified",
	WireFormatProtobuf:    "protobuf",
	WireFormatJSON:        "json",
	WireFormatJSPB:        "jspb",
	WireFormatTextFormat:  "text_format",
}

func (f WireFormat) String() string {
	if name, ok := wireFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("WireFormat(%d)", int32(f))
}

// ParseWireFormat maps a lower-case format name to its WireFormat.
func ParseWireFormat(s string) (WireFormat, error) {
	for f, name := range wireFormatNames {
		if name == strings.ToLower(s) {
			return f, nil
		}
	}
	return WireFormatUnspecified, fmt.Errorf("unknown wire format %q", s)
}

// TestCategory tells the IUT which family of tests a request belongs to.
type TestCategory int32

const (
	CategoryUnspecified       TestCategory = 0
	CategoryBinary            TestCategory = 1
	CategoryJSON              TestCategory = 2
	CategoryJSONIgnoreUnknown TestCategory = 3
	CategoryJSPB              TestCategory = 4
	CategoryTextFormat        TestCategory = 5
)

var categoryNames = map[TestCategory]string{
	CategoryUnspecified:       "unspecified",
	CategoryBinary:            "binary",
	CategoryJSON:              "json",
	CategoryJSONIgnoreUnknown: "json_ignore_unknown",
	CategoryJSPB:              "jspb",
	CategoryTextFormat:        "text_format",
}

func (c TestCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("TestCategory(%d)", int32(c))
}

// ParseTestCategory maps a lower-case category name to its TestCategory.
func ParseTestCategory(s string) (TestCategory, error) {
	for c, name := range categoryNames {
		if name == strings.ToLower(s) {
			return c, nil
		}
	}
	return CategoryUnspecified, fmt.Errorf("unknown test category %q", s)
}

// Request is one conformance request sent to the IUT.
type Request struct {
	// MessageType is the fully qualified name of the message to decode.
	MessageType string

	// PayloadFormat selects the payload field; Payload holds its content.
	PayloadFormat WireFormat
	Payload       []byte

	RequestedOutputFormat WireFormat
	TestCategory          TestCategory
	PrintUnknownFields    bool
}

const (
	reqProtobufPayload       protowire.Number = 1
	reqJSONPayload           protowire.Number = 2
	reqRequestedOutputFormat protowire.Number = 3
	reqMessageType           protowire.Number = 4
	reqTestCategory          protowire.Number = 5
	reqJspbPayload           protowire.Number = 7
	reqTextPayload           protowire.Number = 8
	reqPrintUnknownFields    protowire.Number = 9
)

// Marshal encodes the request in protobuf wire format.
func (r *Request) Marshal() ([]byte, error) {
	var b []byte

	var field protowire.Number
	switch r.PayloadFormat {
	case WireFormatProtobuf:
		field = reqProtobufPayload
	case WireFormatJSON:
		field = reqJSONPayload
	case WireFormatJSPB:
		field = reqJspbPayload
	case WireFormatTextFormat:
		field = reqTextPayload
	default:
		return nil, fmt.Errorf("request payload format %s cannot be encoded", r.PayloadFormat)
	}
	b = protowire.AppendTag(b, field, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Payload)

	if r.RequestedOutputFormat != WireFormatUnspecified {
		b = protowire.AppendTag(b, reqRequestedOutputFormat, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.RequestedOutputFormat))
	}
	if r.MessageType != "" {
		b = protowire.AppendTag(b, reqMessageType, protowire.BytesType)
		b = protowire.AppendString(b, r.MessageType)
	}
	if r.TestCategory != CategoryUnspecified {
		b = protowire.AppendTag(b, reqTestCategory, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.TestCategory))
	}
	if r.PrintUnknownFields {
		b = protowire.AppendTag(b, reqPrintUnknownFields, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b, nil
}

// UnmarshalRequest decodes a request envelope. Unknown fields are skipped.
func UnmarshalRequest(b []byte) (*Request, error) {
	r := &Request{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case typ == protowire.BytesType && isPayloadField(num):
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			r.PayloadFormat = payloadFormat(num)
			r.Payload = append([]byte(nil), v...)
			return n, nil
		case num == reqMessageType && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.MessageType = v
			return n, nil
		case num == reqRequestedOutputFormat && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.RequestedOutputFormat = WireFormat(int32(v))
			return n, nil
		case num == reqTestCategory && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.TestCategory = TestCategory(int32(v))
			return n, nil
		case num == reqPrintUnknownFields && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.PrintUnknownFields = protowire.DecodeBool(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}

func isPayloadField(num protowire.Number) bool {
	return num == reqProtobufPayload || num == reqJSONPayload || num == reqJspbPayload || num == reqTextPayload
}

func payloadFormat(num protowire.Number) WireFormat {
	switch num {
	case reqProtobufPayload:
		return WireFormatProtobuf
	case reqJSONPayload:
		return WireFormatJSON
	case reqJspbPayload:
		return WireFormatJSPB
	case reqTextPayload:
		return WireFormatTextFormat
	}
	return WireFormatUnspecified
}

// walkFields iterates over the top-level fields of an encoded message. The
// callback consumes the field value and returns the number of bytes used, or
// a negative protowire error code.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
