package message

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/thesayyn/conform/internal/conformance"
	"github.com/thesayyn/conform/internal/testutil"
)

func newTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(testutil.ConformanceSchema())
	require.NoError(t, err)
	return s
}

func int32Payload(v uint64) []byte {
	b := protowire.AppendTag(nil, testutil.FieldOptionalInt32, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func TestLoadSchema(t *testing.T) {
	path := testutil.WriteSchema(t, t.TempDir())

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.True(t, s.Has(Proto3Type))
	assert.True(t, s.Has(Proto2Type))
	assert.False(t, s.Has("protobuf_test_messages.editions.TestAllTypesEdition2023"))
}

func TestLoadSchema_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSchema(filepath.Join(dir, "missing.binpb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read schema")

	garbage := filepath.Join(dir, "garbage.binpb")
	require.NoError(t, os.WriteFile(garbage, []byte{0xff, 0xff}, 0644))
	_, err = LoadSchema(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode schema")
}

func TestNewSchema_WithoutCanonicalMessages(t *testing.T) {
	_, err := NewSchema(&descriptorpb.FileDescriptorSet{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the canonical messages")
}

func TestDecode_BinaryAndJSONAgree(t *testing.T) {
	s := newTestSchema(t)

	fromBinary, err := s.Decode(Proto3Type, conformance.WireFormatProtobuf, int32Payload(150))
	require.NoError(t, err)
	fromJSON, err := s.Decode(Proto3Type, conformance.WireFormatJSON, []byte(`{"optionalInt32": 150}`))
	require.NoError(t, err)

	assert.Equal(t, fromBinary.Text(), fromJSON.Text())
	assert.Contains(t, fromBinary.Text(), "optional_int32")
	assert.Contains(t, fromBinary.Text(), "150")
}

func TestDecode_WellKnownImport(t *testing.T) {
	s := newTestSchema(t)

	m, err := s.Decode(Proto3Type, conformance.WireFormatJSON, []byte(`{"optionalDuration": "1.5s"}`))
	require.NoError(t, err)
	assert.Contains(t, m.Text(), "optional_duration")
	assert.Contains(t, m.Text(), "500000000")
}

func TestDecode_Proto2(t *testing.T) {
	s := newTestSchema(t)

	m, err := s.Decode(Proto2Type, conformance.WireFormatProtobuf, int32Payload(1))
	require.NoError(t, err)
	assert.Contains(t, m.Text(), "optional_int32")
}

func TestDecode_EmptyPayload(t *testing.T) {
	s := newTestSchema(t)

	m, err := s.Decode(Proto3Type, conformance.WireFormatProtobuf, nil)
	require.NoError(t, err)
	assert.Empty(t, m.Text())
}

func TestDecode_UnknownFieldsAreRendered(t *testing.T) {
	s := newTestSchema(t)

	withUnknown := protowire.AppendTag(int32Payload(1), 9999, protowire.VarintType)
	withUnknown = protowire.AppendVarint(withUnknown, 7)

	plain, err := s.Decode(Proto3Type, conformance.WireFormatProtobuf, int32Payload(1))
	require.NoError(t, err)
	unknown, err := s.Decode(Proto3Type, conformance.WireFormatProtobuf, withUnknown)
	require.NoError(t, err)

	assert.NotEqual(t, plain.Text(), unknown.Text())
	assert.Contains(t, unknown.Text(), "9999")
}

func TestDecode_Errors(t *testing.T) {
	s := newTestSchema(t)

	_, err := s.Decode("pkg.Other", conformance.WireFormatProtobuf, nil)
	require.ErrorIs(t, err, ErrUnknownMessageType)
	assert.Contains(t, err.Error(), "pkg.Other")

	_, err = s.Decode(Proto3Type, conformance.WireFormatProtobuf, []byte{0x08})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protobuf payload")

	_, err = s.Decode(Proto3Type, conformance.WireFormatJSON, []byte(`{"noSuchField": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json payload")

	_, err = s.Decode(Proto3Type, conformance.WireFormatTextFormat, []byte(`optional_int32: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot decode text_format")
}

func TestText_IsStableAcrossDecodes(t *testing.T) {
	s := newTestSchema(t)

	var b []byte
	b = protowire.AppendTag(b, testutil.FieldRepeatedInt32, protowire.BytesType)
	b = protowire.AppendBytes(b, protowire.AppendVarint(protowire.AppendVarint(nil, 1), 2))
	b = protowire.AppendTag(b, testutil.FieldOptionalString, protowire.BytesType)
	b = protowire.AppendString(b, "hello")

	first, err := s.Decode(Proto3Type, conformance.WireFormatProtobuf, b)
	require.NoError(t, err)
	second, err := s.Decode(Proto3Type, conformance.WireFormatProtobuf, b)
	require.NoError(t, err)
	assert.Equal(t, first.Text(), second.Text())
	assert.NotNil(t, first.Proto())
}
