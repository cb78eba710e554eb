package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Canonical message names used throughout the tests.
const (
	Proto3Type = "protobuf_test_messages.proto3.TestAllTypesProto3"
	Proto2Type = "protobuf_test_messages.proto2.TestAllTypesProto2"
)

// Field numbers carried by the reduced test messages. They match the
// numbers of the full upstream messages.
const (
	FieldOptionalInt32    = 1
	FieldOptionalInt64    = 2
	FieldOptionalString   = 14
	FieldOptionalEnum     = 21
	FieldRepeatedInt32    = 31
	FieldOptionalDuration = 101
)

// ConformanceSchema returns a FileDescriptorSet with reduced versions of the
// two canonical test messages. The proto3 file imports
// google/protobuf/duration.proto without carrying it, so loaders must resolve
// well-known imports on their own.
func ConformanceSchema() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{proto3File(), proto2File()},
	}
}

// WriteSchema writes ConformanceSchema to dir and returns the file path.
func WriteSchema(t testing.TB, dir string) string {
	t.Helper()

	b, err := proto.Marshal(ConformanceSchema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	path := filepath.Join(dir, "conformance.binpb")
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return path
}

func proto3File() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("google/protobuf/test_messages_proto3.proto"),
		Package:    proto.String("protobuf_test_messages.proto3"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/duration.proto"},
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("TestAllTypesProto3"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("optional_int32", "optionalInt32", FieldOptionalInt32, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("optional_int64", "optionalInt64", FieldOptionalInt64, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalar("optional_string", "optionalString", FieldOptionalString, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				{
					Name:     proto.String("optional_nested_enum"),
					JsonName: proto.String("optionalNestedEnum"),
					Number:   proto.Int32(FieldOptionalEnum),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(),
					TypeName: proto.String(".protobuf_test_messages.proto3.TestAllTypesProto3.NestedEnum"),
				},
				{
					Name:     proto.String("repeated_int32"),
					JsonName: proto.String("repeatedInt32"),
					Number:   proto.Int32(FieldRepeatedInt32),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
				},
				{
					Name:     proto.String("optional_duration"),
					JsonName: proto.String("optionalDuration"),
					Number:   proto.Int32(FieldOptionalDuration),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String(".google.protobuf.Duration"),
				},
			},
			EnumType: []*descriptorpb.EnumDescriptorProto{{
				Name: proto.String("NestedEnum"),
				Value: []*descriptorpb.EnumValueDescriptorProto{
					{Name: proto.String("FOO"), Number: proto.Int32(0)},
					{Name: proto.String("BAR"), Number: proto.Int32(1)},
					{Name: proto.String("BAZ"), Number: proto.Int32(2)},
					{Name: proto.String("NEG"), Number: proto.Int32(-1)},
				},
			}},
		}},
	}
}

func proto2File() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("google/protobuf/test_messages_proto2.proto"),
		Package: proto.String("protobuf_test_messages.proto2"),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("TestAllTypesProto2"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("optional_int32", "optionalInt32", FieldOptionalInt32, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("optional_int64", "optionalInt64", FieldOptionalInt64, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalar("optional_string", "optionalString", FieldOptionalString, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			},
		}},
	}
}

func scalar(name, jsonName string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}
