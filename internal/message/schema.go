// Package message decodes test payloads into the canonical test messages and
// renders them in a canonical text form used for diffing.
//
// Message definitions are not compiled in. They come from a binary
// FileDescriptorSet, as written by
//
//	protoc --include_imports -o conformance.binpb test_messages_proto3.proto test_messages_proto2.proto
//
// and every message is handled through dynamicpb.
package message

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	// Well-known types a test schema may import without carrying them.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/thesayyn/conform/internal/conformance"
)

// The two canonical message types. Every case targets one of them.
const (
	Proto3Type = "protobuf_test_messages.proto3.TestAllTypesProto3"
	Proto2Type = "protobuf_test_messages.proto2.TestAllTypesProto2"
)

// ErrUnknownMessageType is returned by Decode for names other than the
// canonical types.
var ErrUnknownMessageType = errors.New("unknown message type")

// Schema holds the descriptors of the canonical messages.
type Schema struct {
	files    *protoregistry.Files
	types    *protoregistry.Types
	resolver *typeResolver
	messages map[string]protoreflect.MessageDescriptor
}

// LoadSchema reads a binary FileDescriptorSet from path.
func LoadSchema(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	fds := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(b, fds); err != nil {
		return nil, fmt.Errorf("failed to decode schema %s: %w", path, err)
	}
	return NewSchema(fds)
}

// NewSchema builds a Schema from a FileDescriptorSet. Files must appear after
// their dependencies, as protoc writes them. Imports missing from the set are
// resolved against the linked well-known types.
func NewSchema(fds *descriptorpb.FileDescriptorSet) (*Schema, error) {
	s := &Schema{
		files:    &protoregistry.Files{},
		types:    &protoregistry.Types{},
		messages: make(map[string]protoreflect.MessageDescriptor, 2),
	}
	s.resolver = &typeResolver{local: s.types}

	for _, fdp := range fds.GetFile() {
		fd, err := protodesc.NewFile(fdp, fileResolver{local: s.files})
		if err != nil {
			return nil, fmt.Errorf("schema file %s: %w", fdp.GetName(), err)
		}
		if err := s.files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("schema file %s: %w", fdp.GetName(), err)
		}
		if err := registerTypes(s.types, fd.Messages(), fd.Enums(), fd.Extensions()); err != nil {
			return nil, fmt.Errorf("schema file %s: %w", fdp.GetName(), err)
		}
	}

	var missing []string
	for _, name := range []string{Proto3Type, Proto2Type} {
		d, err := s.files.FindDescriptorByName(protoreflect.FullName(name))
		if err != nil {
			missing = append(missing, name)
			continue
		}
		md, ok := d.(protoreflect.MessageDescriptor)
		if !ok {
			return nil, fmt.Errorf("%s is not a message", name)
		}
		s.messages[name] = md
	}
	if len(s.messages) == 0 {
		return nil, fmt.Errorf("schema defines none of the canonical messages %v", missing)
	}
	return s, nil
}

// Has reports whether the schema defines the canonical type name.
func (s *Schema) Has(typeName string) bool {
	_, ok := s.messages[typeName]
	return ok
}

// Decode parses payload as the named canonical message. Only binary and JSON
// payloads can be decoded.
func (s *Schema) Decode(typeName string, format conformance.WireFormat, payload []byte) (*Message, error) {
	md, ok := s.messages[typeName]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownMessageType, typeName)
	}

	msg := dynamicpb.NewMessage(md)
	switch format {
	case conformance.WireFormatProtobuf:
		opts := proto.UnmarshalOptions{Resolver: s.resolver}
		if err := opts.Unmarshal(payload, msg); err != nil {
			return nil, fmt.Errorf("failed to parse the message from protobuf payload: %w", err)
		}
	case conformance.WireFormatJSON:
		opts := protojson.UnmarshalOptions{Resolver: s.resolver}
		if err := opts.Unmarshal(payload, msg); err != nil {
			return nil, fmt.Errorf("failed to parse the message from json payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot decode %s payloads", format)
	}
	return &Message{msg: msg, resolver: s.resolver}, nil
}

// Message is a decoded canonical message.
type Message struct {
	msg      *dynamicpb.Message
	resolver *typeResolver
}

// Text renders the canonical text form: multiline text format with two-space
// indentation, unknown fields included. The rendering is stable within one
// process, which is all diffing needs.
func (m *Message) Text() string {
	opts := prototext.MarshalOptions{
		Multiline:   true,
		Indent:      "  ",
		EmitUnknown: true,
		Resolver:    m.resolver,
	}
	return opts.Format(m.msg)
}

// Proto exposes the underlying message.
func (m *Message) Proto() proto.Message {
	return m.msg
}

func registerTypes(types *protoregistry.Types, msgs protoreflect.MessageDescriptors, enums protoreflect.EnumDescriptors, exts protoreflect.ExtensionDescriptors) error {
	for i := 0; i < enums.Len(); i++ {
		if err := types.RegisterEnum(dynamicpb.NewEnumType(enums.Get(i))); err != nil {
			return err
		}
	}
	for i := 0; i < exts.Len(); i++ {
		if err := types.RegisterExtension(dynamicpb.NewExtensionType(exts.Get(i))); err != nil {
			return err
		}
	}
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		if err := types.RegisterMessage(dynamicpb.NewMessageType(md)); err != nil {
			return err
		}
		if err := registerTypes(types, md.Messages(), md.Enums(), md.Extensions()); err != nil {
			return err
		}
	}
	return nil
}

// fileResolver looks up imports in the loaded set first, then in the files
// linked into the binary.
type fileResolver struct {
	local *protoregistry.Files
}

func (r fileResolver) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	if fd, err := r.local.FindFileByPath(path); err == nil {
		return fd, nil
	}
	return protoregistry.GlobalFiles.FindFileByPath(path)
}

func (r fileResolver) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	if d, err := r.local.FindDescriptorByName(name); err == nil {
		return d, nil
	}
	return protoregistry.GlobalFiles.FindDescriptorByName(name)
}

// typeResolver resolves Any payloads and extensions with the same fallback.
type typeResolver struct {
	local *protoregistry.Types
}

func (r *typeResolver) FindMessageByName(name protoreflect.FullName) (protoreflect.MessageType, error) {
	if mt, err := r.local.FindMessageByName(name); err == nil {
		return mt, nil
	}
	return protoregistry.GlobalTypes.FindMessageByName(name)
}

func (r *typeResolver) FindMessageByURL(url string) (protoreflect.MessageType, error) {
	if mt, err := r.local.FindMessageByURL(url); err == nil {
		return mt, nil
	}
	return protoregistry.GlobalTypes.FindMessageByURL(url)
}

func (r *typeResolver) FindExtensionByName(name protoreflect.FullName) (protoreflect.ExtensionType, error) {
	if xt, err := r.local.FindExtensionByName(name); err == nil {
		return xt, nil
	}
	return protoregistry.GlobalTypes.FindExtensionByName(name)
}

func (r *typeResolver) FindExtensionByNumber(message protoreflect.FullName, field protoreflect.FieldNumber) (protoreflect.ExtensionType, error) {
	if xt, err := r.local.FindExtensionByNumber(message, field); err == nil {
		return xt, nil
	}
	return protoregistry.GlobalTypes.FindExtensionByNumber(message, field)
}
