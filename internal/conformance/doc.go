// Package conformance implements the envelopes exchanged with an
// implementation under test (IUT).
//
// Every exchange carries one Request and yields one Response. Both are
// protobuf messages whose layout follows the upstream conformance.proto;
// they are encoded and decoded directly with protowire so the harness does
// not depend on generated code for them.
//
// # Request
//
//	protobuf_payload        = 1  bytes   (oneof payload)
//	json_payload            = 2  string  (oneof payload)
//	requested_output_format = 3  enum WireFormat
//	message_type            = 4  string
//	test_category           = 5  enum TestCategory
//	jspb_payload            = 7  string  (oneof payload)
//	text_payload            = 8  string  (oneof payload)
//	print_unknown_fields    = 9  bool
//
// # Response
//
// Exactly one of the following result fields is set:
//
//	parse_error      = 1
//	runtime_error    = 2
//	protobuf_payload = 3
//	json_payload     = 4
//	skipped          = 5
//	serialize_error  = 6
//	jspb_payload     = 7
//	text_payload     = 8
//	timeout_error    = 9
package conformance
