package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thesayyn/conform/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.MaybeRunIUT()
	os.Exit(m.Run())
}

// passingSuite passes against the echo IUT.
const passingSuite = `
cases:
  - name: Required.Proto3.ProtobufInput.ValidDataScalar.INT32.ProtobufOutput
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      protobuf: CJYB
    assert:
      kind: equivalence
      expected: CJYB
  - name: Required.Proto3.ProtobufInput.PrematureEofInPackedField.INT32
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      protobuf: CJY=
    assert:
      kind: parse_error
  - name: Required.Proto3.JsonInput.EnumFieldUnknownValue.Validator
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      json: '{"optionalNestedEnum": 123}'
    output_format: json
    assert:
      kind: json_validator
`

// failingSuite has one Required failure against the echo IUT.
const failingSuite = `
cases:
  - name: Required.Proto3.ProtobufInput.ValidDataScalar.INT32.ProtobufOutput
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      protobuf: CJYB
    assert:
      kind: equivalence
      expected: CJYB
  - name: Required.Proto3.ProtobufInput.RepeatedScalarSelectsLast.INT32.ProtobufOutput
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      protobuf: CAE=
    assert:
      kind: equivalence
      expected: CJYB
  - name: Required.Proto3.ProtobufInput.PrematureEofInPackedField.INT32
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      protobuf: CJY=
    assert:
      kind: parse_error
`

// recommendedSuite has one Recommended failure against the echo IUT.
const recommendedSuite = `
cases:
  - name: Required.Proto3.JsonInput.EnumFieldUnknownValue.Validator
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      json: '{"optionalNestedEnum": 123}'
    output_format: json
    assert:
      kind: json_validator
  - name: Recommended.Proto3.JsonInput.Int64FieldBeString.Validator
    message_type: protobuf_test_messages.proto3.TestAllTypesProto3
    input:
      json: '{"optionalInt64": 1}'
    output_format: json
    assert:
      kind: json_validator
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the CLI and returns the exit code, stdout and stderr.
func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return executeContext(context.Background(), args...)
}

func executeContext(ctx context.Context, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// iutArgs returns the run flags that start the test binary as a fake IUT.
func iutArgs(mode string) []string {
	program, env := testutil.IUTCommand(mode)
	args := []string{"--program", program}
	for k, v := range env {
		args = append(args, "--env", k+"="+v)
	}
	return args
}
