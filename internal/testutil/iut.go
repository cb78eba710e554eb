package testutil

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/thesayyn/conform/internal/conformance"
)

// IUTEnv selects the fake IUT behaviour when a test binary re-executes
// itself as the program under test.
const IUTEnv = "CONFORM_TEST_IUT"

// IUTValueEnv is echoed back as a skip reason by the "env" mode.
const IUTValueEnv = "CONFORM_TEST_VALUE"

// Fake IUT modes.
const (
	// IUTEcho re-encodes valid input in its own format and rejects input
	// that is not well formed. Cross-format requests are skipped.
	IUTEcho = "echo"
	// IUTSkip skips every request.
	IUTSkip = "skip"
	// IUTEnvEcho skips every request with the value of IUTValueEnv.
	IUTEnvEcho = "env"
	// IUTStderr writes a line to stderr, then behaves like IUTEcho.
	IUTStderr = "stderr"
	// IUTGarbage answers with bytes that are not a response envelope.
	IUTGarbage = "garbage"
	// IUTExit reads one request and exits without answering.
	IUTExit = "exit"
	// IUTTruncate answers with a frame shorter than its length prefix.
	IUTTruncate = "truncate"
	// IUTHang reads one request and never answers. When IUTValueEnv is set,
	// it creates that file once the request has been read.
	IUTHang = "hang"
)

// StderrLine is what IUTStderr writes to stderr.
const StderrLine = "hello from the fake iut"

// MaybeRunIUT turns the current process into a fake IUT when IUTEnv is set.
// Call it first thing in TestMain.
func MaybeRunIUT() {
	mode := os.Getenv(IUTEnv)
	if mode == "" {
		return
	}
	os.Exit(runIUT(mode, os.Stdin, os.Stdout))
}

// IUTCommand returns the program and environment that re-execute the test
// binary as a fake IUT in mode.
func IUTCommand(mode string) (string, map[string]string) {
	return os.Args[0], map[string]string{IUTEnv: mode}
}

func runIUT(mode string, in io.Reader, out io.Writer) int {
	if mode == IUTStderr {
		fmt.Fprintln(os.Stderr, StderrLine)
	}

	for {
		payload, err := readFrame(in)
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "fake iut: %v\n", err)
			return 1
		}

		var res []byte
		switch mode {
		case IUTExit:
			return 0
		case IUTHang:
			if path := os.Getenv(IUTValueEnv); path != "" {
				os.WriteFile(path, nil, 0644)
			}
			time.Sleep(time.Hour)
			return 0
		case IUTGarbage:
			res = []byte{0xff, 0xff, 0xff}
		case IUTTruncate:
			var hdr [4]byte
			binary.LittleEndian.PutUint32(hdr[:], 100)
			out.Write(hdr[:])
			out.Write([]byte{1, 2, 3})
			return 0
		default:
			res, err = conformance.MarshalResponse(Respond(mode, payload))
			if err != nil {
				fmt.Fprintf(os.Stderr, "fake iut: %v\n", err)
				return 1
			}
		}

		if err := writeFrame(out, res); err != nil {
			fmt.Fprintf(os.Stderr, "fake iut: %v\n", err)
			return 1
		}
	}
}

// Respond computes the fake IUT's answer to one encoded request.
func Respond(mode string, payload []byte) conformance.Response {
	switch mode {
	case IUTSkip:
		return conformance.Skipped("not supported")
	case IUTEnvEcho:
		return conformance.Skipped(os.Getenv(IUTValueEnv))
	}

	req, err := conformance.UnmarshalRequest(payload)
	if err != nil {
		return conformance.RuntimeError(err.Error())
	}
	if req.MessageType != Proto3Type && req.MessageType != Proto2Type {
		return conformance.RuntimeError("unknown message type " + req.MessageType)
	}

	out := req.RequestedOutputFormat
	if out == conformance.WireFormatUnspecified {
		out = req.PayloadFormat
	}
	if out != req.PayloadFormat {
		return conformance.Skipped(fmt.Sprintf("cannot convert %s to %s", req.PayloadFormat, out))
	}

	switch req.PayloadFormat {
	case conformance.WireFormatProtobuf:
		if !wellFormed(req.Payload) {
			return conformance.ParseError("malformed protobuf payload")
		}
		return conformance.ProtobufPayload(req.Payload)
	case conformance.WireFormatJSON:
		if !json.Valid(req.Payload) {
			return conformance.ParseError("malformed json payload")
		}
		return conformance.JSONPayload(req.Payload)
	}
	return conformance.Skipped(fmt.Sprintf("%s input is not supported", req.PayloadFormat))
}

func wellFormed(b []byte) bool {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return false
		}
		b = b[n:]
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return false
		}
		b = b[n:]
	}
	return true
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
