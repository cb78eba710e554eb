// Package harness runs conformance cases against an implementation under
// test (IUT) and judges its responses.
//
// # Assertion
//
// Asserter.Assert decodes the response envelope and applies the case's
// assertion mode:
//
//   - equivalence: the response payload and the expected bytes are decoded
//     into the declared message type, rendered as canonical text and
//     diffed. Error responses fail; text and JSPB output is not supported.
//   - parse_error / serialize_error: the response must be that error kind.
//   - json_validator: the JSON output must satisfy the predicate registered
//     under the case name. Unregistered names fail with
//     "unimplemented validator".
//
// A skipped response overrides every mode.
//
// # Run loop
//
// Harness.Run is strictly sequential. The IUT shares a single framed pipe
// with the harness, so there is never more than one request in flight. The
// loop emits the plan, spawns the IUT, reports each case, kills the IUT
// exactly once and emits the summary, even when the run ends early.
//
// Failures of Recommended cases are reported but do not count toward the
// verdict unless EnforceRecommended is set.
//
// # Usage
//
//	h := harness.New(harness.Config{
//	    Channel:  runner.New(runner.Config{Program: "./iut"}),
//	    Asserter: harness.NewAsserter(schema, validator.Default(), false),
//	    Reporter: report.NewTAP(os.Stdout),
//	})
//	st, err := h.Run(ctx, cases)
package harness
