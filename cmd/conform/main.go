// Command conform runs protobuf conformance suites against an
// implementation under test.
package main

import (
	"context"
	"os"

	"github.com/thesayyn/conform/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
