package report

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares a report stream against
// testdata/golden/{name}.golden in the calling package.
//
// To regenerate golden files, run the tests with -update.
func AssertGolden(t *testing.T, name string, stream []byte) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, stream)
}
