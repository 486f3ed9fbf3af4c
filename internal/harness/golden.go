package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/libcheck/internal/canonical"
)

// AssertGolden compares the deterministic snapshot of report against the
// golden file testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files hold canonical JSON, so they are byte-stable across
// platforms and map iteration order.
func AssertGolden(t *testing.T, name string, report *Report) error {
	t.Helper()

	data, err := canonical.Marshal(report.Snapshot())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
