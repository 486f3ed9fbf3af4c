package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/libcheck/internal/harness"
	"github.com/roach88/libcheck/internal/isolate"
	"github.com/roach88/libcheck/internal/status"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport creates a report with one passing, one crashing and one
// skipped test, started at the given time.
func createTestReport(t *testing.T, id, suite string, started time.Time) *harness.Report {
	t.Helper()
	r := &harness.Report{
		RunID:      id,
		Suite:      suite,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Results: []harness.TestResult{
			{
				Name:     "strverscmp",
				Path:     "/build/strverscmp",
				Outcome:  isolate.OutcomeExited,
				Pass:     true,
				Reason:   "exited with status 0",
				Duration: 12 * time.Millisecond,
			},
			{
				Name:     "fdopen",
				Path:     "/build/fdopen",
				Outcome:  isolate.OutcomeSignaled,
				Signal:   "SIGABRT",
				Reason:   "terminated by unexpected SIGABRT",
				Duration: 40 * time.Millisecond,
				Output:   "fdopen: assertion failed\n",
			},
			{
				Name:    "mq_open",
				Path:    "/build/mq_open",
				Skipped: true,
				Reason:  "skipped: no mqueue",
			},
		},
		Passed:  1,
		Failed:  1,
		Skipped: 1,
		Failures: []status.Failure{
			{Seq: 1, Kind: status.KindAssertion, Message: "isolate: fdopen: terminated by unexpected SIGABRT"},
		},
		ExitCode: 1,
	}
	digest, err := r.ComputeDigest()
	if err != nil {
		t.Fatalf("ComputeDigest() failed: %v", err)
	}
	r.Digest = digest
	return r
}
