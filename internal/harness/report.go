package harness

import (
	"time"

	"github.com/roach88/libcheck/internal/canonical"
	"github.com/roach88/libcheck/internal/isolate"
	"github.com/roach88/libcheck/internal/status"
)

// TestResult is the outcome of one test in a run.
type TestResult struct {
	Name string `json:"name"`
	Path string `json:"path"`

	// Outcome is how the process ended: exited, signaled, canceled or
	// not_run. Skipped tests leave it empty.
	Outcome isolate.OutcomeKind `json:"outcome,omitempty"`
	Code    int                 `json:"code"`
	Signal  string              `json:"signal,omitempty"`

	Pass     bool          `json:"pass"`
	Skipped  bool          `json:"skipped"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration_ns"`
	Output   string        `json:"output,omitempty"`

	spec TestSpec
}

// Report is the result of running a suite.
type Report struct {
	RunID      string       `json:"run_id"`
	Suite      string       `json:"suite"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []TestResult `json:"results"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`

	// Failures holds every message reported to the run's tracker,
	// including harness failures that belong to no single test.
	Failures []status.Failure `json:"failures,omitempty"`

	ExitCode int    `json:"exit_code"`
	Digest   string `json:"digest"`
}

// Duration is the wall time between start and finish.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Snapshot returns the deterministic part of the report as a canonical
// map. Run ID, timestamps, durations and captured output are left out, so
// two runs of the same suite against the same programs compare equal.
func (r *Report) Snapshot() map[string]any {
	results := make([]any, len(r.Results))
	for i, res := range r.Results {
		m := map[string]any{
			"name":    res.Name,
			"pass":    res.Pass,
			"skipped": res.Skipped,
			"reason":  res.Reason,
		}
		if res.Outcome != "" {
			m["outcome"] = string(res.Outcome)
		}
		switch res.Outcome {
		case isolate.OutcomeExited:
			m["code"] = res.Code
		case isolate.OutcomeSignaled:
			m["signal"] = res.Signal
		}
		results[i] = m
	}

	return map[string]any{
		"suite":     r.Suite,
		"results":   results,
		"passed":    r.Passed,
		"failed":    r.Failed,
		"skipped":   r.Skipped,
		"exit_code": r.ExitCode,
	}
}

// ComputeDigest hashes the canonical snapshot.
func (r *Report) ComputeDigest() (string, error) {
	return canonical.Digest(canonical.DomainReport, r.Snapshot())
}
