package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/libcheck/internal/harness"
	"github.com/roach88/libcheck/internal/isolate"
)

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string    `json:"id"`
	Suite      string    `json:"suite"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	ExitCode   int       `json:"exit_code"`
	Digest     string    `json:"digest"`
}

// ListRuns returns the most recent runs first, at most limit of them.
// A non-empty suite restricts the list to that suite; limit <= 0 means all.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, suite string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, started_at, finished_at, passed, failed, skipped, exit_code, digest
		FROM runs
		WHERE ? = '' OR suite = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, suite, suite, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Suite, &started, &finished,
			&r.Passed, &r.Failed, &r.Skipped, &r.ExitCode, &r.Digest); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = fromUnixNano(started)
		r.FinishedAt = fromUnixNano(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the stored report for a run ID, results in run order.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (*harness.Report, error) {
	var (
		report            harness.Report
		started, finished int64
		failuresJSON      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, suite, started_at, finished_at, passed, failed, skipped, exit_code, digest, failures
		FROM runs
		WHERE id = ?
	`, id).Scan(&report.RunID, &report.Suite, &started, &finished,
		&report.Passed, &report.Failed, &report.Skipped, &report.ExitCode,
		&report.Digest, &failuresJSON)
	if err != nil {
		return nil, err
	}
	report.StartedAt = fromUnixNano(started)
	report.FinishedAt = fromUnixNano(finished)

	if report.Failures, err = unmarshalFailures(failuresJSON); err != nil {
		return nil, err
	}
	if report.Results, err = s.readResults(ctx, id); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) readResults(ctx context.Context, runID string) ([]harness.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, path, outcome, code, signal, pass, skipped, reason, duration_ns, output
		FROM results
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []harness.TestResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

func scanResult(rows *sql.Rows) (harness.TestResult, error) {
	var (
		r             harness.TestResult
		outcome       string
		pass, skipped int
		durationNS    int64
	)
	if err := rows.Scan(&r.Name, &r.Path, &outcome, &r.Code, &r.Signal,
		&pass, &skipped, &r.Reason, &durationNS, &r.Output); err != nil {
		return harness.TestResult{}, fmt.Errorf("scan result: %w", err)
	}
	r.Outcome = isolate.OutcomeKind(outcome)
	r.Pass = pass != 0
	r.Skipped = skipped != 0
	r.Duration = time.Duration(durationNS)
	return r, nil
}
