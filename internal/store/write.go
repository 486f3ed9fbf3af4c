package store

import (
	"context"
	"fmt"

	"github.com/roach88/libcheck/internal/harness"
)

// WriteRun stores a report and its per-test results in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: a run ID that is
// already stored is left untouched and its results are not rewritten.
func (s *Store) WriteRun(ctx context.Context, report *harness.Report) error {
	if report.RunID == "" {
		return fmt.Errorf("write run: run id is empty")
	}

	failuresJSON, err := marshalFailures(report.Failures)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, started_at, finished_at, passed, failed, skipped, exit_code, digest, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.RunID,
		report.Suite,
		toUnixNano(report.StartedAt),
		toUnixNano(report.FinishedAt),
		report.Passed,
		report.Failed,
		report.Skipped,
		report.ExitCode,
		report.Digest,
		failuresJSON,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results
		(run_id, idx, name, path, outcome, code, signal, pass, skipped, reason, duration_ns, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare results: %w", err)
	}
	defer stmt.Close()

	for i, r := range report.Results {
		_, err := stmt.ExecContext(ctx,
			report.RunID,
			i,
			r.Name,
			r.Path,
			string(r.Outcome),
			r.Code,
			r.Signal,
			boolToInt(r.Pass),
			boolToInt(r.Skipped),
			r.Reason,
			int64(r.Duration),
			r.Output,
		)
		if err != nil {
			return fmt.Errorf("write run: result %d (%s): %w", i, r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// DeleteRun removes a run and, through the foreign key, its results.
// Deleting an unknown ID is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
