package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/libcheck/internal/harness"
	"github.com/roach88/libcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter   string // test filter (glob pattern)
	Parallel int    // overrides the manifest's batch size
	Echo     bool   // stream test output to stderr
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a conformance suite",
		Long: `Run every test of a suite manifest in its own process.

Tests run in batches of the manifest's parallel size. A test fails when
it exits with a failing status or dies by a signal its expect block does
not list. Failure messages are written to stderr as they happen.

With --db, the report is stored in the run history.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed
  2 - Command error (missing manifest, database error, etc.)

Examples:
  libcheck run suites/functional.yaml
  libcheck run suites/functional.yaml --filter "pthread_*" --parallel 8
  libcheck run suites/functional.yaml --db libcheck.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only tests whose name matches this glob")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "tests per batch (default from manifest)")
	cmd.Flags().BoolVar(&opts.Echo, "echo", false, "stream test output to stderr")

	return cmd
}

func runSuite(parentCtx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Parallel < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Sprintf("--parallel must be non-negative, got %d", opts.Parallel), nil)
	}

	suite, err := loadSuite(formatter, path)
	if err != nil {
		return err
	}

	// Open history before running so a bad --db fails fast
	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open history database", err)
		}
		defer st.Close()
	}

	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := harness.Options{
		Filter:   opts.Filter,
		Parallel: opts.Parallel,
		Output:   cmd.ErrOrStderr(),
		Logger:   logger,
	}
	if opts.Echo {
		runOpts.Echo = cmd.ErrOrStderr()
	}

	report, err := harness.Run(ctx, suite, runOpts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, "failed to run suite", err)
	}

	if st != nil {
		if err := st.WriteRun(ctx, report); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to store run", err)
		}
		logger.Debug("run stored", "db", opts.Database, "run_id", report.RunID)
	}

	if err := outputReport(formatter, report); err != nil {
		return err
	}

	if report.ExitCode != 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d tests failed", report.Failed, len(report.Results)))
	}
	return nil
}

// loadSuite loads a manifest and reports load errors with their codes.
func loadSuite(formatter *OutputFormatter, path string) (*harness.Suite, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("suite file not found: %s", path), nil)
	}

	suite, err := harness.LoadSuite(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load suite", err)
	}
	formatter.VerboseLog("Loaded suite %s from %s (%d tests)", suite.Name, path, len(suite.Tests))
	return suite, nil
}

// outputReport writes a report in the configured format.
func outputReport(formatter *OutputFormatter, report *harness.Report) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report, RunID: report.RunID}
		if report.ExitCode != 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeTests,
				Message: fmt.Sprintf("%d of %d tests failed", report.Failed, len(report.Results)),
				Details: report.Failures,
			}
		}
		return formatter.Response(resp)
	}

	renderReport(formatter.Writer, report, formatter.Verbose)
	return nil
}
