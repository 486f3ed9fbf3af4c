package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/libcheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Suite string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		Long: `List runs stored in the history database, newest first.

Examples:
  libcheck history --db libcheck.db
  libcheck history --db libcheck.db --suite functional --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Suite, "suite", "", "only list runs of this suite")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 = all)")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Long: `Show the full report of a stored run, including the output tail of
failing tests.

Examples:
  libcheck show --db libcheck.db 0192f7c4-8a1e-7b52-9c3d-5e6f7a8b9c0d`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func openHistory(opts *RootOptions, formatter *OutputFormatter) (*store.Store, error) {
	if opts.Database == "" {
		return nil, formatter.Fail(ExitCommandError, ErrCodeUsage, "--db is required", nil)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open history database", err)
	}
	return st, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	db, err := openHistory(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), opts.Suite, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}

	if formatter.Format == "json" {
		return formatter.Response(CLIResponse{Status: "ok", Data: runs})
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	st := newStyles(w)
	idWidth, suiteWidth := 0, 0
	for _, r := range runs {
		idWidth = max(idWidth, len(r.ID))
		suiteWidth = max(suiteWidth, len(r.Suite))
	}
	for _, r := range runs {
		mark := st.pass.Render("✓")
		if r.ExitCode != 0 {
			mark = st.fail.Render("✗")
		}
		fmt.Fprintf(w, "%s %s  %s  %s  %s\n",
			mark,
			pad(r.ID, idWidth),
			pad(r.Suite, suiteWidth),
			fmt.Sprintf("%d passed, %d failed, %d skipped", r.Passed, r.Failed, r.Skipped),
			st.dim.Render(fmt.Sprintf("%s, took %s", humanize.Time(r.StartedAt), runDuration(r))),
		)
	}
	return nil
}

func runShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	db, err := openHistory(opts, formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := db.ReadRun(cmd.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	if formatter.Format == "json" {
		return formatter.Response(CLIResponse{Status: "ok", Data: report, RunID: report.RunID})
	}

	renderReport(formatter.Writer, report, true)
	fmt.Fprintf(formatter.Writer, "started %s (%s), digest %s\n",
		report.StartedAt.Local().Format(time.RFC3339), humanize.Time(report.StartedAt), report.Digest)
	return nil
}

func runDuration(r store.RunSummary) time.Duration {
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
