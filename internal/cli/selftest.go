package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/libcheck/internal/fanout"
	"github.com/roach88/libcheck/internal/isolate"
	"github.com/roach88/libcheck/internal/status"
)

// Probes for the isolation checks. They run in a re-executed copy of the
// binary, so main must call isolate.Main first.
var (
	probeReturns0 = isolate.Register("selftest-returns-0", func() int { return 0 })
	probeReturns1 = isolate.Register("selftest-returns-1", func() int { return 1 })

	probeMemoryFault = isolate.Register("selftest-memory-fault", func() int {
		var p *[64]byte
		return int(p[8])
	})

	probeUnexpectedSignal = isolate.Register("selftest-unexpected-signal", func() int {
		_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
		time.Sleep(10 * time.Second)
		return 0
	})
)

// SelftestCheck is the result of one self-test scenario.
type SelftestCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// SelftestResult holds all self-test checks.
type SelftestResult struct {
	Checks []SelftestCheck `json:"checks"`
	Passed int             `json:"passed"`
	Failed int             `json:"failed"`
}

// NewSelftestCommand creates the selftest command.
func NewSelftestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Check the harness core against itself",
		Long: `Run the harness primitives against known scenarios:

  fanout-index     10 workers each write their index into their own slot
  failure-count    100 concurrent failure reports count exactly 100
  isolate-*        a child returning 0, returning 1, faulting on a nil
                   pointer and dying by an unexpected SIGTERM

Each check compares the harness verdict with the expected one. A check
that reports a failure is correct when that failure was expected.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(rootOpts, cmd)
		},
	}

	return cmd
}

func runSelftest(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	// Messages from the scenarios themselves are expected noise; show
	// them only with --verbose.
	var scratch io.Writer = io.Discard
	if opts.Verbose {
		scratch = cmd.ErrOrStderr()
	}

	checks := []SelftestCheck{
		checkFanoutIndex(scratch),
		checkFailureCount(scratch),
	}
	checks = append(checks, checkIsolation(cmd.Context(), scratch)...)

	tracker := status.New(cmd.ErrOrStderr(), status.WithLogger(logger))
	result := SelftestResult{Checks: checks}
	for _, c := range checks {
		if tracker.Check(c.OK, "selftest: %s: %s", c.Name, c.Detail) {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if tracker.ExitCode() != 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeTests, Message: "self-test checks failed", Details: tracker.Snapshot()}
		}
		if err := formatter.Response(resp); err != nil {
			return err
		}
	} else {
		renderSelftest(formatter.Writer, result)
	}

	if tracker.ExitCode() != 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d self-test check(s) failed", result.Failed))
	}
	return nil
}

func renderSelftest(w io.Writer, result SelftestResult) {
	st := newStyles(w)
	width := 0
	for _, c := range result.Checks {
		width = max(width, len(c.Name))
	}
	for _, c := range result.Checks {
		mark := st.pass.Render("✓")
		if !c.OK {
			mark = st.fail.Render("✗")
		}
		fmt.Fprintf(w, "%s %s  %s\n", mark, pad(c.Name, width), st.dim.Render(c.Detail))
	}
	fmt.Fprintf(w, "%d passed, %d failed\n", result.Passed, result.Failed)
}

// fanoutSlot is the data of one fan-out worker: its index, assigned before
// launch, and the value the worker wrote back.
type fanoutSlot struct {
	index  int
	got    int
	writes atomic.Int32
}

// checkFanoutIndex launches 10 workers, each writing its own index into its
// slot. Every slot must be written exactly once with the right index, and
// no failure may be reported.
func checkFanoutIndex(w io.Writer) SelftestCheck {
	const n = 10
	tr := status.New(w)
	slots := make([]fanoutSlot, n)
	for i := range slots {
		slots[i].index = i
		slots[i].got = -1
	}

	launched := fanout.RunBatch(fanout.New(tr), fanout.Batch[fanoutSlot]{
		Count: n,
		Data:  slots,
		Entry: func(s *fanoutSlot) {
			s.writes.Add(1)
			s.got = s.index
		},
	})

	check := SelftestCheck{Name: "fanout-index", OK: true}
	for i := range slots {
		s := &slots[i]
		if writes := s.writes.Load(); writes != 1 || s.got != i {
			check.OK = false
			check.Detail = fmt.Sprintf("slot %d written %d times, holds %d", i, writes, s.got)
			return check
		}
	}
	if launched != n || tr.Failures() != 0 {
		check.OK = false
		check.Detail = fmt.Sprintf("launched %d, failures %d", launched, tr.Failures())
		return check
	}
	check.Detail = fmt.Sprintf("%d workers, each wrote its own slot", n)
	return check
}

// checkFailureCount has 100 workers report one failure each.
func checkFailureCount(w io.Writer) SelftestCheck {
	const n = 100
	tr := status.New(w)
	fanout.RunBatch(fanout.New(tr), fanout.Batch[struct{}]{
		Count: n,
		Entry: func(*struct{}) {
			tr.Errorf("selftest: deliberate failure")
		},
	})

	got := tr.Failures()
	return SelftestCheck{
		Name:   "failure-count",
		OK:     got == n && tr.ExitCode() == 1,
		Detail: fmt.Sprintf("%d reports counted as %d, exit status %d", n, got, tr.ExitCode()),
	}
}

// checkIsolation runs each probe under the default crash policy and
// compares the verdict with the expected one.
func checkIsolation(ctx context.Context, w io.Writer) []SelftestCheck {
	cases := []struct {
		name     string
		probe    isolate.Probe
		wantFail bool
		wantSig  syscall.Signal // checked on Linux only
	}{
		{name: "isolate-returns-0", probe: probeReturns0},
		{name: "isolate-returns-1", probe: probeReturns1, wantFail: true},
		{name: "isolate-memory-fault", probe: probeMemoryFault, wantSig: syscall.SIGSEGV},
		{name: "isolate-unexpected-signal", probe: probeUnexpectedSignal, wantFail: true, wantSig: syscall.SIGTERM},
	}

	checks := make([]SelftestCheck, 0, len(cases))
	for _, tc := range cases {
		tr := status.New(w)
		out := isolate.NewRunner(tr).Run(ctx, tc.probe, isolate.CrashPolicy())

		check := SelftestCheck{Name: tc.name, Detail: fmt.Sprintf("%s, %s", out, out.Reason)}
		reported := tr.Failures() > 0
		check.OK = reported == tc.wantFail && out.Kind != isolate.OutcomeNotRun
		if tc.wantSig != 0 && runtime.GOOS == "linux" {
			check.OK = check.OK && out.Kind == isolate.OutcomeSignaled && out.Signal == tc.wantSig
		}
		checks = append(checks, check)
	}
	return checks
}
