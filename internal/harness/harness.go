package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"

	"github.com/roach88/libcheck/internal/fanout"
	"github.com/roach88/libcheck/internal/isolate"
	"github.com/roach88/libcheck/internal/status"
)

// Options configures a suite run. The zero value is usable.
type Options struct {
	// Filter selects tests whose name matches this path.Match pattern.
	Filter string

	// Parallel overrides the suite's batch size when positive.
	Parallel int

	// Output receives one line per reported failure.
	Output io.Writer

	// Echo, if set, receives the live output of every test.
	Echo io.Writer

	Logger *slog.Logger
	Clock  Clock
	IDs    IDGenerator
}

// Harness runs one suite. It is created per call to Run.
type Harness struct {
	suite   *Suite
	tracker *status.Tracker
	iso     *isolate.Runner
	fan     *fanout.Runner
	clock   Clock
	logger  *slog.Logger
}

// Run executes the selected tests of suite and returns the report.
//
// Tests run as isolated processes in fan-out batches of the suite's
// parallel size; every test writes its own result slot. Each process
// ending outside its expectation is reported as a failure, and the
// report's exit code is the run tracker's final status.
//
// The returned error covers invalid options only. Test and harness
// failures are recorded in the report.
func Run(ctx context.Context, suite *Suite, opts Options) (*Report, error) {
	selected, err := selectTests(suite.Tests, opts.Filter)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	parallel := suite.Parallel
	if opts.Parallel > 0 {
		parallel = opts.Parallel
	}
	if parallel <= 0 {
		parallel = 1
	}

	tracker := status.New(opts.Output, status.WithLogger(opts.Logger))
	isoOpts := []isolate.RunnerOption{isolate.WithLogger(opts.Logger)}
	if opts.Echo != nil {
		isoOpts = append(isoOpts, isolate.WithEcho(opts.Echo))
	}
	h := &Harness{
		suite:   suite,
		tracker: tracker,
		iso:     isolate.NewRunner(tracker, isoOpts...),
		fan:     fanout.New(tracker, fanout.WithLogger(opts.Logger)),
		clock:   opts.Clock,
		logger:  opts.Logger,
	}

	report := &Report{
		RunID:     opts.IDs.Generate(),
		Suite:     suite.Name,
		StartedAt: opts.Clock.Now(),
		Results:   make([]TestResult, len(selected)),
	}
	for i, spec := range selected {
		report.Results[i] = TestResult{Name: spec.Name, Path: spec.Path, spec: spec}
	}

	h.logger.Info("suite started",
		"suite", suite.Name,
		"run_id", report.RunID,
		"tests", len(selected),
		"parallel", parallel,
	)

	for start := 0; start < len(report.Results); start += parallel {
		if ctx.Err() != nil {
			h.cancelRemaining(ctx, report.Results[start:])
			break
		}
		end := min(start+parallel, len(report.Results))
		h.runBatch(ctx, report.Results[start:end])
	}

	report.FinishedAt = opts.Clock.Now()
	for _, res := range report.Results {
		switch {
		case res.Skipped:
			report.Skipped++
		case res.Pass:
			report.Passed++
		default:
			report.Failed++
		}
	}
	report.Failures = tracker.Snapshot()
	report.ExitCode = tracker.ExitCode()

	digest, err := report.ComputeDigest()
	if err != nil {
		return nil, fmt.Errorf("digest report: %w", err)
	}
	report.Digest = digest

	h.logger.Info("suite finished",
		"suite", suite.Name,
		"run_id", report.RunID,
		"passed", report.Passed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"failures", tracker.Failures(),
	)
	return report, nil
}

func (h *Harness) runBatch(ctx context.Context, slots []TestResult) {
	attrs := make([]fanout.Attr, len(slots))
	for i := range slots {
		attrs[i] = fanout.Attr{Name: slots[i].Name}
	}
	fanout.RunBatch(h.fan, fanout.Batch[TestResult]{
		Count: len(slots),
		Data:  slots,
		Attrs: attrs,
		Entry: func(res *TestResult) { h.runTest(ctx, res) },
	})
}

// runTest fills res with the outcome of its test.
func (h *Harness) runTest(ctx context.Context, res *TestResult) {
	spec := res.spec
	if spec.Skip != "" {
		res.Skipped = true
		res.Reason = "skipped: " + spec.Skip
		h.logger.Debug("test skipped", "test", spec.Name, "reason", spec.Skip)
		return
	}

	policy, err := spec.Expect.Policy()
	if err != nil {
		// Manifests from LoadSuite are validated; this covers suites built
		// in code.
		res.Outcome = isolate.OutcomeNotRun
		res.Reason = err.Error()
		h.tracker.HarnessErrorf("suite: %s: %v", spec.Name, err)
		return
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout.Std())
		defer cancel()
	}

	started := h.clock.Now()
	out := h.iso.RunCommand(ctx, isolate.Command{
		Name: spec.Name,
		Path: spec.Path,
		Args: spec.Args,
		Env:  mergeEnv(h.suite.Env, spec.Env),
		Dir:  h.suite.Dir,
	}, policy)
	res.Duration = h.clock.Now().Sub(started)

	res.Outcome = out.Kind
	res.Code = out.Code
	if out.Kind == isolate.OutcomeSignaled {
		res.Signal = isolate.SignalName(out.Signal)
	}
	res.Pass = out.Pass
	res.Reason = out.Reason
	res.Output = out.Output
}

func (h *Harness) cancelRemaining(ctx context.Context, slots []TestResult) {
	h.tracker.HarnessErrorf("suite: %d tests not started: %v", len(slots), ctx.Err())
	for i := range slots {
		slots[i].Outcome = isolate.OutcomeCanceled
		slots[i].Reason = ctx.Err().Error()
	}
}

// selectTests returns the tests whose name matches filter, in manifest
// order. An empty filter selects everything.
func selectTests(tests []TestSpec, filter string) ([]TestSpec, error) {
	if filter == "" {
		return tests, nil
	}
	if _, err := path.Match(filter, ""); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
	}
	var out []TestSpec
	for _, tc := range tests {
		if ok, _ := path.Match(filter, tc.Name); ok {
			out = append(out, tc)
		}
	}
	return out, nil
}

// mergeEnv flattens suite and test env into KEY=VALUE pairs. Test values
// come last so they win; keys are sorted for a stable child environment.
func mergeEnv(suite, test map[string]string) []string {
	env := make([]string, 0, len(suite)+len(test))
	for _, m := range []map[string]string{suite, test} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+m[k])
		}
	}
	return env
}
