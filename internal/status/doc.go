// Package status accumulates assertion failures for a conformance run.
//
// A Tracker is the single shared context of a run: every test body and
// every worker reports into it, and the program derives its exit status
// from it once all workers have been joined.
//
// # Soft Assertions
//
// Reporting a failure never stops execution. Errorf returns false so it
// composes inside boolean expressions, mirroring the classic
// "(c) || (t_error(...), 0)" idiom:
//
//	tr := status.New(os.Stderr)
//	tr.Check(got == want, "gmtime_r: got %v, want %v", got, want)
//	_ = n >= 0 || tr.Errorf("negative index %d", n)
//	os.Exit(tr.ExitCode())
//
// # Failure Tiers
//
// Assertion failures (expected vs actual mismatches) are reported with
// Errorf or Check. Harness failures (a worker could not be launched, a
// child process could not be spawned) are reported with HarnessErrorf.
// Both tiers count toward the exit status; the tier is kept for reports.
package status
