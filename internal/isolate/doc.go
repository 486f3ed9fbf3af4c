// Package isolate runs code that may crash in a separate OS process and
// classifies how that process terminated.
//
// Go cannot fork a running program, so a probe is a named function
// registered at init time. Run re-executes the current executable with the
// probe name in an environment marker; Main, called first thing in main or
// TestMain, notices the marker, runs the probe and exits with its result.
//
//	var overflow = isolate.Register("asctime-overflow", func() int {
//		if detectsOverflow() {
//			return 0 // detected the bad input safely
//		}
//		return 1 // did not detect it
//	})
//
//	func TestMain(m *testing.M) {
//		isolate.Main()
//		os.Exit(m.Run())
//	}
//
//	func TestAsctime(t *testing.T) {
//		tr := status.New(os.Stderr)
//		isolate.NewRunner(tr).Run(ctx, overflow, isolate.CrashPolicy())
//	}
//
// # Classification
//
// A Policy decides which terminations are acceptable. CrashPolicy accepts a
// clean exit or death by a memory-violation signal and fails exit status 1.
// ExitPolicy accepts only exit status 0. Failures go to the status.Tracker;
// a child that could not be started or waited for is a harness failure.
//
// Inside the child, a Go memory fault (nil dereference, or any fault once
// debug.SetPanicOnFault is on) is turned into death by SIGSEGV with the
// default disposition, so a Go probe terminates the same way a crashing C
// program does.
//
// RunCommand applies the same classification to an external program.
package isolate
