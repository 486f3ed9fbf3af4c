// Package harness runs suites of external conformance programs.
//
// A suite is a YAML manifest listing test programs with their arguments,
// environment and expected termination. Each program runs in its own
// process through package isolate, so a crashing test cannot take the
// harness down, and the suite is executed in fan-out batches through
// package fanout. Every failure goes to one status.Tracker per run,
// whose final status becomes the report's exit code.
//
// # Manifest
//
//	name: functional
//	dir: ./build/functional
//	parallel: 4
//	env: {TZ: UTC}
//	tests:
//	  - name: pthread_create
//	    path: pthread_create
//	  - name: strverscmp
//	    path: strverscmp
//	    timeout: 30s
//	  - name: fdopen_overflow
//	    path: fdopen_overflow
//	    expect:
//	      signals: [SIGSEGV]
//	      fail_codes: [1]
//
// Without an expect block a test passes only by exiting with status 0.
//
// # Determinism
//
// Report.Snapshot leaves out run IDs, timestamps and captured output, so
// two runs against the same programs produce the same snapshot and digest.
// AssertGolden compares snapshots against testdata/golden in tests.
package harness
