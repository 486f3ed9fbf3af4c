package isolate

import (
	"fmt"
	"slices"
	"syscall"
)

// Policy decides which terminations of an isolated process are acceptable.
type Policy struct {
	// Signals lists the signals whose termination counts as success.
	// Death by any other signal is a failure.
	Signals []syscall.Signal

	// FailCodes lists the exit statuses reported as failures. When empty,
	// every non-zero status is a failure. Status 0 always succeeds.
	FailCodes []int
}

// CrashPolicy accepts a clean exit or death by one of signals (SIGSEGV when
// none are given). Exit status 1, the probe's "did not detect the bad
// input" answer, is a failure.
func CrashPolicy(signals ...syscall.Signal) Policy {
	if len(signals) == 0 {
		signals = []syscall.Signal{syscall.SIGSEGV}
	}
	return Policy{
		Signals:   signals,
		FailCodes: []int{1},
	}
}

// ExitPolicy accepts exit status 0 only.
func ExitPolicy() Policy {
	return Policy{}
}

func (p Policy) allowsSignal(sig syscall.Signal) bool {
	return slices.Contains(p.Signals, sig)
}

func (p Policy) failsExit(code int) bool {
	if code == 0 {
		return false
	}
	if len(p.FailCodes) == 0 {
		return true
	}
	return slices.Contains(p.FailCodes, code)
}

// classify sets o.Pass and o.Reason for a process that ran to termination.
func (p Policy) classify(o *Outcome) {
	switch o.Kind {
	case OutcomeExited:
		if p.failsExit(o.Code) {
			o.Reason = fmt.Sprintf("exited with status %d", o.Code)
			return
		}
		o.Pass = true
		o.Reason = fmt.Sprintf("exited with status %d", o.Code)
	case OutcomeSignaled:
		if !p.allowsSignal(o.Signal) {
			o.Reason = "terminated by unexpected " + SignalName(o.Signal)
			return
		}
		o.Pass = true
		o.Reason = "terminated by expected " + SignalName(o.Signal)
	}
}
