package isolate

import (
	"fmt"
	"syscall"
	"time"
)

// OutcomeKind is how an isolated process ended.
type OutcomeKind string

const (
	OutcomeExited   OutcomeKind = "exited"
	OutcomeSignaled OutcomeKind = "signaled"
	OutcomeCanceled OutcomeKind = "canceled" // context done before the process ended
	OutcomeNotRun   OutcomeKind = "not_run"  // could not be started or waited for
)

// Outcome is the classified result of one isolated run.
type Outcome struct {
	Name     string
	Kind     OutcomeKind
	Code     int            // exit status, valid for OutcomeExited
	Signal   syscall.Signal // valid for OutcomeSignaled
	Duration time.Duration
	Output   string // tail of the combined stdout and stderr
	Pass     bool
	Reason   string
	Err      error
}

// Failed reports whether the run was reported as a failure.
func (o Outcome) Failed() bool {
	return !o.Pass
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeExited:
		return fmt.Sprintf("exit %d", o.Code)
	case OutcomeSignaled:
		return SignalName(o.Signal)
	case OutcomeCanceled:
		return "canceled"
	default:
		return "not run"
	}
}
