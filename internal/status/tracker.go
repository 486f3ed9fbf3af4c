package status

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Kind distinguishes assertion failures from harness failures.
type Kind string

const (
	KindAssertion Kind = "assertion"
	KindHarness   Kind = "harness"
)

// Failure is one reported failure.
type Failure struct {
	Seq     int64  `json:"seq"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Tracker is the failure accumulator of a run.
//
// The counter only grows. Reads of the final status are expected from the
// main goroutine after every worker has been joined, but the counter is
// atomic so early reads are never torn.
//
// Thread-safety: Errorf, HarnessErrorf and Check are safe for concurrent use.
// Output lines are written under a mutex and never interleave.
type Tracker struct {
	count atomic.Int64

	mu       sync.Mutex // guards w and failures
	w        io.Writer
	failures []Failure

	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger routes a structured record of every failure to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Tracker writing failure messages to w.
// A nil w discards messages; they are still counted and kept for Snapshot.
func New(w io.Writer, opts ...Option) *Tracker {
	if w == nil {
		w = io.Discard
	}
	t := &Tracker{
		w:      w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Errorf reports an assertion failure and returns false.
func (t *Tracker) Errorf(format string, args ...any) bool {
	t.record(KindAssertion, format, args...)
	return false
}

// HarnessErrorf reports a harness or environment failure and returns false.
// It is counted like any other failure; execution still continues.
func (t *Tracker) HarnessErrorf(format string, args ...any) bool {
	t.record(KindHarness, format, args...)
	return false
}

// Check returns cond, reporting an assertion failure when it is false.
func (t *Tracker) Check(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	t.record(KindAssertion, format, args...)
	return false
}

// Failures returns the number of failures reported so far.
func (t *Tracker) Failures() int64 {
	return t.count.Load()
}

// ExitCode returns 0 when no failure was reported and 1 otherwise.
func (t *Tracker) ExitCode() int {
	if t.count.Load() > 0 {
		return 1
	}
	return 0
}

// Snapshot returns a copy of the recorded failures ordered by Seq.
func (t *Tracker) Snapshot() []Failure {
	t.mu.Lock()
	out := make([]Failure, len(t.failures))
	copy(out, t.failures)
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (t *Tracker) record(kind Kind, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	seq := t.count.Add(1)

	line := msg
	if kind == KindHarness {
		line = "harness: " + msg
	}

	t.mu.Lock()
	t.failures = append(t.failures, Failure{Seq: seq, Kind: kind, Message: msg})
	fmt.Fprintln(t.w, line)
	t.mu.Unlock()

	t.logger.Debug("failure reported",
		"seq", seq,
		"kind", string(kind),
		"message", msg,
	)
}
