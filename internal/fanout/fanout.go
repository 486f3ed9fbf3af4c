// Package fanout launches a fixed batch of workers against a shared slice
// and joins all of them before returning.
//
// Worker i receives a pointer to element i of the batch data, so workers
// never share a slot and report their results by writing into it. Launch
// failures are reported to the run's status.Tracker and do not stop the
// remaining launches.
package fanout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/pprof"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/libcheck/internal/status"
)

// Attr is the per-worker configuration of a batch.
type Attr struct {
	// Name labels the worker goroutine (pprof label "worker").
	Name string

	// LockOSThread runs the worker on a dedicated OS thread. The thread is
	// not unlocked: it exits with the worker and is never reused, which is
	// what thread-identity tests expect from a freshly created thread.
	LockOSThread bool
}

// Batch describes one fan-out: Count workers running Entry.
type Batch[T any] struct {
	Count int
	Entry func(arg *T)

	// Data, if non-nil, must hold at least Count elements.
	// If nil, every worker receives a nil argument.
	Data []T

	// Attrs, if non-nil, must hold exactly Count elements.
	Attrs []Attr
}

func (b Batch[T]) validate() error {
	if b.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", b.Count)
	}
	if b.Entry == nil {
		return fmt.Errorf("entry function is nil")
	}
	if b.Data != nil && len(b.Data) < b.Count {
		return fmt.Errorf("data holds %d elements, need %d", len(b.Data), b.Count)
	}
	if b.Attrs != nil && len(b.Attrs) != b.Count {
		return fmt.Errorf("attrs holds %d elements, need exactly %d", len(b.Attrs), b.Count)
	}
	return nil
}

// Runner launches batches and reports launch failures to a tracker.
type Runner struct {
	tracker *status.Tracker
	limit   int
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLimit caps the number of workers alive at once. Launches attempted
// while the cap is reached fail, like thread creation under a resource
// limit. Zero means no cap.
func WithLimit(n int) Option {
	return func(r *Runner) { r.limit = n }
}

// WithLogger sets the logger for batch lifecycle records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner reporting to tr.
func New(tr *status.Tracker, opts ...Option) *Runner {
	r := &Runner{
		tracker: tr,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunBatch launches b.Count workers in index order, then joins every
// launched worker. It returns the number of workers that were launched.
//
// No ordering between workers is guaranteed. A worker panic is recovered
// and reported as a harness failure. There is no timeout: a worker that
// never returns blocks RunBatch forever.
func RunBatch[T any](r *Runner, b Batch[T]) int {
	if err := b.validate(); err != nil {
		r.tracker.HarnessErrorf("fan-out: invalid batch: %v", err)
		return 0
	}

	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	launched := 0
	for i := 0; i < b.Count; i++ {
		i := i // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loopvar semantics)
		var arg *T
		if b.Data != nil {
			arg = &b.Data[i]
		}
		var attr Attr
		if b.Attrs != nil {
			attr = b.Attrs[i]
		}

		ok := g.TryGo(func() error {
			runWorker(r, i, attr, b.Entry, arg)
			return nil
		})
		if !ok {
			r.tracker.HarnessErrorf("fan-out: launch worker %d of %d: %d workers already running", i, b.Count, r.limit)
			continue
		}
		launched++
	}

	// Workers report through their data slot and the tracker, never
	// through the group's error.
	_ = g.Wait()

	r.logger.Debug("batch joined",
		"count", b.Count,
		"launched", launched,
	)
	return launched
}

func runWorker[T any](r *Runner, idx int, attr Attr, entry func(*T), arg *T) {
	if attr.LockOSThread {
		runtime.LockOSThread()
	}
	defer func() {
		if p := recover(); p != nil {
			r.tracker.HarnessErrorf("fan-out: worker %d panicked: %v", idx, p)
		}
	}()

	if attr.Name == "" {
		entry(arg)
		return
	}
	pprof.Do(context.Background(), pprof.Labels("worker", attr.Name), func(context.Context) {
		entry(arg)
	})
}
