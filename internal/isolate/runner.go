package isolate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/roach88/libcheck/internal/status"
)

// outputLimit bounds how much child output an Outcome keeps.
const outputLimit = 4096

// waitDelay bounds how long Wait blocks on inherited pipes after the
// child has been killed on cancellation.
const waitDelay = 2 * time.Second

// Command is an external program to run in isolation.
type Command struct {
	Name string // label used in reports; defaults to Path
	Path string
	Args []string
	Env  []string // added to the inherited environment
	Dir  string
}

// Runner spawns isolated processes and reports their failures.
type Runner struct {
	tracker *status.Tracker
	exe     string
	echo    io.Writer
	logger  *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutable sets the binary re-executed for probes.
// It defaults to os.Executable().
func WithExecutable(path string) RunnerOption {
	return func(r *Runner) { r.exe = path }
}

// WithEcho copies child output to w as it is produced.
func WithEcho(w io.Writer) RunnerOption {
	return func(r *Runner) { r.echo = w }
}

// WithLogger sets the logger for spawn and classification records.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner reporting to tr.
func NewRunner(tr *status.Tracker, opts ...RunnerOption) *Runner {
	r := &Runner{
		tracker: tr,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes probe in a child process and classifies its termination.
//
// A failure is reported when the child dies by a signal outside
// policy.Signals or exits with a failure status. Failing to start or wait
// for the child is reported as a harness failure. Run blocks until the
// child ends or ctx is done.
func (r *Runner) Run(ctx context.Context, probe Probe, policy Policy) Outcome {
	if _, ok := lookup(probe.name); !ok {
		err := errors.New("probe is not registered")
		r.tracker.HarnessErrorf("isolate: %q: %v", probe.name, err)
		return Outcome{Name: probe.name, Kind: OutcomeNotRun, Reason: err.Error(), Err: err}
	}

	exe := r.exe
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			r.tracker.HarnessErrorf("isolate: %s: locate executable: %v", probe.name, err)
			return Outcome{Name: probe.name, Kind: OutcomeNotRun, Reason: err.Error(), Err: err}
		}
	}

	return r.run(ctx, Command{
		Name: probe.name,
		Path: exe,
		Env:  []string{ProbeEnv + "=" + probe.name},
	}, policy, true)
}

// RunCommand executes an external program and classifies its termination
// under policy, exactly like Run.
func (r *Runner) RunCommand(ctx context.Context, c Command, policy Policy) Outcome {
	return r.run(ctx, c, policy, false)
}

// run executes c. For probe children, ExitUnknownProbe means the executable
// does not register the probe, which is a harness failure.
func (r *Runner) run(ctx context.Context, c Command, policy Policy, probe bool) Outcome {
	name := c.Name
	if name == "" {
		name = c.Path
	}
	out := Outcome{Name: name}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay

	tail := &tailBuffer{limit: outputLimit}
	var w io.Writer = tail
	if r.echo != nil {
		w = io.MultiWriter(tail, r.echo)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	configureProcess(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		out.Kind = OutcomeNotRun
		out.Reason = "start failed"
		out.Err = err
		r.tracker.HarnessErrorf("isolate: %s: start: %v", name, err)
		return out
	}

	waitErr := cmd.Wait()
	out.Duration = time.Since(start)
	out.Output = tail.String()

	// A child that ended on its own before ctx was done is classified
	// normally, even if Wait returned afterwards.
	if ctxErr := ctx.Err(); ctxErr != nil && killedByCancel(cmd.ProcessState) {
		out.Kind = OutcomeCanceled
		out.Reason = ctxErr.Error()
		out.Err = ctxErr
		r.tracker.HarnessErrorf("isolate: %s: %v", name, ctxErr)
		return out
	}

	if cmd.ProcessState == nil {
		out.Kind = OutcomeNotRun
		out.Reason = "wait failed"
		out.Err = waitErr
		r.tracker.HarnessErrorf("isolate: %s: wait: %v", name, waitErr)
		return out
	}

	decodeState(cmd.ProcessState, &out)
	if probe && out.Kind == OutcomeExited && out.Code == ExitUnknownProbe {
		out.Kind = OutcomeNotRun
		out.Reason = "probe not registered in " + c.Path
		r.tracker.HarnessErrorf("isolate: %s: %s", name, out.Reason)
		return out
	}
	policy.classify(&out)

	r.logger.Debug("isolated run finished",
		"name", name,
		"outcome", out.String(),
		"pass", out.Pass,
		"duration", out.Duration,
	)

	if !out.Pass {
		r.tracker.Errorf("isolate: %s: %s", name, out.Reason)
	}
	return out
}

// killedByCancel reports whether state is that of a child stopped by the
// context's cancel function, which sends SIGKILL.
func killedByCancel(state *os.ProcessState) bool {
	if state == nil {
		return true
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGKILL
}

func decodeState(state *os.ProcessState, out *Outcome) {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		out.Kind = OutcomeSignaled
		out.Signal = ws.Signal()
		return
	}
	out.Kind = OutcomeExited
	out.Code = state.ExitCode()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
