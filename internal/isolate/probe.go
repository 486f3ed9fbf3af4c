package isolate

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
)

// ProbeEnv is the environment marker naming the probe a child must run.
const ProbeEnv = "LIBCHECK_ISOLATE_PROBE"

// ExitUnknownProbe is the child's exit status when ProbeEnv names a probe
// that is not registered in the executable. Probes must not return it.
const ExitUnknownProbe = 125

// Probe is a registered function that runs in its own process.
type Probe struct {
	name string
}

// Name returns the registration name.
func (p Probe) Name() string { return p.name }

var registry = struct {
	sync.RWMutex
	probes map[string]func() int
}{probes: make(map[string]func() int)}

// Register adds fn under name and returns its Probe.
// Registering an empty or duplicate name panics; call it from package
// initialization so parent and child see the same registry.
func Register(name string, fn func() int) Probe {
	if name == "" {
		panic("isolate: Register with empty name")
	}
	if fn == nil {
		panic("isolate: Register " + name + " with nil func")
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.probes[name]; dup {
		panic("isolate: Register called twice for " + name)
	}
	registry.probes[name] = fn
	return Probe{name: name}
}

// Lookup returns the probe registered under name.
func Lookup(name string) (Probe, bool) {
	_, ok := lookup(name)
	if !ok {
		return Probe{}, false
	}
	return Probe{name: name}, true
}

func lookup(name string) (func() int, bool) {
	registry.RLock()
	defer registry.RUnlock()
	fn, ok := registry.probes[name]
	return fn, ok
}

// Main runs the probe named by ProbeEnv and exits with its result.
// It returns immediately in a process without the marker.
//
// A probe that faults on memory access dies by SIGSEGV; any other panic
// kills it with SIGABRT.
func Main() {
	name, ok := os.LookupEnv(ProbeEnv)
	if !ok {
		return
	}

	fn, ok := lookup(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "isolate: unknown probe %q\n", name)
		os.Exit(ExitUnknownProbe)
	}
	os.Exit(runProbe(name, fn))
}

func runProbe(name string, fn func() int) int {
	debug.SetPanicOnFault(true)
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if isMemoryFault(p) {
			fmt.Fprintf(os.Stderr, "isolate: probe %s: %v\n", name, p)
			raise(syscall.SIGSEGV)
		}
		// Any other panic is an abort, as in a C test calling abort().
		fmt.Fprintf(os.Stderr, "isolate: probe %s panicked: %v\n%s", name, p, debug.Stack())
		raise(syscall.SIGABRT)
	}()
	return fn()
}

// isMemoryFault reports whether a recovered value is the runtime's
// translation of a memory-access violation.
func isMemoryFault(p any) bool {
	err, ok := p.(error)
	if !ok {
		return false
	}
	var rerr runtime.Error
	if !errors.As(err, &rerr) {
		return false
	}
	if _, ok := rerr.(interface{ Addr() uintptr }); ok {
		return true
	}
	return strings.Contains(rerr.Error(), "invalid memory address")
}
