//go:build linux

package isolate

import (
	"os"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// raise terminates the process with sig under the default disposition.
//
// The Go runtime owns the handlers for synchronous signals and turns them
// into panics or a plain exit(2), so the default action is restored with a
// raw rt_sigaction before the signal is sent to the current thread.
func raise(sig syscall.Signal) {
	runtime.LockOSThread()

	// An all-zero kernel sigaction is SIG_DFL with no flags and an empty
	// mask on every Linux layout.
	var act [4]uint64
	const kernelSigsetSize = 8
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION,
		uintptr(sig), uintptr(unsafe.Pointer(&act)), 0, kernelSigsetSize, 0, 0)
	if errno == 0 {
		var set unix.Sigset_t
		const wordBits = 8 * unsafe.Sizeof(set.Val[0])
		n := uintptr(sig) - 1
		set.Val[n/wordBits] |= 1 << (n % wordBits)
		_ = unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil)
		_ = unix.Tgkill(unix.Getpid(), unix.Gettid(), sig)
	}

	// Still alive: the disposition could not be reset.
	os.Exit(2)
}
