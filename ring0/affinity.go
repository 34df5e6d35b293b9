package ring0

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// GroupAffinity pins the calling OS thread to a single logical CPU. Linux
// has no processor-group indirection the way Windows does, so a (group,
// mask) pair collapses to a plain CPU index.
type GroupAffinity struct {
	CPU int
}

// Pin locks the calling goroutine to its OS thread, switches that thread's
// scheduling affinity to a.CPU, and returns a restore closure that must be
// called to release both the affinity mask and the thread lock.
func (a GroupAffinity) Pin() (restore func(), err error) {
	runtime.LockOSThread()

	var previous unix.CPUSet
	if err := unix.SchedGetaffinity(0, &previous); err != nil {
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("ring0: get current affinity: %w", err)
	}

	var next unix.CPUSet

	next.Set(a.CPU)

	if err := unix.SchedSetaffinity(0, &next); err != nil {
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("ring0: set affinity to cpu %d: %w", a.CPU, err)
	}

	return func() {
		_ = unix.SchedSetaffinity(0, &previous)
		runtime.UnlockOSThread()
	}, nil
}
