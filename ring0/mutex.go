package ring0

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout names the condition of a lock not being free within the
// requested timeout. TryLock reports that condition as ok == false rather
// than as an error.
var ErrLockTimeout = errors.New("ring0: lock timeout")

// lockDir holds the advisory lock files. Linux has no kernel-global named
// mutex the way Win32's CreateMutex(name) does, so the named cross-process
// lock is emulated with flock(2) on a well-known path -- the lock file's
// basename preserves the Win32 global mutex name other vendor tools use (e.g.
// "Global\\Access_ISABUS.HTP.Method" -> "Access_ISABUS.HTP.Method") so any other
// tool honoring the same convention still serializes against us.
var lockDir = "/var/lock/gohwmon"

// NamedMutex is a process-wide AND cross-process advisory lock.
type NamedMutex struct {
	name string

	mu   sync.Mutex
	file *os.File
}

// NewNamedMutex creates a lock identified by name. The lock file is created
// lazily on first TryLock/Lock.
func NewNamedMutex(name string) *NamedMutex {
	return &NamedMutex{name: name}
}

func (m *NamedMutex) path() string {
	return filepath.Join(lockDir, m.name+".lock")
}

func (m *NamedMutex) ensureOpen() error {
	if m.file != nil {
		return nil
	}

	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(m.path(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}

	m.file = f

	return nil
}

// TryLock acquires the lock within timeout, returning an unlock closure and
// true on success, or (nil, false) if the window elapsed. Callers treat a
// miss as a transient hardware failure, never fatal.
func (m *NamedMutex) TryLock(timeout time.Duration) (unlock func(), ok bool) {
	m.mu.Lock()

	if err := m.ensureOpen(); err != nil {
		m.mu.Unlock()

		return nil, false
	}

	deadline := time.Now().Add(timeout)

	for {
		err := unix.Flock(int(m.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(int(m.file.Fd()), unix.LOCK_UN)
				m.mu.Unlock()
			}, true
		}

		if time.Now().After(deadline) {
			m.mu.Unlock()

			return nil, false
		}

		time.Sleep(time.Millisecond)
	}
}

// Lock acquires the lock within timeout or panics. Reserved for call sites
// that have no sensible fallback if the bus is genuinely unavailable.
func (m *NamedMutex) Lock(timeout time.Duration) func() {
	unlock, ok := m.TryLock(timeout)
	if !ok {
		panic(fmt.Sprintf("ring0: could not acquire lock %q within %s", m.name, timeout))
	}

	return unlock
}
