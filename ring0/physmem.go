package ring0

import (
	"fmt"
	"os"
	"sync"
)

// physMemAccess wraps /dev/mem for physical-memory window reads.
type physMemAccess struct {
	mu sync.Mutex
	f  *os.File
}

func newPhysMemAccess() *physMemAccess {
	return &physMemAccess{}
}

func (m *physMemAccess) open() (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.f != nil {
		return m.f, nil
	}

	f, err := os.OpenFile("/dev/mem", os.O_RDWR, 0)
	if err != nil {
		f, err = os.Open("/dev/mem")
		if err != nil {
			return nil, err
		}
	}

	m.f = f

	return f, nil
}

func (m *physMemAccess) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.f == nil {
		return nil
	}

	err := m.f.Close()
	m.f = nil

	return err
}

// ReadMemory fills buf from physical address physAddr.
func (f *Facade) ReadMemory(physAddr uint64, buf []byte) error {
	fh, err := f.mem.open()
	if err != nil {
		return fmt.Errorf("ring0: open /dev/mem: %w", err)
	}

	if _, err := fh.ReadAt(buf, int64(physAddr)); err != nil {
		return fmt.Errorf("ring0: read physical memory at 0x%x: %w", physAddr, err)
	}

	return nil
}
