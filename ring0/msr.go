package ring0

import (
	"fmt"
	"os"
	"sync"
)

// msrAccess holds one *os.File per logical CPU's /dev/cpu/N/msr, opened
// lazily on first access.
type msrAccess struct {
	mu    sync.Mutex
	files map[int]*os.File
}

func newMSRAccess() *msrAccess {
	return &msrAccess{files: map[int]*os.File{}}
}

func (m *msrAccess) fileFor(cpu int) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.files[cpu]; ok {
		return f, nil
	}

	f, err := os.OpenFile(fmt.Sprintf("/dev/cpu/%d/msr", cpu), os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	m.files[cpu] = f

	return f, nil
}

func (m *msrAccess) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error

	for _, f := range m.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.files = map[int]*os.File{}

	return firstErr
}

// ReadMSR reads a model-specific register on logical CPU 0, returning the
// raw 64-bit value split into (eax, edx) the way rdmsr does.
func (f *Facade) ReadMSR(index uint32) (eax, edx uint32, err error) {
	return f.ReadMSROn(0, index)
}

// ReadMSROn reads index on the given logical CPU without changing the
// caller's scheduling affinity.
func (f *Facade) ReadMSROn(cpu int, index uint32) (eax, edx uint32, err error) {
	fh, err := f.msr.fileFor(cpu)
	if err != nil {
		return 0, 0, fmt.Errorf("ring0: open msr device for cpu %d: %w", cpu, err)
	}

	var buf [8]byte

	if _, err := fh.ReadAt(buf[:], int64(index)); err != nil {
		return 0, 0, fmt.Errorf("ring0: read msr 0x%x on cpu %d: %w", index, cpu, err)
	}

	eax = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	edx = uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24

	return eax, edx, nil
}

// WriteMSR writes a model-specific register on logical CPU 0.
func (f *Facade) WriteMSR(index uint32, eax, edx uint32) error {
	return f.WriteMSROn(0, index, eax, edx)
}

// WriteMSROn writes index on the given logical CPU.
func (f *Facade) WriteMSROn(cpu int, index uint32, eax, edx uint32) error {
	fh, err := f.msr.fileFor(cpu)
	if err != nil {
		return fmt.Errorf("ring0: open msr device for cpu %d: %w", cpu, err)
	}

	buf := [8]byte{
		byte(eax), byte(eax >> 8), byte(eax >> 16), byte(eax >> 24),
		byte(edx), byte(edx >> 8), byte(edx >> 16), byte(edx >> 24),
	}

	if _, err := fh.WriteAt(buf[:], int64(index)); err != nil {
		return fmt.Errorf("ring0: write msr 0x%x on cpu %d: %w", index, cpu, err)
	}

	return nil
}

// ReadMSRAffinity switches to affinity, reads index, and restores the
// previous affinity on return.
func (f *Facade) ReadMSRAffinity(affinity GroupAffinity, index uint32) (eax, edx uint32, err error) {
	restore, err := affinity.Pin()
	if err != nil {
		return 0, 0, fmt.Errorf("ring0: pin affinity: %w", err)
	}
	defer restore()

	return f.ReadMSROn(affinity.CPU, index)
}

// WriteMSRAffinity is the write counterpart of ReadMSRAffinity.
func (f *Facade) WriteMSRAffinity(affinity GroupAffinity, index uint32, eax, edx uint32) error {
	restore, err := affinity.Pin()
	if err != nil {
		return fmt.Errorf("ring0: pin affinity: %w", err)
	}
	defer restore()

	return f.WriteMSROn(affinity.CPU, index, eax, edx)
}
