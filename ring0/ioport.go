package ring0

import (
	"fmt"
	"os"
	"sync"
)

// ioPortAccess serializes access to /dev/port, the Linux analogue of the
// x86 in/out instructions (pread/pwrite at offset == port number).
type ioPortAccess struct {
	mu sync.Mutex
	f  *os.File
}

func newIOPortAccess() *ioPortAccess {
	return &ioPortAccess{}
}

func (p *ioPortAccess) open() (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f != nil {
		return p.f, nil
	}

	f, err := os.OpenFile("/dev/port", os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	p.f = f

	return f, nil
}

func (p *ioPortAccess) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return nil
	}

	err := p.f.Close()
	p.f = nil

	return err
}

// ReadIOPort reads a single byte from port.
func (f *Facade) ReadIOPort(port uint16) (byte, error) {
	fh, err := f.ioport.open()
	if err != nil {
		return 0, fmt.Errorf("ring0: open /dev/port: %w", err)
	}

	var buf [1]byte
	if _, err := fh.ReadAt(buf[:], int64(port)); err != nil {
		return 0, fmt.Errorf("ring0: read io port 0x%x: %w", port, err)
	}

	return buf[0], nil
}

// WriteIOPort writes a single byte to port.
func (f *Facade) WriteIOPort(port uint16, v byte) error {
	fh, err := f.ioport.open()
	if err != nil {
		return fmt.Errorf("ring0: open /dev/port: %w", err)
	}

	if _, err := fh.WriteAt([]byte{v}, int64(port)); err != nil {
		return fmt.Errorf("ring0: write io port 0x%x: %w", port, err)
	}

	return nil
}
