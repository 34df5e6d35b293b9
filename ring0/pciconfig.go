package ring0

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// pciAddress packs a PCI config-space address in the CONFIG_ADDRESS layout,
// used here to identify a /sys/bus/pci/devices/0000:bb:dd.f/config file.
type pciAddress uint32

func (a pciAddress) busNumber() uint32      { return (uint32(a) >> 8) & 0xFF }
func (a pciAddress) deviceNumber() uint32   { return (uint32(a) >> 3) & 0x1F }
func (a pciAddress) functionNumber() uint32 { return uint32(a) & 0x7 }

// PCIAddress encodes (bus<<8) | ((device&0x1F)<<3) | (fn&7).
func PCIAddress(bus, device, fn uint32) uint32 {
	return (bus << 8) | ((device & 0x1F) << 3) | (fn & 7)
}

type pciAccess struct {
	mu    sync.Mutex
	files map[uint32]*os.File
}

func newPCIAccess() *pciAccess {
	return &pciAccess{files: map[uint32]*os.File{}}
}

func (p *pciAccess) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error

	for _, f := range p.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.files = map[uint32]*os.File{}

	return firstErr
}

func (p *pciAccess) configPath(addr uint32) string {
	a := pciAddress(addr)

	return filepath.Join("/sys/bus/pci/devices",
		fmt.Sprintf("0000:%02x:%02x.%x", a.busNumber(), a.deviceNumber(), a.functionNumber()),
		"config")
}

func (p *pciAccess) open(addr uint32) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.files[addr]; ok {
		return f, nil
	}

	f, err := os.OpenFile(p.configPath(addr), os.O_RDWR, 0)
	if err != nil {
		f, err = os.Open(p.configPath(addr))
		if err != nil {
			return nil, err
		}
	}

	p.files[addr] = f

	return f, nil
}

// ReadPCIConfig reads a little-endian uint32 register. addr ==
// InvalidPCIAddress never emits I/O traffic and returns (0, nil) so callers
// surface it as "no device" rather than a transport error.
func (f *Facade) ReadPCIConfig(addr uint32, reg uint32) (uint32, error) {
	if addr == InvalidPCIAddress {
		return 0, nil
	}

	fh, err := f.pci.open(addr)
	if err != nil {
		return 0, fmt.Errorf("ring0: pci config open: %w", err)
	}

	var buf [4]byte

	if _, err := fh.ReadAt(buf[:], int64(reg)); err != nil {
		return 0, fmt.Errorf("ring0: pci config read: %w", err)
	}

	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

// WritePCIConfig writes a little-endian uint32 register.
func (f *Facade) WritePCIConfig(addr uint32, reg uint32, v uint32) error {
	if addr == InvalidPCIAddress {
		return nil
	}

	fh, err := f.pci.open(addr)
	if err != nil {
		return fmt.Errorf("ring0: pci config open: %w", err)
	}

	buf := [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	if _, err := fh.WriteAt(buf[:], int64(reg)); err != nil {
		return fmt.Errorf("ring0: pci config write: %w", err)
	}

	return nil
}
