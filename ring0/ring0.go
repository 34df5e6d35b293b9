// Package ring0 is the single process-wide facade mediating all privileged
// hardware access: MSRs, I/O ports, PCI configuration space, and physical
// memory. It is the only package allowed to touch the underlying device
// files; every other driver package routes through it.
//
// On Linux there is no single kernel driver analogous to WinRing0/InpOut;
// the facade instead opens the handful of standard privileged device files
// (/dev/cpu/N/msr, /dev/port, /sys/bus/pci/.../config, /dev/mem) lazily and
// keeps them open until the last Close releases the facade.
package ring0

import (
	"fmt"
	"sync"
)

// InvalidPCIAddress is the sentinel "no device here" PCI address.
const InvalidPCIAddress uint32 = 0xFFFF_FFFF

// Facade is the process-wide privileged access point. Obtain one with Open;
// Close decrements the reference count and only releases underlying file
// descriptors once it reaches zero.
type Facade struct {
	mu       sync.Mutex
	refCount int

	msr    *msrAccess
	ioport *ioPortAccess
	pci    *pciAccess
	mem    *physMemAccess

	ISABus *NamedMutex
	PCIBus *NamedMutex
	SMBus  *NamedMutex
	EC     *NamedMutex
}

var (
	singleton     *Facade
	singletonOnce sync.Once
	singletonMu   sync.Mutex
)

// Open returns the process singleton Facade, constructing it on first call
// and incrementing its reference count on every call. Construction opens no
// device file (each is opened on first use), so Open does not fail; an
// unavailable device surfaces as an error from the access method that
// needs it.
func Open() (*Facade, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	var constructErr error

	singletonOnce.Do(func() {
		f := &Facade{
			msr:    newMSRAccess(),
			ioport: newIOPortAccess(),
			pci:    newPCIAccess(),
			mem:    newPhysMemAccess(),
			ISABus: LockISABus,
			PCIBus: LockPCIBus,
			SMBus:  LockSMBus,
			EC:     LockEC,
		}
		singleton = f
	})

	if singleton == nil {
		return nil, constructErr
	}

	singleton.mu.Lock()
	singleton.refCount++
	singleton.mu.Unlock()

	return singleton, nil
}

// Close decrements the reference count, releasing every open device handle
// once it reaches zero. It never panics on an unbalanced call; it simply
// clamps at zero.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refCount == 0 {
		return nil
	}

	f.refCount--
	if f.refCount > 0 {
		return nil
	}

	var errs []error

	if err := f.msr.close(); err != nil {
		errs = append(errs, err)
	}

	if err := f.ioport.close(); err != nil {
		errs = append(errs, err)
	}

	if err := f.pci.close(); err != nil {
		errs = append(errs, err)
	}

	if err := f.mem.close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("ring0: close: %v", errs)
	}

	return nil
}

// resetForTest tears the singleton down so package-level tests can exercise
// Open/Close from a clean state. Only called from _test.go files.
func resetForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	singleton = nil
	singletonOnce = sync.Once{}
}
