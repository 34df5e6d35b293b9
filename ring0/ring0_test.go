package ring0

import (
	"testing"
	"time"
)

func TestPCIAddressEncoding(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name             string
		bus, device, fn  uint32
		wantAddr         uint32
		wantBus, wantDev uint32
		wantFn           uint32
	}{
		{"zero", 0, 0, 0, 0, 0, 0, 0},
		{"typical", 0x01, 0x1F, 0x3, 0x1FB, 0x01, 0x1F, 0x3},
		{"device masked", 0x00, 0xFF, 0x0, 0xF8, 0x00, 0x1F, 0x0},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			addr := PCIAddress(tt.bus, tt.device, tt.fn)
			if addr != tt.wantAddr {
				t.Fatalf("PCIAddress(%#x,%#x,%#x) = %#x, want %#x", tt.bus, tt.device, tt.fn, addr, tt.wantAddr)
			}

			a := pciAddress(addr)
			if a.busNumber() != tt.wantBus || a.deviceNumber() != tt.wantDev || a.functionNumber() != tt.wantFn {
				t.Fatalf("decode(%#x) = (%d,%d,%d), want (%d,%d,%d)",
					addr, a.busNumber(), a.deviceNumber(), a.functionNumber(), tt.wantBus, tt.wantDev, tt.wantFn)
			}
		})
	}
}

func TestInvalidPCIAddressNeverTouchesIO(t *testing.T) {
	t.Parallel()

	f := &Facade{pci: newPCIAccess()}

	v, err := f.ReadPCIConfig(InvalidPCIAddress, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v != 0 {
		t.Fatalf("expected 0 for invalid pci address, got %#x", v)
	}
}

func TestNamedMutexExclusion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := lockDir
	lockDir = dir

	defer func() { lockDir = old }()

	m := NewNamedMutex("TestLock")

	unlock, ok := m.TryLock(50 * time.Millisecond)
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}

	defer unlock()

	m2 := NewNamedMutex("TestLock")
	if _, ok := m2.TryLock(10 * time.Millisecond); ok {
		t.Fatal("expected second TryLock to time out while first holder is locked")
	}
}
