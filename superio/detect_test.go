package superio

import "testing"

// fakeLPC emulates a Super I/O chip behind an index/data port pair: a
// write to the index port latches the register address, reads/writes of
// the data port access that register. Entry-sequence bytes written to the
// index port also land in lastIndex, which is harmless for these tests.
type fakeLPC struct {
	indexPort uint16
	dataPort  uint16

	lastIndex uint8
	regs      map[uint8]uint8
}

func newFakeLPC(indexPort, dataPort uint16, regs map[uint8]uint8) *fakeLPC {
	return &fakeLPC{indexPort: indexPort, dataPort: dataPort, regs: regs}
}

func (f *fakeLPC) ReadIOPort(port uint16) (byte, error) {
	if port == f.dataPort {
		if v, ok := f.regs[f.lastIndex]; ok {
			return v, nil
		}

		return 0xFF, nil
	}

	return 0xFF, nil
}

func (f *fakeLPC) WriteIOPort(port uint16, v byte) error {
	switch port {
	case f.indexPort:
		f.lastIndex = v
	case f.dataPort:
		f.regs[f.lastIndex] = v
	}

	return nil
}

func portOver(f *fakeLPC) SingleBankPort {
	return NewSingleBankPort(f, SingleBankAddress{
		Regs: IndexDataRegisters{IndexRegOffset: uint8(f.indexPort), DataRegOffset: uint8(f.dataPort)},
	})
}

func TestDetectMissLeavesNoChips(t *testing.T) {
	t.Parallel()

	// Every register reads 0xFF: no vendor's ID table matches.
	fake := newFakeLPC(0x2E, 0x2F, map[uint8]uint8{})
	port := portOver(fake)

	if _, ok := detectWinbondNuvotonFintek(port); ok {
		t.Fatal("expected no Winbond/Nuvoton/Fintek chip on an empty bus")
	}

	if _, ok := detectIT87(port); ok {
		t.Fatal("expected no ITE chip on an empty bus")
	}
}

func TestDetectNCT6798D(t *testing.T) {
	t.Parallel()

	fake := newFakeLPC(0x2E, 0x2F, map[uint8]uint8{
		chipIDRegister:       0xD4,
		chipRevisionRegister: 0x2B,
		// hardware monitor base address 0x0A20, read twice for the
		// verify pass
		baseAddressRegister:     0x0A,
		baseAddressRegister + 1: 0x20,
		// I/O space lock bit clear
		nuvotonHardwareMonitorIOSpaceLock: 0x00,
	})

	d, ok := detectWinbondNuvotonFintek(portOver(fake))
	if !ok {
		t.Fatal("expected NCT6798D to be recognized")
	}

	if d.Chip != ChipNCT6798D {
		t.Fatalf("chip = %v, want NCT6798D", d.Chip)
	}

	if d.Family != FamilyNuvotonNCT6xxx {
		t.Fatalf("family = %v, want Nuvoton NCT6xxx", d.Family)
	}

	if d.Address != 0x0A20 {
		t.Fatalf("address = %#x, want 0x0A20", d.Address)
	}

	if d.Revision != 0x2B {
		t.Fatalf("revision = %#x, want 0x2B", d.Revision)
	}
}

func TestDetectRejectsMisalignedAddress(t *testing.T) {
	t.Parallel()

	fake := newFakeLPC(0x2E, 0x2F, map[uint8]uint8{
		chipIDRegister:       0xD4,
		chipRevisionRegister: 0x2B,
		// 0x0A23 fails the address & 0xF007 alignment check
		baseAddressRegister:               0x0A,
		baseAddressRegister + 1:           0x23,
		nuvotonHardwareMonitorIOSpaceLock: 0x00,
	})

	if _, ok := detectWinbondNuvotonFintek(portOver(fake)); ok {
		t.Fatal("expected misaligned hardware-monitor address to be rejected")
	}
}
