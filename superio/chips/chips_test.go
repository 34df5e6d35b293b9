package chips

import (
	"math"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

func TestITEReadSIOUnsupportedType(t *testing.T) {
	t.Parallel()

	d := &ITE{voltageGain: 0.016}

	if _, err := d.ReadSIO(sensors.Power, 0); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestITEReadFanOutOfRange(t *testing.T) {
	t.Parallel()

	d := &ITE{has16BitFanCtr: true}

	if _, err := d.readFan(99); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}

func TestNuvotonWriteSIORejectsNonPWM(t *testing.T) {
	t.Parallel()

	d := &Nuvoton{}

	if err := d.WriteSIO(sensors.Temperature, 0, 1); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestNuvotonFanCountAtCeilingReportsZeroRPM(t *testing.T) {
	t.Parallel()

	if got := decodeNuvotonFanRPM(0x1FFF); got != 0 {
		t.Fatalf("decodeNuvotonFanRPM(0x1FFF) = %v, want 0", got)
	}
}

func TestNuvotonFanCountBelowMinimumIsNaN(t *testing.T) {
	t.Parallel()

	if got := decodeNuvotonFanRPM(minFanCount - 1); !math.IsNaN(got) {
		t.Fatalf("decodeNuvotonFanRPM(%d) = %v, want NaN", minFanCount-1, got)
	}
}

func TestNuvotonFanCountMidRangeConverts(t *testing.T) {
	t.Parallel()

	got := decodeNuvotonFanRPM(675)
	want := 1.35e6 / float64(675*2)

	if got != want {
		t.Fatalf("decodeNuvotonFanRPM(675) = %v, want %v", got, want)
	}
}

func TestNuvotonTemperatureSourceDeduplication(t *testing.T) {
	t.Parallel()

	// Two registers statically wired to SYSTIN: the first (in table order)
	// claims the source, and the second's garbage 99C reading must never
	// surface -- both output channels carry the first register's value.
	table := []nuvotonTempEntry{
		{source: nuvotonSrcSYSTIN, reg: 0x077},
		{source: nuvotonSrcSYSTIN, reg: 0x075},
	}
	raws := []nuvotonRawTemp{
		{hi: uint8(int8(24))}, // ((24 << 1) | 0) * 0.5 = 24.0
		{hi: uint8(int8(99))},
	}

	values := resolveNuvotonTemperatures(table, raws)

	if values[0] != 24 {
		t.Fatalf("values[0] = %v, want 24", values[0])
	}

	if values[1] != values[0] {
		t.Fatalf("values[1] = %v, want %v (deduplicated to the first claimant)", values[1], values[0])
	}
}

func TestNuvotonTemperatureDynamicSourceRouting(t *testing.T) {
	t.Parallel()

	// The first register's dynamic source selector reads back CPUTIN, so
	// its value lands in the CPUTIN row's output channel, not its own --
	// and the CPUTIN register's own reading is discarded because the
	// source was already claimed.
	table := []nuvotonTempEntry{
		{source: nuvotonSrcPECI0, reg: 0x073, sourceReg: 0x100},
		{source: nuvotonSrcCPUTIN, reg: 0x075, sourceReg: 0x200},
	}
	raws := []nuvotonRawTemp{
		{hi: uint8(int8(30)), sourceByte: uint8(nuvotonSrcCPUTIN)},
		{hi: uint8(int8(80)), sourceByte: uint8(nuvotonSrcCPUTIN)},
	}

	values := resolveNuvotonTemperatures(table, raws)

	if values[1] != 30 {
		t.Fatalf("values[1] = %v, want 30 (routed by resolved source), not its own 80", values[1])
	}

	if !math.IsNaN(values[0]) {
		t.Fatalf("values[0] = %v, want NaN (no register reported PECI0)", values[0])
	}
}

func TestNuvotonTemperatureHalfDegreeBit(t *testing.T) {
	t.Parallel()

	table := []nuvotonTempEntry{
		{source: nuvotonSrcSYSTIN, reg: 0x077, halfReg: 0x078, halfBit: 7},
	}
	raws := []nuvotonRawTemp{
		{hi: uint8(int8(40)), half: 1 << 7},
	}

	values := resolveNuvotonTemperatures(table, raws)

	if values[0] != 40.5 {
		t.Fatalf("values[0] = %v, want 40.5", values[0])
	}
}

func TestNuvotonTemperatureDistinctSourcesBothPublish(t *testing.T) {
	t.Parallel()

	table := []nuvotonTempEntry{
		{source: nuvotonSrcSYSTIN, reg: 0x077},
		{source: nuvotonSrcCPUTIN, reg: 0x075},
	}
	raws := []nuvotonRawTemp{
		{hi: uint8(int8(24))},
		{hi: uint8(int8(55))},
	}

	values := resolveNuvotonTemperatures(table, raws)

	if values[0] != 24 || values[1] != 55 {
		t.Fatalf("values = %v, want [24 55] (distinct sources both publish)", values)
	}
}

func TestNuvotonTemperatureAlternateRegisterFallback(t *testing.T) {
	t.Parallel()

	// The primary register's reading is out of range, so the source stays
	// unclaimed and the second pass takes the row's single-byte alternate
	// register instead.
	table := []nuvotonTempEntry{
		{source: nuvotonSrcCPUTIN, reg: 0x075, altReg: 0x491},
	}
	outOfRange := int8(-100)
	raws := []nuvotonRawTemp{
		{hi: uint8(outOfRange), altByte: 45},
	}

	values := resolveNuvotonTemperatures(table, raws)

	if values[0] != 45 {
		t.Fatalf("values[0] = %v, want 45 (from the alternate register)", values[0])
	}
}

func TestNuvotonTemperatureSkipsRegisterlessRows(t *testing.T) {
	t.Parallel()

	// Output-slot-only rows (reg 0) publish nothing unless some register's
	// dynamic selector routes a value to their source.
	table := []nuvotonTempEntry{
		{source: nuvotonSrcPECI0, reg: 0x073, sourceReg: 0x100},
		{source: nuvotonSrcVirtualTemp},
	}
	raws := []nuvotonRawTemp{
		{hi: uint8(int8(50)), sourceByte: uint8(nuvotonSrcVirtualTemp)},
		{},
	}

	values := resolveNuvotonTemperatures(table, raws)

	if values[1] != 50 {
		t.Fatalf("values[1] = %v, want 50 (routed into the register-less slot)", values[1])
	}
}

// fakeBankedPort emulates a banked Super I/O monitor block behind one
// index/data pair at offsets 0x05/0x06: writing the bank-select register
// (0x4E) switches which bank subsequent register accesses hit.
type fakeBankedPort struct {
	lastIndex uint8
	bank      uint8
	regs      map[uint16]uint8
}

func newFakeBankedPort() *fakeBankedPort {
	return &fakeBankedPort{regs: map[uint16]uint8{}}
}

func (f *fakeBankedPort) ReadIOPort(port uint16) (byte, error) {
	if port != 0x06 {
		return 0xFF, nil
	}

	if f.lastIndex == 0x4E {
		return f.bank, nil
	}

	return f.regs[uint16(f.bank)<<8|uint16(f.lastIndex)], nil
}

func (f *fakeBankedPort) WriteIOPort(port uint16, v byte) error {
	switch port {
	case 0x05:
		f.lastIndex = v
	case 0x06:
		if f.lastIndex == 0x4E {
			f.bank = v
		} else {
			f.regs[uint16(f.bank)<<8|uint16(f.lastIndex)] = v
		}
	}

	return nil
}

func TestNuvotonPWMWriteSavesAndRestores(t *testing.T) {
	t.Parallel()

	fake := newFakeBankedPort()
	fake.regs[0x102] = 0x95 // firmware's fan control mode
	fake.regs[0x109] = 0x40 // firmware's duty command

	regs := superio.IndexDataRegisters{IndexRegOffset: 0x05, DataRegOffset: 0x06}
	port := superio.NewPortWithBanks(fake, superio.AddressWithBank{
		SingleBankAddress:     superio.SingleBankAddress{Regs: regs},
		BankSelectionPorts:    regs,
		BankSelectionRegister: 0x4E,
	})

	d := NewNuvoton(port)

	if err := d.WriteSIO(sensors.PWM, 0, 50); err != nil {
		t.Fatalf("WriteSIO: %v", err)
	}

	if fake.regs[0x102] != 0 {
		t.Fatalf("control mode after write = %#x, want 0 (manual)", fake.regs[0x102])
	}

	if fake.regs[0x109] != uint8(50*255/100) {
		t.Fatalf("duty command after write = %#x, want %#x", fake.regs[0x109], uint8(50*255/100))
	}

	// NaN restores what the firmware had configured.
	if err := d.WriteSIO(sensors.PWM, 0, math.NaN()); err != nil {
		t.Fatalf("WriteSIO(NaN): %v", err)
	}

	if fake.regs[0x102] != 0x95 || fake.regs[0x109] != 0x40 {
		t.Fatalf("after restore mode=%#x duty=%#x, want 0x95/0x40", fake.regs[0x102], fake.regs[0x109])
	}
}

func TestNuvotonCloseRestoresWrittenChannels(t *testing.T) {
	t.Parallel()

	fake := newFakeBankedPort()
	fake.regs[0x102] = 0x95
	fake.regs[0x109] = 0x40

	regs := superio.IndexDataRegisters{IndexRegOffset: 0x05, DataRegOffset: 0x06}
	port := superio.NewPortWithBanks(fake, superio.AddressWithBank{
		SingleBankAddress:     superio.SingleBankAddress{Regs: regs},
		BankSelectionPorts:    regs,
		BankSelectionRegister: 0x4E,
	})

	d := NewNuvoton(port)

	if err := d.WriteSIO(sensors.PWM, 0, 100); err != nil {
		t.Fatalf("WriteSIO: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if fake.regs[0x102] != 0x95 || fake.regs[0x109] != 0x40 {
		t.Fatalf("after Close mode=%#x duty=%#x, want 0x95/0x40", fake.regs[0x102], fake.regs[0x109])
	}
}

func TestNuvotonVoltageReadOverFakePort(t *testing.T) {
	t.Parallel()

	fake := newFakeBankedPort()
	fake.regs[0x480] = 150 // 150 * 0.008 = 1.2V

	regs := superio.IndexDataRegisters{IndexRegOffset: 0x05, DataRegOffset: 0x06}
	port := superio.NewPortWithBanks(fake, superio.AddressWithBank{
		SingleBankAddress:     superio.SingleBankAddress{Regs: regs},
		BankSelectionPorts:    regs,
		BankSelectionRegister: 0x4E,
	})

	d := NewNuvoton(port)

	v, err := d.ReadSIO(sensors.Voltage, 0)
	if err != nil {
		t.Fatalf("ReadSIO: %v", err)
	}

	if v != 1.2 {
		t.Fatalf("voltage = %v, want 1.2", v)
	}
}
