package chips

import (
	"math"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

// Register layout shared by the NCT6779D through NCT6798D group, the one
// this driver implements. Earlier parts in the family (NCT6771F/NCT6776F)
// place their registers elsewhere and are not special-cased here; see
// DESIGN.md.
var (
	nuvotonVoltageRegisters = []uint16{
		0x480, 0x481, 0x482, 0x483, 0x484, 0x485, 0x486, 0x487,
		0x488, 0x489, 0x48A, 0x48B, 0x48C, 0x48D, 0x48E,
	}

	nuvotonFanCountRegisters = []uint16{0x4B0, 0x4B2, 0x4B4, 0x4B6, 0x4B8, 0x4BA, 0x4CC}
)

const (
	// nuvotonVoltageVBatRegister only reads back a live value while the
	// battery monitor enable bit is set in the monitor control register.
	nuvotonVoltageVBatRegister        = 0x488
	nuvotonVBatMonitorControlRegister = 0x005D
)

// nuvotonTempSource identifies the physical sensor a temperature register
// reads from: several registers in the table below can be wired by the
// BIOS to report the *same* physical source, and readTemperature must not
// publish that source twice. The numeric values are the chip's own 5-bit
// source-selector encoding.
type nuvotonTempSource int32

const (
	nuvotonSrcNone              nuvotonTempSource = 0
	nuvotonSrcSYSTIN            nuvotonTempSource = 1
	nuvotonSrcCPUTIN            nuvotonTempSource = 2
	nuvotonSrcAUXTIN0           nuvotonTempSource = 3
	nuvotonSrcAUXTIN1           nuvotonTempSource = 4
	nuvotonSrcAUXTIN2           nuvotonTempSource = 5
	nuvotonSrcAUXTIN3           nuvotonTempSource = 6
	nuvotonSrcAUXTIN4           nuvotonTempSource = 7
	nuvotonSrcSMBUSMASTER0      nuvotonTempSource = 8
	nuvotonSrcSMBUSMASTER1      nuvotonTempSource = 9
	nuvotonSrcPECI0             nuvotonTempSource = 16
	nuvotonSrcPECI1             nuvotonTempSource = 17
	nuvotonSrcPCHChipCPUMaxTemp nuvotonTempSource = 18
	nuvotonSrcPCHChipTemp       nuvotonTempSource = 19
	nuvotonSrcPCHCPUTemp        nuvotonTempSource = 20
	nuvotonSrcPCHMCHTemp        nuvotonTempSource = 21
	nuvotonSrcAgent0DIMM0       nuvotonTempSource = 22
	nuvotonSrcAgent0DIMM1       nuvotonTempSource = 23
	nuvotonSrcAgent1DIMM0       nuvotonTempSource = 24
	nuvotonSrcAgent1DIMM1       nuvotonTempSource = 25
	nuvotonSrcByteTemp0         nuvotonTempSource = 26
	nuvotonSrcByteTemp1         nuvotonTempSource = 27
	nuvotonSrcPECI0Cal          nuvotonTempSource = 28
	nuvotonSrcPECI1Cal          nuvotonTempSource = 29
	nuvotonSrcVirtualTemp       nuvotonTempSource = 31
)

// nuvotonTempEntry is one row of the per-channel temperature register
// table: reg holds the signed high byte (0 = no register, the row is an
// output slot only), halfReg/halfBit locate the extra half-degree bit,
// sourceReg (when non-zero) is read to learn which physical sensor the
// register currently reports instead of trusting the static source field,
// and altReg is a single signed-byte fallback register tried when no
// register produced a plausible reading for the row's source.
type nuvotonTempEntry struct {
	source    nuvotonTempSource
	reg       uint16
	halfReg   uint16
	halfBit   int
	sourceReg uint16
	altReg    uint16
}

// nuvotonTemperatureTable is the NCT6796D/NCT6796DR/NCT6797D/NCT6798D
// register table. The trailing register-less rows are output slots for
// sources only reachable through another row's dynamic source selector.
var nuvotonTemperatureTable = []nuvotonTempEntry{
	{source: nuvotonSrcPECI0, reg: 0x073, halfReg: 0x074, halfBit: 7, sourceReg: 0x100},
	{source: nuvotonSrcCPUTIN, reg: 0x075, halfReg: 0x076, halfBit: 7, sourceReg: 0x200, altReg: 0x491},
	{source: nuvotonSrcSYSTIN, reg: 0x077, halfReg: 0x078, halfBit: 7, sourceReg: 0x300, altReg: 0x490},
	{source: nuvotonSrcAUXTIN0, reg: 0x079, halfReg: 0x07A, halfBit: 7, sourceReg: 0x800, altReg: 0x492},
	{source: nuvotonSrcAUXTIN1, reg: 0x07B, halfReg: 0x07C, halfBit: 7, sourceReg: 0x900, altReg: 0x493},
	{source: nuvotonSrcAUXTIN2, reg: 0x07D, halfReg: 0x07E, halfBit: 7, sourceReg: 0xA00, altReg: 0x494},
	{source: nuvotonSrcAUXTIN3, reg: 0x4A0, halfReg: 0x49E, halfBit: 6, sourceReg: 0xB00, altReg: 0x495},
	{source: nuvotonSrcAUXTIN4, reg: 0x027, halfBit: -1, sourceReg: 0x621},
	{source: nuvotonSrcSMBUSMASTER0, reg: 0x150, halfReg: 0x151, halfBit: 7, sourceReg: 0x622},
	{source: nuvotonSrcSMBUSMASTER1, reg: 0x670, halfBit: -1, sourceReg: 0xC26},
	{source: nuvotonSrcPECI1, reg: 0x672, halfBit: -1, sourceReg: 0xC27},
	{source: nuvotonSrcPCHChipCPUMaxTemp, reg: 0x674, halfBit: -1, sourceReg: 0xC28, altReg: 0x400},
	{source: nuvotonSrcPCHChipTemp, reg: 0x676, halfBit: -1, sourceReg: 0xC29, altReg: 0x401},
	{source: nuvotonSrcPCHCPUTemp, reg: 0x678, halfBit: -1, sourceReg: 0xC2A, altReg: 0x402},
	{source: nuvotonSrcPCHMCHTemp, reg: 0x67A, halfBit: -1, sourceReg: 0xC2B, altReg: 0x404},
	{source: nuvotonSrcAgent0DIMM0},
	{source: nuvotonSrcAgent0DIMM1},
	{source: nuvotonSrcAgent1DIMM0},
	{source: nuvotonSrcAgent1DIMM1},
	{source: nuvotonSrcByteTemp0},
	{source: nuvotonSrcByteTemp1},
	{source: nuvotonSrcPECI0Cal},
	{source: nuvotonSrcPECI1Cal},
	{source: nuvotonSrcVirtualTemp},
}

// nuvotonPWMRegisters holds the current duty output; writes go through the
// command register and take effect only while the control-mode register is
// zeroed into manual mode.
var (
	nuvotonPWMRegisters            = []uint16{0x001, 0x003, 0x011, 0x013, 0x015, 0x017, 0x029}
	nuvotonPWMCommandRegisters     = []uint16{0x109, 0x209, 0x309, 0x809, 0x909, 0xA09, 0xB09}
	nuvotonFanControlModeRegisters = []uint16{0x102, 0x202, 0x302, 0x802, 0x902, 0xA02, 0xB02}
)

// Nuvoton implements superio.Driver for the NCT6xxx family.
type Nuvoton struct {
	port superio.PortWithBanks

	initialFanControlMode [7]uint8
	initialFanPWMCommand  [7]uint8
	restoreRequired       [7]bool
}

// NewNuvoton constructs the NCT6xxx driver.
func NewNuvoton(port superio.PortWithBanks) *Nuvoton {
	return &Nuvoton{port: port}
}

func (d *Nuvoton) ReadSIO(t sensors.SensorType, src int) (float64, error) {
	switch t {
	case sensors.Voltage:
		return d.readVoltage(src)
	case sensors.Temperature:
		return d.readTemperature(src)
	case sensors.Fan:
		return d.readFan(src)
	case sensors.PWM:
		return d.readPWM(src)
	default:
		return 0, sensors.ErrNotSupported
	}
}

func (d *Nuvoton) readVoltage(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonVoltageRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByteAddr(nuvotonVoltageRegisters[src])
	if err != nil {
		return 0, err
	}

	value := 0.008 * float64(raw)
	if value <= 0 {
		return math.NaN(), nil
	}

	if nuvotonVoltageRegisters[src] == nuvotonVoltageVBatRegister {
		ctrl, err := d.port.ReadByteAddr(nuvotonVBatMonitorControlRegister)
		if err != nil {
			return 0, err
		}

		if ctrl&0x01 == 0 {
			return math.NaN(), nil
		}
	}

	return value, nil
}

// nuvotonRawTemp holds the bytes read for one temperature table entry
// before the source-dedup pass interprets them. Splitting the port I/O
// from the dedup arithmetic keeps the latter a pure function: the
// superio.Driver interface has no cross-call batching, so readTemperature
// re-reads and re-resolves the whole table on every call, but the
// resolution logic itself doesn't need to touch the port at all.
type nuvotonRawTemp struct {
	hi         uint8
	half       uint8
	sourceByte uint8
	altByte    uint8
}

func (d *Nuvoton) readTemperature(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonTemperatureTable) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raws := make([]nuvotonRawTemp, len(nuvotonTemperatureTable))

	for i, ts := range nuvotonTemperatureTable {
		if ts.reg != 0 {
			hi, err := d.port.ReadByteAddr(ts.reg)
			if err != nil {
				return 0, err
			}

			raws[i].hi = hi

			if ts.halfBit > 0 {
				half, err := d.port.ReadByteAddr(ts.halfReg)
				if err != nil {
					return 0, err
				}

				raws[i].half = half
			}

			if ts.sourceReg != 0 {
				sb, err := d.port.ReadByteAddr(ts.sourceReg)
				if err != nil {
					return 0, err
				}

				raws[i].sourceByte = sb
			}
		}

		if ts.altReg != 0 {
			ab, err := d.port.ReadByteAddr(ts.altReg)
			if err != nil {
				return 0, err
			}

			raws[i].altByte = ab
		}
	}

	return resolveNuvotonTemperatures(nuvotonTemperatureTable, raws)[src], nil
}

// resolveNuvotonTemperatures decodes every table entry's raw bytes and
// applies the two-pass source dedup. First pass, in table order: decode
// the half-degree composite, resolve the register's current source (the
// dynamic selector when the row has one, the static field otherwise),
// skip registers whose source some earlier register already claimed, and
// write the reading into every row whose static source matches -- so a
// register wired to another row's source lands in that row's output
// channel. Only an in-range reading claims its source; an out-of-range one
// publishes NaN but leaves the source open for a later register. Second
// pass: rows with an alternate single-byte register, whose source no
// register claimed, take that byte instead.
func resolveNuvotonTemperatures(table []nuvotonTempEntry, raws []nuvotonRawTemp) []float64 {
	values := make([]float64, len(table))
	for i := range values {
		values[i] = math.NaN()
	}

	var sourceMask uint64

	for i, ts := range table {
		if ts.reg == 0 {
			continue
		}

		// The 16-bit composite value is (signed hi << 1) | half bit,
		// halved back down to a half-degree-resolution reading.
		raw := int32(int8(raws[i].hi)) << 1

		if ts.halfBit > 0 {
			raw |= int32((raws[i].half >> uint(ts.halfBit)) & 0x1)
		}

		source := ts.source
		if ts.sourceReg != 0 {
			source = nuvotonTempSource(raws[i].sourceByte & 0x1F)
		}

		if sourceMask&(1<<uint(source)) != 0 {
			continue
		}

		t := 0.5 * float64(raw)
		if t > 125 || t < -55 {
			t = math.NaN()
		} else {
			sourceMask |= 1 << uint(source)
		}

		for j := range table {
			if table[j].source == source {
				values[j] = t
			}
		}
	}

	for i, ts := range table {
		if ts.altReg == 0 {
			continue
		}

		if sourceMask&(1<<uint(ts.source)) != 0 {
			continue
		}

		t := float64(int8(raws[i].altByte))
		if t > 125 || t <= 0 {
			t = math.NaN()
		}

		values[i] = t
	}

	return values
}

// minFanCount/maxFanCount bound the NCT677x 13-bit fan tachometer counter:
// a count at or above maxFanCount means "no rotation detected"
// (output 0 RPM, not +Inf), a count below minFanCount means the reading
// has not stabilized yet (NaN).
const (
	minFanCount = 0x15
	maxFanCount = 0x1FFF
)

func (d *Nuvoton) readFan(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonFanCountRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	hi, err := d.port.ReadByteAddr(nuvotonFanCountRegisters[src])
	if err != nil {
		return 0, err
	}

	lo, err := d.port.ReadByteAddr(nuvotonFanCountRegisters[src] + 1)
	if err != nil {
		return 0, err
	}

	count := int(hi)<<5 | int(lo&0x1F)

	return decodeNuvotonFanRPM(count), nil
}

// decodeNuvotonFanRPM converts a 13-bit tachometer counter into RPM.
func decodeNuvotonFanRPM(count int) float64 {
	switch {
	case count >= maxFanCount:
		return 0
	case count < minFanCount:
		return math.NaN()
	default:
		return 1.35e6 / float64(count*2)
	}
}

func (d *Nuvoton) readPWM(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonPWMRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByteAddr(nuvotonPWMRegisters[src])
	if err != nil {
		return 0, err
	}

	return math.Round(float64(raw) * 100 / 255), nil
}

// WriteSIO sets a PWM channel's software duty cycle in percent. Writing NaN
// restores the control-mode and command registers captured at the channel's
// first write; the first finite write captures them and switches the
// channel into manual mode.
func (d *Nuvoton) WriteSIO(t sensors.SensorType, src int, value float64) error {
	if t != sensors.PWM {
		return sensors.ErrNotSupported
	}

	if src < 0 || src >= len(nuvotonPWMCommandRegisters) {
		return sensors.ErrChannelOutOfRange
	}

	if math.IsNaN(value) {
		return d.restoreFanPWMControl(src)
	}

	if err := d.saveFanPWMControl(src); err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonFanControlModeRegisters[src], 0); err != nil {
		return err
	}

	return d.port.WriteByteAddr(nuvotonPWMCommandRegisters[src], uint8(value*255/100))
}

func (d *Nuvoton) saveFanPWMControl(src int) error {
	if d.restoreRequired[src] {
		return nil
	}

	mode, err := d.port.ReadByteAddr(nuvotonFanControlModeRegisters[src])
	if err != nil {
		return err
	}

	command, err := d.port.ReadByteAddr(nuvotonPWMCommandRegisters[src])
	if err != nil {
		return err
	}

	d.initialFanControlMode[src] = mode
	d.initialFanPWMCommand[src] = command
	d.restoreRequired[src] = true

	return nil
}

func (d *Nuvoton) restoreFanPWMControl(src int) error {
	if !d.restoreRequired[src] {
		return nil
	}

	if err := d.port.WriteByteAddr(nuvotonFanControlModeRegisters[src], d.initialFanControlMode[src]); err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonPWMCommandRegisters[src], d.initialFanPWMCommand[src]); err != nil {
		return err
	}

	d.restoreRequired[src] = false

	return nil
}

// Close restores fan control on every channel that was ever written.
func (d *Nuvoton) Close() error {
	var firstErr error

	for src := range nuvotonPWMCommandRegisters {
		if err := d.restoreFanPWMControl(src); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
