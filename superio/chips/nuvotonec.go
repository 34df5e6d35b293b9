package chips

import (
	"math"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

// NCT6687D/NCT6683D register file. These parts put the hardware monitor
// behind an EC-style paged register space rather than the classic NCT679x
// bank layout. Fan values come back as full 16-bit words; voltages are
// 12-bit readings spread over two registers.
var (
	nuvotonECVoltageRegisters = []uint16{
		0x120, 0x122, 0x124, 0x126, 0x128, 0x12A, 0x12C,
		0x12E, 0x130, 0x13A, 0x13E, 0x136, 0x138, 0x13C,
	}
	nuvotonECTemperatureRegisters = []uint16{0x100, 0x102, 0x104, 0x106, 0x108, 0x10A, 0x10C}
	nuvotonECFanRPMRegisters      = []uint16{0x140, 0x142, 0x144, 0x146, 0x148, 0x14A, 0x14C, 0x14E}
	nuvotonECPWMOutRegisters      = []uint16{0x160, 0x161, 0x162, 0x163, 0x164, 0x165, 0x166, 0x167}
	nuvotonECPWMCommandRegisters  = []uint16{0xA28, 0xA29, 0xA2A, 0xA2B, 0xA2C, 0xA2D, 0xA2E, 0xA2F}
)

const (
	nuvotonECFanControlModeRegister = 0xA00
	nuvotonECPWMRequestRegister     = 0xA01
	nuvotonECInitRegister           = 0x180

	// nuvotonECSettleDelay is the post-request pause the firmware needs
	// before it acknowledges a fan-control handoff.
	nuvotonECSettleDelay = 50 * time.Millisecond
)

// NuvotonEC implements superio.Driver for the NCT6687D/NCT6683D. PWM
// writes go through a request/acknowledge handshake against the firmware
// (request 0x80 to take a channel, 0x40 to commit), each side of which
// needs a settle delay.
type NuvotonEC struct {
	port superio.PortWithBanks
	chip superio.Chip

	initialFanControlMode [8]uint8 // the channel's mode bit as the firmware had it
	initialFanPWMCommand  [8]uint8
	restoreRequired       [8]bool
}

// NewNuvotonEC constructs the NCT6687D/NCT6683D driver, running the
// one-time monitor enable (init register bit 7) and SIO voltage source
// selection writes.
func NewNuvotonEC(port superio.PortWithBanks, chip superio.Chip) *NuvotonEC {
	d := &NuvotonEC{port: port, chip: chip}

	if data, err := port.ReadByteAddr(nuvotonECInitRegister); err == nil && data&0x80 == 0 {
		_ = port.WriteByteAddr(nuvotonECInitRegister, data|0x80)
	}

	// enable SIO voltage inputs
	_ = port.WriteByteAddr(0x1BB, 0x61)
	_ = port.WriteByteAddr(0x1BC, 0x62)
	_ = port.WriteByteAddr(0x1BD, 0x63)
	_ = port.WriteByteAddr(0x1BE, 0x64)
	_ = port.WriteByteAddr(0x1BF, 0x65)

	return d
}

func (d *NuvotonEC) ReadSIO(t sensors.SensorType, src int) (float64, error) {
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

// readVoltage decodes the 12-bit reading (high byte plus the top nibble of
// the next register) in millivolt units, with fixed upscaling on the
// divided 12V/5V/DRAM inputs.
func (d *NuvotonEC) readVoltage(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonECVoltageRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	reg := nuvotonECVoltageRegisters[src]

	hi, err := d.port.ReadByteAddr(reg)
	if err != nil {
		return 0, err
	}

	lo, err := d.port.ReadByteAddr(reg + 1)
	if err != nil {
		return 0, err
	}

	v := 0.001 * float64(16*int(hi)+int(lo>>4))

	switch src {
	case 0: // 12V
		return v * 12, nil
	case 1: // 5V
		return v * 5, nil
	case 4: // DRAM
		return v * 2, nil
	default:
		return v, nil
	}
}

func (d *NuvotonEC) readTemperature(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonECTemperatureRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	reg := nuvotonECTemperatureRegisters[src]

	raw, err := d.port.ReadByteAddr(reg)
	if err != nil {
		return 0, err
	}

	// NOTE: the half-degree read addresses register (reg+1)>>7, not reg+1.
	// Suspicious, but left untouched pending a datasheet check.
	halfByte, err := d.port.ReadByteAddr((reg + 1) >> 7)
	if err != nil {
		return 0, err
	}

	t := float64(int8(raw)) + 0.5*float64(halfByte&0x1)
	if t < -55 || t > 125 {
		return math.NaN(), nil
	}

	return t, nil
}

// readFan returns the 16-bit register value directly; these parts report
// RPM, not a tachometer count.
func (d *NuvotonEC) readFan(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonECFanRPMRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	reg := nuvotonECFanRPMRegisters[src]

	hi, err := d.port.ReadByteAddr(reg)
	if err != nil {
		return 0, err
	}

	lo, err := d.port.ReadByteAddr(reg + 1)
	if err != nil {
		return 0, err
	}

	return float64(uint16(hi)<<8 | uint16(lo)), nil
}

func (d *NuvotonEC) readPWM(src int) (float64, error) {
	if src < 0 || src >= len(nuvotonECPWMOutRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByteAddr(nuvotonECPWMOutRegisters[src])
	if err != nil {
		return 0, err
	}

	return math.Round(float64(raw) * 100 / 255), nil
}

// WriteSIO sets a PWM duty in percent through the firmware handshake:
// claim the channel's manual-mode bit, request with 0x80, settle, post the
// duty, commit with 0x40, settle. NaN hands the channel back to the
// firmware with the same handshake.
func (d *NuvotonEC) WriteSIO(t sensors.SensorType, src int, value float64) error {
	if t != sensors.PWM {
		return sensors.ErrNotSupported
	}

	if src < 0 || src >= len(nuvotonECPWMCommandRegisters) {
		return sensors.ErrChannelOutOfRange
	}

	if math.IsNaN(value) {
		return d.restoreFanPWMControl(src)
	}

	if err := d.saveFanPWMControl(src); err != nil {
		return err
	}

	mode, err := d.port.ReadByteAddr(nuvotonECFanControlModeRegister)
	if err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonECFanControlModeRegister, mode|1<<uint(src)); err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonECPWMRequestRegister, 0x80); err != nil {
		return err
	}

	time.Sleep(nuvotonECSettleDelay)

	if err := d.port.WriteByteAddr(nuvotonECPWMCommandRegisters[src], uint8(value*255/100)); err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonECPWMRequestRegister, 0x40); err != nil {
		return err
	}

	time.Sleep(nuvotonECSettleDelay)

	return nil
}

func (d *NuvotonEC) saveFanPWMControl(src int) error {
	if d.restoreRequired[src] {
		return nil
	}

	mode, err := d.port.ReadByteAddr(nuvotonECFanControlModeRegister)
	if err != nil {
		return err
	}

	command, err := d.port.ReadByteAddr(nuvotonECPWMCommandRegisters[src])
	if err != nil {
		return err
	}

	d.initialFanControlMode[src] = mode & (1 << uint(src))
	d.initialFanPWMCommand[src] = command
	d.restoreRequired[src] = true

	return nil
}

func (d *NuvotonEC) restoreFanPWMControl(src int) error {
	if !d.restoreRequired[src] {
		return nil
	}

	mode, err := d.port.ReadByteAddr(nuvotonECFanControlModeRegister)
	if err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonECFanControlModeRegister, mode&^d.initialFanControlMode[src]); err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonECPWMRequestRegister, 0x80); err != nil {
		return err
	}

	time.Sleep(nuvotonECSettleDelay)

	if err := d.port.WriteByteAddr(nuvotonECPWMCommandRegisters[src], d.initialFanPWMCommand[src]); err != nil {
		return err
	}

	if err := d.port.WriteByteAddr(nuvotonECPWMRequestRegister, 0x40); err != nil {
		return err
	}

	time.Sleep(nuvotonECSettleDelay)

	d.restoreRequired[src] = false

	return nil
}

// Close hands back every channel that was ever written.
func (d *NuvotonEC) Close() error {
	var firstErr error

	for src := range nuvotonECPWMCommandRegisters {
		if err := d.restoreFanPWMControl(src); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
