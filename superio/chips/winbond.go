package chips

import (
	"math"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

// winbondVoltageRegisters is the flat register layout shared by the legacy
// W83627HF/THF/EHF/DHG/W83667HG parts, a single bank unlike the NCT6xxx
// successors. One 7-channel layout for the whole family (see DESIGN.md).
var winbondVoltageRegisters = []uint8{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26}

var winbondTemperatureRegisters = []uint8{0x27, 0x50, 0x51}

var winbondFanRegisters = []uint8{0x28, 0x29, 0x2A}

var winbondPWMRegisters = []uint8{0x5A, 0x5B}

const winbondFanDivisorRegister = 0x47

// Winbond implements superio.Driver for the legacy W83627/W83667 family,
// the single-bank predecessor to the NCT6xxx chips handled by Nuvoton.
type Winbond struct {
	port superio.SingleBankPort

	initialPWM      [2]uint8
	restoreRequired [2]bool
}

// NewWinbond constructs the legacy Winbond driver.
func NewWinbond(port superio.SingleBankPort) *Winbond {
	return &Winbond{port: port}
}

func (d *Winbond) ReadSIO(t sensors.SensorType, src int) (float64, error) {
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

func (d *Winbond) readVoltage(src int) (float64, error) {
	if src < 0 || src >= len(winbondVoltageRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByte(winbondVoltageRegisters[src])
	if err != nil {
		return 0, err
	}

	return float64(raw) * 0.016, nil
}

func (d *Winbond) readTemperature(src int) (float64, error) {
	if src < 0 || src >= len(winbondTemperatureRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByte(winbondTemperatureRegisters[src])
	if err != nil {
		return 0, err
	}

	signed := int8(raw)
	if signed == 0x7F || signed == -128 {
		return math.NaN(), nil
	}

	return float64(signed), nil
}

// readFan converts the legacy 8-bit fan tachometer count, combined with its
// clock divisor, into RPM: rpm = 1.35e6 / (count * 2^divisor).
func (d *Winbond) readFan(src int) (float64, error) {
	if src < 0 || src >= len(winbondFanRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByte(winbondFanRegisters[src])
	if err != nil {
		return 0, err
	}

	if raw == 0 || raw == 0xFF {
		return math.NaN(), nil
	}

	divReg, err := d.port.ReadByte(winbondFanDivisorRegister)
	if err != nil {
		return 0, err
	}

	divisor := 1 << ((divReg >> uint(src*2)) & 0x03)

	return 1.35e6 / float64(int(raw)*divisor), nil
}

func (d *Winbond) readPWM(src int) (float64, error) {
	if src < 0 || src >= len(winbondPWMRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByte(winbondPWMRegisters[src])
	if err != nil {
		return 0, err
	}

	return math.Round(float64(raw) * 100 / 0xFF), nil
}

// WriteSIO sets a PWM channel's software duty cycle in percent. Writing NaN
// restores the duty captured at the channel's first write.
func (d *Winbond) WriteSIO(t sensors.SensorType, src int, value float64) error {
	if t != sensors.PWM {
		return sensors.ErrNotSupported
	}

	if src < 0 || src >= len(winbondPWMRegisters) {
		return sensors.ErrChannelOutOfRange
	}

	if math.IsNaN(value) {
		return d.restoreFanPWMControl(src)
	}

	if !d.restoreRequired[src] {
		saved, err := d.port.ReadByte(winbondPWMRegisters[src])
		if err != nil {
			return err
		}

		d.initialPWM[src] = saved
		d.restoreRequired[src] = true
	}

	return d.port.WriteByte(winbondPWMRegisters[src], uint8(value*0xFF/100))
}

func (d *Winbond) restoreFanPWMControl(src int) error {
	if !d.restoreRequired[src] {
		return nil
	}

	if err := d.port.WriteByte(winbondPWMRegisters[src], d.initialPWM[src]); err != nil {
		return err
	}

	d.restoreRequired[src] = false

	return nil
}

// Close restores fan control on every channel that was ever written.
func (d *Winbond) Close() error {
	var firstErr error

	for src := range winbondPWMRegisters {
		if err := d.restoreFanPWMControl(src); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
