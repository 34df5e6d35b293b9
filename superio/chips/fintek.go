package chips

import (
	"math"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

// Fintek F71xxx registers are addressed as packed bank:register uint16
// values, the same convention nuvotonVoltageRegisters uses. A
// representative subset of the F71858/F71862/F71869/F71882/F71889AD
// family; see DESIGN.md.
var fintekVoltageRegisters = []uint16{0x0020, 0x0021, 0x0022, 0x0023, 0x0024, 0x0025, 0x0026, 0x0027, 0x0028}

var fintekTemperatureRegisters = []uint16{0x0070, 0x0071, 0x0072}

var fintekFanRegisters = []uint16{0x0178, 0x0180, 0x0188, 0x0190, 0x0198}

var fintekPWMRegisters = []uint16{0x0160, 0x0168, 0x0170}

// Fintek implements superio.Driver for the F71xxx family.
type Fintek struct {
	port superio.PortWithBanks

	initialPWM      [3]uint8
	restoreRequired [3]bool
}

// NewFintek constructs the Fintek driver.
func NewFintek(port superio.PortWithBanks) *Fintek {
	return &Fintek{port: port}
}

func (d *Fintek) ReadSIO(t sensors.SensorType, src int) (float64, error) {
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

func (d *Fintek) readVoltage(src int) (float64, error) {
	if src < 0 || src >= len(fintekVoltageRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByteAddr(fintekVoltageRegisters[src])
	if err != nil {
		return 0, err
	}

	return float64(raw) * 0.008, nil
}

func (d *Fintek) readTemperature(src int) (float64, error) {
	if src < 0 || src >= len(fintekTemperatureRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByteAddr(fintekTemperatureRegisters[src])
	if err != nil {
		return 0, err
	}

	signed := int8(raw)
	if signed == 0x7F || signed == -128 {
		return math.NaN(), nil
	}

	return float64(signed), nil
}

// readFan reads the 16-bit fan tachometer counter, stored big-endian at
// addr and addr+1, and converts it to RPM using the F71xxx's fixed
// 1.5MHz reference clock.
func (d *Fintek) readFan(src int) (float64, error) {
	if src < 0 || src >= len(fintekFanRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	hi, err := d.port.ReadByteAddr(fintekFanRegisters[src])
	if err != nil {
		return 0, err
	}

	lo, err := d.port.ReadByteAddr(fintekFanRegisters[src] + 1)
	if err != nil {
		return 0, err
	}

	count := int(hi)<<8 | int(lo)
	if count == 0 || count >= 0xFFF0 {
		return math.NaN(), nil
	}

	return 1.5e6 * 60 / float64(count), nil
}

func (d *Fintek) readPWM(src int) (float64, error) {
	if src < 0 || src >= len(fintekPWMRegisters) {
		return 0, sensors.ErrChannelOutOfRange
	}

	raw, err := d.port.ReadByteAddr(fintekPWMRegisters[src])
	if err != nil {
		return 0, err
	}

	return math.Round(float64(raw) * 100 / 0xFF), nil
}

// WriteSIO sets a PWM channel's software duty cycle in percent. Writing NaN
// restores the duty captured at the channel's first write.
func (d *Fintek) WriteSIO(t sensors.SensorType, src int, value float64) error {
	if t != sensors.PWM {
		return sensors.ErrNotSupported
	}

	if src < 0 || src >= len(fintekPWMRegisters) {
		return sensors.ErrChannelOutOfRange
	}

	if math.IsNaN(value) {
		return d.restoreFanPWMControl(src)
	}

	if !d.restoreRequired[src] {
		saved, err := d.port.ReadByteAddr(fintekPWMRegisters[src])
		if err != nil {
			return err
		}

		d.initialPWM[src] = saved
		d.restoreRequired[src] = true
	}

	return d.port.WriteByteAddr(fintekPWMRegisters[src], uint8(value*0xFF/100))
}

func (d *Fintek) restoreFanPWMControl(src int) error {
	if !d.restoreRequired[src] {
		return nil
	}

	if err := d.port.WriteByteAddr(fintekPWMRegisters[src], d.initialPWM[src]); err != nil {
		return err
	}

	d.restoreRequired[src] = false

	return nil
}

// Close restores fan control on every channel that was ever written.
func (d *Fintek) Close() error {
	var firstErr error

	for src := range fintekPWMRegisters {
		if err := d.restoreFanPWMControl(src); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
