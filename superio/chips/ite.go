// Package chips implements concrete Super I/O sensor-chip drivers (ITE,
// Winbond/Nuvoton NCT6xxx, Fintek) on top of the superio package's shared
// BaseChip facade.
package chips

import (
	"math"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

const (
	iteVoltageBaseReg     = 0x20
	iteTemperatureBaseReg = 0x29
	iteFanMainCtrlReg     = 0x13
)

var iteFanTachReg = [6]uint8{0x0D, 0x0E, 0x0F, 0x80, 0x82, 0x4C}
var iteFanTachExtReg = [6]uint8{0x18, 0x19, 0x1A, 0x81, 0x83, 0x4D}
var iteFanPWMCtrlReg = [5]uint8{0x15, 0x16, 0x17, 0x7F, 0xA7}
var iteFanPWMCtrlExtReg = [5]uint8{0x63, 0x6B, 0x73, 0x7B, 0xA3}

// ITE implements superio.Driver for the IT87xx family.
type ITE struct {
	port           superio.SingleBankPort
	has16BitFanCtr bool
	hasExtPWMReg   bool
	voltageGain    float64

	initialPWMControl           [5]uint8
	initialPWMControlExt        [5]uint8
	initialFanOutputModeEnabled [5]bool
	restoreRequired             [5]bool
}

// NewITE constructs the ITE driver. voltageGain scales the raw 8-bit ADC
// reading to volts (most chips use 0.016V/LSB; a handful of boards wire a
// different reference and need a board-specific override, applied by the
// caller's ChannelsConfig instead of here).
func NewITE(port superio.SingleBankPort, chip superio.Chip, version uint8) *ITE {
	return &ITE{
		port:           port,
		has16BitFanCtr: !(chip == superio.ChipIT8705F && version < 3),
		hasExtPWMReg:   chip != superio.ChipIT8705F && chip != superio.ChipIT8712F,
		voltageGain:    0.016,
	}
}

// ReadSIO reads one raw channel and converts it to engineering units.
func (d *ITE) ReadSIO(t sensors.SensorType, src int) (float64, error) {
	switch t {
	case sensors.Voltage:
		raw, err := d.port.ReadByte(uint8(iteVoltageBaseReg + src))
		if err != nil {
			return 0, err
		}

		v := d.voltageGain * float64(raw)
		if v <= 0 {
			return math.NaN(), nil
		}

		return v, nil

	case sensors.Temperature:
		raw, err := d.port.ReadByte(uint8(iteTemperatureBaseReg + src))
		if err != nil {
			return 0, err
		}

		signed := int8(raw)
		if signed <= 0 {
			return math.NaN(), nil
		}

		return float64(signed), nil

	case sensors.Fan:
		return d.readFan(src)

	case sensors.PWM:
		return d.readPWM(src)

	default:
		return 0, sensors.ErrNotSupported
	}
}

func (d *ITE) readFan(src int) (float64, error) {
	if src < 0 || src >= len(iteFanTachReg) {
		return 0, sensors.ErrChannelOutOfRange
	}

	lo, err := d.port.ReadByte(iteFanTachReg[src])
	if err != nil {
		return 0, err
	}

	if !d.has16BitFanCtr {
		if lo == 0 || lo == 0xFF {
			return math.NaN(), nil
		}

		return 1.35e6 / float64(lo*2), nil
	}

	hi, err := d.port.ReadByte(iteFanTachExtReg[src])
	if err != nil {
		return 0, err
	}

	value := int(lo) | int(hi)<<8

	if value <= 0x3F {
		return math.NaN(), nil
	}

	if value >= 0xFFFF {
		return 0, nil
	}

	return 1.35e6 / float64(value*2), nil
}

func (d *ITE) readPWM(src int) (float64, error) {
	if src < 0 || src >= len(iteFanPWMCtrlReg) {
		return 0, sensors.ErrChannelOutOfRange
	}

	value, err := d.port.ReadByte(iteFanPWMCtrlReg[src])
	if err != nil {
		return 0, err
	}

	if value&0x80 != 0 {
		return math.NaN(), nil // automatic operation, not readable
	}

	if d.hasExtPWMReg {
		ext, err := d.port.ReadByte(iteFanPWMCtrlExtReg[src])
		if err != nil {
			return 0, err
		}

		return math.Round(float64(ext) * 100 / 0xFF), nil
	}

	return math.Round(float64(value&0x7F) * 100 / 0x7F), nil
}

// WriteSIO sets a PWM channel's software duty cycle in percent. Writing NaN
// restores the registers captured at the channel's first write; the first
// finite write captures them, enables software fan output on channels 0-2,
// and switches the control register to a manual duty.
func (d *ITE) WriteSIO(t sensors.SensorType, src int, value float64) error {
	if t != sensors.PWM {
		return sensors.ErrNotSupported
	}

	if src < 0 || src >= len(iteFanPWMCtrlReg) {
		return sensors.ErrChannelOutOfRange
	}

	if math.IsNaN(value) {
		return d.restoreFanPWMControl(src)
	}

	if err := d.saveFanPWMControl(src); err != nil {
		return err
	}

	if src < 3 && !d.initialFanOutputModeEnabled[src] {
		ctrl, err := d.port.ReadByte(iteFanMainCtrlReg)
		if err != nil {
			return err
		}

		if err := d.port.WriteByte(iteFanMainCtrlReg, ctrl|(1<<uint(src))); err != nil {
			return err
		}
	}

	if d.hasExtPWMReg {
		if err := d.port.WriteByte(iteFanPWMCtrlReg[src], d.initialPWMControl[src]&0x7F); err != nil {
			return err
		}

		return d.port.WriteByte(iteFanPWMCtrlExtReg[src], uint8(value*0xFF/100))
	}

	return d.port.WriteByte(iteFanPWMCtrlReg[src], uint8(value*0x7F/100))
}

func (d *ITE) saveFanPWMControl(src int) error {
	if d.restoreRequired[src] {
		return nil
	}

	ctrl, err := d.port.ReadByte(iteFanPWMCtrlReg[src])
	if err != nil {
		return err
	}

	d.initialPWMControl[src] = ctrl

	if src < 3 {
		mainCtrl, err := d.port.ReadByte(iteFanMainCtrlReg)
		if err != nil {
			return err
		}

		d.initialFanOutputModeEnabled[src] = mainCtrl&(1<<uint(src)) != 0
	}

	if d.hasExtPWMReg {
		ext, err := d.port.ReadByte(iteFanPWMCtrlExtReg[src])
		if err != nil {
			return err
		}

		d.initialPWMControlExt[src] = ext
	}

	d.restoreRequired[src] = true

	return nil
}

func (d *ITE) restoreFanPWMControl(src int) error {
	if !d.restoreRequired[src] {
		return nil
	}

	if err := d.port.WriteByte(iteFanPWMCtrlReg[src], d.initialPWMControl[src]); err != nil {
		return err
	}

	if src < 3 {
		mainCtrl, err := d.port.ReadByte(iteFanMainCtrlReg)
		if err != nil {
			return err
		}

		enabled := mainCtrl&(1<<uint(src)) != 0
		if enabled != d.initialFanOutputModeEnabled[src] {
			if err := d.port.WriteByte(iteFanMainCtrlReg, mainCtrl^(1<<uint(src))); err != nil {
				return err
			}
		}
	}

	if d.hasExtPWMReg {
		if err := d.port.WriteByte(iteFanPWMCtrlExtReg[src], d.initialPWMControlExt[src]); err != nil {
			return err
		}
	}

	d.restoreRequired[src] = false

	return nil
}

// Close restores fan control on every channel that was ever written.
func (d *ITE) Close() error {
	var firstErr error

	for src := range iteFanPWMCtrlReg {
		if err := d.restoreFanPWMControl(src); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
