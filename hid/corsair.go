package hid

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
)

// corsairProductIDs is a representative subset of the HXi/RMi-series PSU
// product IDs; Corsair assigns a distinct PID per wattage/series model
// rather than one PID for the whole product line.
var corsairProductIDs = []uint16{0x1c03, 0x1c04, 0x1c05, 0x1c06, 0x1c07, 0x1c08}

const (
	corsairVendorID = 0x1b1c

	corsairRailCount = 3
	corsairTempCount = 2

	corsairUpdateInterval = time.Second

	// PMBus-over-HID command bytes. Rail-scoped commands must be preceded
	// by a PAGE (rail-select) command -- the PSU has one register file
	// shared by all three rails.
	corsairCmdPage        = 0x00
	corsairCmdReadVoltage = 0x88
	corsairCmdReadCurrent = 0x8c
	corsairCmdReadPower   = 0x96
	corsairCmdReadTemp1   = 0x8d
	corsairCmdReadTemp2   = 0x8e
	corsairCmdReadFanRPM  = 0x90
	corsairCmdVinUVWarn   = 0x58
	corsairCmdVoutOVFault = 0x40
)

// CorsairPSU is a Corsair HXi/RMi-series power supply: a request/response
// HID device exposing a PMBus-like register set, with per-rail values
// selected by a preceding PAGE command and voltages/currents/power encoded
// as LINEAR11. Every transaction holds mu, so a rail-select followed by
// its read can never be interleaved with another goroutine's rail-select.
type CorsairPSU struct {
	dev Device
	id  sensors.Identifier

	mu         sync.Mutex
	lastUpdate time.Time
	haveCache  bool

	voltage [corsairRailCount]float64
	current [corsairRailCount]float64
	power   [corsairRailCount]float64
	temps   [corsairTempCount]float64
	fanRPM  float64

	// criticalLow/High are the per-rail undervoltage/overvoltage fault
	// thresholds, queried once at open. They are nameplate configuration,
	// not telemetry, so they do not need the 1-second refresh gate.
	criticalLow  [corsairRailCount]float64
	criticalHigh [corsairRailCount]float64
}

// OpenCorsairPSU enumerates hidraw devices for any known Corsair PSU
// product ID and, if found, opens and initializes it.
func OpenCorsairPSU() (*CorsairPSU, bool, error) {
	found, err := Enumerate(func(vendorID, productID uint16) bool {
		if vendorID != corsairVendorID {
			return false
		}

		for _, pid := range corsairProductIDs {
			if pid == productID {
				return true
			}
		}

		return false
	})
	if err != nil {
		return nil, false, err
	}

	if len(found) == 0 {
		return nil, false, nil
	}

	dev, err := Open(found[0].HidrawPath)
	if err != nil {
		return nil, false, err
	}

	p, err := NewCorsairPSU(dev, found[0].Product)
	if err != nil {
		return nil, false, err
	}

	return p, true, nil
}

// NewCorsairPSU opens dev and queries the fixed critical thresholds for
// every rail before returning, so a failure to talk to the PSU at all
// surfaces immediately rather than on the first sensor read. product is
// the USB product string: Corsair spreads one product line across many
// product IDs, so the string is what actually names the model (HX750i,
// RM850i, ...) in the chip's identity.
func NewCorsairPSU(dev Device, product string) (*CorsairPSU, error) {
	name := "corsairpsu"
	if product != "" {
		name = product
	}

	p := &CorsairPSU{
		dev: dev,
		id:  sensors.Identifier{Name: name, Type: "corsairpsu", Bus: sensors.BusHID},
	}

	for rail := 0; rail < corsairRailCount; rail++ {
		low, err := p.readRailLinear11Locked(corsairCmdVinUVWarn, rail)
		if err != nil {
			return nil, fmt.Errorf("hid: corsair psu: query rail %d undervoltage threshold: %w", rail, err)
		}

		high, err := p.readRailLinear11Locked(corsairCmdVoutOVFault, rail)
		if err != nil {
			return nil, fmt.Errorf("hid: corsair psu: query rail %d overvoltage threshold: %w", rail, err)
		}

		p.criticalLow[rail] = low
		p.criticalHigh[rail] = high
	}

	return p, nil
}

func (p *CorsairPSU) command(cmd byte, args ...byte) ([]byte, error) {
	req := make([]byte, 64)
	req[0] = cmd
	copy(req[1:], args)

	if _, err := p.dev.Write(req); err != nil {
		return nil, fmt.Errorf("hid: corsair psu: write command 0x%02x: %w", cmd, err)
	}

	resp := make([]byte, 64)

	n, err := p.dev.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("hid: corsair psu: read response to command 0x%02x: %w", cmd, err)
	}

	return resp[:n], nil
}

func (p *CorsairPSU) selectRail(rail int) error {
	_, err := p.command(corsairCmdPage, byte(rail))

	return err
}

func (p *CorsairPSU) readRailLinear11Locked(cmd byte, rail int) (float64, error) {
	if err := p.selectRail(rail); err != nil {
		return 0, err
	}

	resp, err := p.command(cmd)
	if err != nil {
		return 0, err
	}

	if len(resp) < 3 {
		return 0, fmt.Errorf("hid: corsair psu: short response to command 0x%02x (%d bytes)", cmd, len(resp))
	}

	raw := uint16(resp[1]) | uint16(resp[2])<<8

	return decodeLinear11(raw), nil
}

// decodeLinear11 converts a PMBus LINEAR11 value -- a 5-bit two's-complement
// exponent over an 11-bit two's-complement mantissa -- into its real value,
// mantissa * 2^exponent.
func decodeLinear11(raw uint16) float64 {
	exponent := int32(raw >> 11)
	if exponent&0x10 != 0 {
		exponent -= 32
	}

	mantissa := int32(raw & 0x7ff)
	if mantissa&0x400 != 0 {
		mantissa -= 2048
	}

	return float64(mantissa) * math.Pow(2, float64(exponent))
}

func (p *CorsairPSU) update() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveCache && time.Since(p.lastUpdate) < corsairUpdateInterval {
		return nil
	}

	for rail := 0; rail < corsairRailCount; rail++ {
		v, err := p.readRailLinear11Locked(corsairCmdReadVoltage, rail)
		if err != nil {
			return err
		}

		c, err := p.readRailLinear11Locked(corsairCmdReadCurrent, rail)
		if err != nil {
			return err
		}

		w, err := p.readRailLinear11Locked(corsairCmdReadPower, rail)
		if err != nil {
			return err
		}

		p.voltage[rail], p.current[rail], p.power[rail] = v, c, w
	}

	t1, err := p.readTempLocked(corsairCmdReadTemp1)
	if err != nil {
		return err
	}

	t2, err := p.readTempLocked(corsairCmdReadTemp2)
	if err != nil {
		return err
	}

	p.temps[0], p.temps[1] = t1, t2

	resp, err := p.command(corsairCmdReadFanRPM)
	if err != nil {
		return err
	}

	if len(resp) < 3 {
		return fmt.Errorf("hid: corsair psu: short fan rpm response (%d bytes)", len(resp))
	}

	p.fanRPM = decodeLinear11(uint16(resp[1]) | uint16(resp[2])<<8)

	p.haveCache = true
	p.lastUpdate = time.Now()

	return nil
}

func (p *CorsairPSU) readTempLocked(cmd byte) (float64, error) {
	resp, err := p.command(cmd)
	if err != nil {
		return 0, err
	}

	if len(resp) < 3 {
		return 0, fmt.Errorf("hid: corsair psu: short temperature response to command 0x%02x (%d bytes)", cmd, len(resp))
	}

	return decodeLinear11(uint16(resp[1]) | uint16(resp[2])<<8), nil
}

func (p *CorsairPSU) Config() sensors.ChannelConfig {
	railAttrs := make([]sensors.Mask, corsairRailCount)
	for i := range railAttrs {
		railAttrs[i] = sensors.InputMask(true)
	}

	tempAttrs := make([]sensors.Mask, corsairTempCount)
	for i := range tempAttrs {
		tempAttrs[i] = sensors.InputMask(true)
	}

	return sensors.ChannelConfig{
		Sensors: map[sensors.SensorType]sensors.TypeConfig{
			sensors.Voltage:     {ChannelAttributes: railAttrs},
			sensors.Current:     {ChannelAttributes: railAttrs},
			sensors.Power:       {ChannelAttributes: railAttrs},
			sensors.Temperature: {ChannelAttributes: tempAttrs},
			sensors.Fan:         {ChannelAttributes: []sensors.Mask{sensors.InputMask(true)}},
		},
	}
}

func (p *CorsairPSU) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	switch t {
	case sensors.Voltage, sensors.Current, sensors.Power:
		if channel < 0 || channel >= corsairRailCount {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}
	case sensors.Temperature:
		if channel < 0 || channel >= corsairTempCount {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}
	case sensors.Fan:
		if channel != 0 {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}
	default:
		return sensors.Visibility{}, sensors.ErrNotSupported
	}

	return sensors.Visibility{Readable: true}, nil
}

func (p *CorsairPSU) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	if _, err := p.IsVisible(t, attr, channel); err != nil {
		return 0, err
	}

	if err := p.update(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch t {
	case sensors.Voltage:
		return p.voltage[channel], nil
	case sensors.Current:
		return p.current[channel], nil
	case sensors.Power:
		return p.power[channel], nil
	case sensors.Temperature:
		return p.temps[channel], nil
	case sensors.Fan:
		return p.fanRPM, nil
	default:
		return 0, sensors.ErrNotSupported
	}
}

func (p *CorsairPSU) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return p.ChannelLabel(t, channel), nil
}

func (p *CorsairPSU) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (p *CorsairPSU) Identifier() *sensors.Identifier { return &p.id }

// Close releases the underlying hidraw device.
func (p *CorsairPSU) Close() error { return p.dev.Close() }

var corsairRailLabels = [corsairRailCount]string{"12V", "5V", "3.3V"}

func (p *CorsairPSU) ChannelLabel(t sensors.SensorType, channel int) string {
	switch t {
	case sensors.Voltage, sensors.Current, sensors.Power:
		if channel >= 0 && channel < corsairRailCount {
			return corsairRailLabels[channel]
		}
	case sensors.Temperature:
		switch channel {
		case 0:
			return "VRM"
		case 1:
			return "Case"
		}
	case sensors.Fan:
		if channel == 0 {
			return "PSU"
		}
	}

	return sensors.DefaultChannelLabel(t, channel)
}
