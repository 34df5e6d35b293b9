package cpu

import (
	"math"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

// AMD family 0Fh (K8/Athlon 64) register constants.
const (
	fidvidStatus                    = 0xC0010042
	miscellaneousControlDeviceID0Fh = 0x1103
	miscellaneousControlFunction0Fh = 3
	thermtripStatusRegister0Fh      = 0xE4
)

// AMD0F implements the AMD family 0Fh CPU chip: per-core die temperature via
// the THERMTRIP status register, and bus-clock/core-clock frequency derived
// from the FIDVID_STATUS MSR and a TSC calibration.
type AMD0F struct {
	*GenericCPU

	ring0   *ring0.Facade
	miscPCI uint32

	temperatureOffset float64
	coreSelCPU0       uint32
	coreSelCPU1       uint32

	hasDigitalThermalSensor bool
	hasTSC                  bool

	mu   sync.Mutex
	gate updateGate

	busClockHz  float64
	coreClockHz []float64
}

// NewAMD0F constructs the family 0Fh driver. packageIndex selects the
// 0x18+index miscellaneous-control PCI device for multi-socket systems.
func NewAMD0F(base *GenericCPU, facade *ring0.Facade, packageIndex int) *AMD0F {
	d := &AMD0F{
		GenericCPU: base,
		ring0:      facade,
		miscPCI: amdMiscPCIAddress(
			facade, packageIndex, miscellaneousControlFunction0Fh, miscellaneousControlDeviceID0Fh),
		temperatureOffset: -49,
	}

	model := base.Cpuid0().Model
	if model >= 0x69 && model != 0xc1 && model != 0x6c && model != 0x7c {
		d.temperatureOffset += 21
	}

	if model < 40 {
		d.coreSelCPU0, d.coreSelCPU1 = 0x0, 0x4
	} else {
		d.coreSelCPU0, d.coreSelCPU1 = 0x4, 0x0
	}

	d.hasDigitalThermalSensor = base.Cpuid0().SafeExt(7).Ecx&1 != 0

	d.hasTSC = hasTimeStampCounter(base.Cpuid0())
	if d.hasTSC {
		d.coreClockHz = make([]float64, base.CoreCount())
	}

	return d
}

func (d *AMD0F) coreTempCount() int {
	if d.hasDigitalThermalSensor {
		return d.CoreCount()
	}

	return 0
}

func (d *AMD0F) Config() sensors.ChannelConfig {
	cfg := d.GenericCPU.Config()

	tempAttrs := make([]sensors.Mask, d.coreTempCount())
	for i := range tempAttrs {
		tempAttrs[i] = sensors.InputMask(true)
	}

	if len(tempAttrs) > 0 {
		cfg.Sensors[sensors.Temperature] = sensors.TypeConfig{ChannelAttributes: tempAttrs}
	}

	if d.hasTSC {
		freqAttrs := make([]sensors.Mask, 1+len(d.coreClockHz))
		for i := range freqAttrs {
			freqAttrs[i] = sensors.InputMask(true)
		}

		cfg.Sensors[sensors.Frequency] = sensors.TypeConfig{ChannelAttributes: freqAttrs}
	}

	return cfg
}

func (d *AMD0F) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	switch t {
	case sensors.Temperature:
		if channel < 0 || channel >= d.coreTempCount() {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Frequency:
		if !d.hasTSC || channel < 0 || channel > len(d.coreClockHz) {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	default:
		return d.GenericCPU.IsVisible(t, attr, channel)
	}
}

func (d *AMD0F) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	switch t {
	case sensors.Temperature:
		return d.readTemperature(channel)
	case sensors.Frequency:
		return d.readFrequency(channel)
	default:
		return d.GenericCPU.ReadFloat(t, attr, channel)
	}
}

func (d *AMD0F) readTemperature(core int) (float64, error) {
	if core < 0 || core >= d.coreTempCount() {
		return 0, sensors.ErrChannelOutOfRange
	}

	if d.miscPCI == ring0.InvalidPCIAddress {
		return math.NaN(), nil
	}

	sel := d.coreSelCPU0
	if core > 0 {
		sel = d.coreSelCPU1
	}

	if err := d.ring0.WritePCIConfig(d.miscPCI, thermtripStatusRegister0Fh, sel); err != nil {
		return math.NaN(), nil
	}

	value, err := d.ring0.ReadPCIConfig(d.miscPCI, thermtripStatusRegister0Fh)
	if err != nil {
		return math.NaN(), nil
	}

	return float64((value>>16)&0xFF) + d.temperatureOffset, nil
}

func (d *AMD0F) readFrequency(channel int) (float64, error) {
	if !d.hasTSC {
		return 0, sensors.ErrNotSupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gate.due(time.Now()) {
		if err := d.updateClocks(); err != nil {
			return 0, err
		}
	}

	if channel == 0 {
		return d.busClockHz, nil
	}

	idx := channel - 1
	if idx < 0 || idx >= len(d.coreClockHz) {
		return 0, sensors.ErrChannelOutOfRange
	}

	return d.coreClockHz[idx], nil
}

// updateClocks derives clocks from FIDVID_STATUS: CurrFID in eax bits 0-5,
// MaxFID in bits 16-21, each a half-multiplier offset by 8. Callers hold
// d.mu.
func (d *AMD0F) updateClocks() error {
	tscHz := d.TSCFrequencyHz()

	var newBusClock float64

	for i := range d.coreClockHz {
		affinity := d.topology[i][0].Affinity

		eax, _, err := d.ring0.ReadMSRAffinity(affinity, fidvidStatus)
		if err != nil {
			d.coreClockHz[i] = tscHz
			continue
		}

		curMp := 0.5 * float64((eax&0x3F)+8)
		maxMp := 0.5 * float64(((eax>>16)&0x3F)+8)

		if maxMp == 0 {
			d.coreClockHz[i] = tscHz
			continue
		}

		d.coreClockHz[i] = curMp * tscHz / maxMp
		newBusClock = tscHz / maxMp
	}

	if newBusClock > 0 {
		d.busClockHz = newBusClock
	} else {
		d.busClockHz = math.NaN()
	}

	return nil
}

func (d *AMD0F) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (d *AMD0F) ChannelLabel(t sensors.SensorType, channel int) string {
	switch t {
	case sensors.Temperature:
		return defaultCoreLabel(channel)
	case sensors.Frequency:
		if channel == 0 {
			return "Bus Clock"
		}

		return defaultCoreLabel(channel - 1)
	default:
		return d.GenericCPU.ChannelLabel(t, channel)
	}
}
