package cpu

import (
	"math"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

// Intel CPU register constants.
const (
	ia32TemperatureTarget  = 0x01A2
	ia32PerfStatus         = 0x0198
	ia32ThermStatusMSR     = 0x019C
	ia32PackageThermStatus = 0x01B1
	msrPlatformInfo        = 0x0CE
	msrRAPLPowerUnit       = 0x606
	msrPkgEnergyStatus     = 0x611
	msrDRAMEnergyStatus    = 0x619
	msrPP0EnergyStatus     = 0x639
	msrPP1EnergyStatus     = 0x641
)

// microArchitecture classifies an Intel part by CPUID family/model; the
// classification picks the bus-clock multiplier field, RAPL support, and
// the RAPL energy-unit scale.
type microArchitecture int

const (
	microArchUnknown microArchitecture = iota
	microArchNetBurst
	microArchCore
	microArchAtom
	microArchNehalem
	microArchSandyBridge
	microArchIvyBridge
	microArchHaswell
	microArchBroadwell
	microArchSilvermont
	microArchAirmont
	microArchSkylake
	microArchKabyLake
	microArchGoldmont
	microArchGoldmontPlus
	microArchCannonLake
	microArchIceLake
	microArchCometLake
	microArchTremont
	microArchTigerLake
	microArchJasperLake
	microArchRocketLake
	microArchAlderLake
)

// classifyIntel maps CPUID (family, model) to a microarchitecture.
func classifyIntel(family, model uint32) microArchitecture {
	switch family {
	case 0x06:
		switch model {
		case 0x0F:
			return microArchCore
		case 0x17:
			return microArchCore
		case 0x1C:
			return microArchAtom
		case 0x1A, 0x1E, 0x1F, 0x25, 0x2C, 0x2E, 0x2F:
			return microArchNehalem
		case 0x2A, 0x2D:
			return microArchSandyBridge
		case 0x3A, 0x3E:
			return microArchIvyBridge
		case 0x3C, 0x3F, 0x45, 0x46:
			return microArchHaswell
		case 0x3D, 0x47, 0x4F, 0x56:
			return microArchBroadwell
		case 0x36:
			return microArchAtom
		case 0x37, 0x4A, 0x4D, 0x5A, 0x5D:
			return microArchSilvermont
		case 0x4C:
			return microArchAirmont
		case 0x4E, 0x5E, 0x55:
			return microArchSkylake
		case 0x8E, 0x9E:
			return microArchKabyLake
		case 0x5C, 0x5F:
			return microArchGoldmont
		case 0x7A:
			return microArchGoldmontPlus
		case 0x66:
			return microArchCannonLake
		case 0x7D, 0x7E, 0x6A, 0x6C:
			return microArchIceLake
		case 0xA5, 0xA6:
			return microArchCometLake
		case 0x86:
			return microArchTremont
		case 0x8C, 0x8D:
			return microArchTigerLake
		case 0x97:
			return microArchAlderLake
		case 0x9C:
			return microArchJasperLake
		case 0xA7:
			return microArchRocketLake
		}
	case 0x0F:
		switch model {
		case 0x00, 0x01, 0x02, 0x03, 0x04, 0x06:
			return microArchNetBurst
		}
	}

	return microArchUnknown
}

// supportsRAPL reports whether arch carries the RAPL energy counters.
func supportsRAPL(arch microArchitecture) bool {
	switch arch {
	case microArchAirmont, microArchAlderLake, microArchBroadwell,
		microArchCannonLake, microArchCometLake, microArchGoldmont,
		microArchGoldmontPlus, microArchHaswell, microArchIceLake,
		microArchIvyBridge, microArchJasperLake, microArchKabyLake,
		microArchRocketLake, microArchSandyBridge, microArchSilvermont,
		microArchSkylake, microArchTigerLake, microArchTremont:
		return true
	default:
		return false
	}
}

// energyStatusMSRs lists the four RAPL accumulator MSRs in their published
// channel order, alongside the matching labels.
var (
	energyStatusMSRs   = [4]uint32{msrPkgEnergyStatus, msrPP0EnergyStatus, msrPP1EnergyStatus, msrDRAMEnergyStatus}
	energyStatusLabels = [4]string{"CPU Package", "CPU Cores", "CPU Graphics", "CPU Memory"}
)

// Intel implements the Intel Core/Xeon/Atom CPU chip: per-core distance-to-
// TjMax temperature (IA32_THERM_STATUS), package temperature
// (IA32_PACKAGE_THERM_STATUS), core max/average aggregates, bus and
// per-core clocks (IA32_PERF_STATUS against a TSC-derived bus clock), and
// up to four RAPL power rails.
type Intel struct {
	*GenericCPU

	ring0 *ring0.Facade
	arch  microArchitecture

	tjMax []float64

	hasCoreDTS    bool
	hasPackageDTS bool

	tscMultiplier float64

	energyUnitJ  float64
	powerPresent [4]bool
	energy       [4]energyCounter

	mu   sync.Mutex
	gate updateGate

	coreTemps    []float64
	coreDeltas   []float64
	packageTemp  float64
	coreMaxTemp  float64
	coreAvgTemp  float64
	busClockHz   float64
	coreClocksHz []float64
}

// NewIntel constructs the Intel family driver, probing TjMax per core, the
// platform bus-clock multiplier, and which RAPL rails answer.
func NewIntel(base *GenericCPU, facade *ring0.Facade) *Intel {
	cpu0 := base.Cpuid0()

	d := &Intel{
		GenericCPU: base,
		ring0:      facade,
		arch:       classifyIntel(cpu0.Family, cpu0.Model),
	}

	leaf6 := cpu0.Safe(6)
	d.hasCoreDTS = leaf6.Eax&0x01 != 0 && d.arch != microArchUnknown
	d.hasPackageDTS = leaf6.Eax&0x40 != 0 && d.arch != microArchUnknown

	d.tjMax = d.tjMaxPerCore()

	d.tscMultiplier = d.readTSCMultiplier()

	if supportsRAPL(d.arch) {
		if eax, _, err := facade.ReadMSR(msrRAPLPowerUnit); err == nil {
			shift := (eax >> 8) & 0x1F

			switch d.arch {
			case microArchSilvermont, microArchAirmont:
				d.energyUnitJ = 1.0e-6 * float64(uint32(1)<<shift)
			default:
				d.energyUnitJ = 1.0 / float64(uint32(1)<<shift)
			}
		}

		if d.energyUnitJ != 0 {
			now := time.Now()

			for i, msr := range energyStatusMSRs {
				eax, _, err := facade.ReadMSR(msr)
				if err != nil {
					continue
				}

				d.powerPresent[i] = true
				d.energy[i].update(eax, d.energyUnitJ, now)
			}
		}
	}

	d.coreTemps = make([]float64, base.CoreCount())
	d.coreDeltas = make([]float64, base.CoreCount())
	d.coreClocksHz = make([]float64, base.CoreCount())
	d.packageTemp = math.NaN()
	d.coreMaxTemp = math.NaN()
	d.coreAvgTemp = math.NaN()
	d.busClockHz = math.NaN()

	for i := range d.coreTemps {
		d.coreTemps[i] = math.NaN()
		d.coreDeltas[i] = math.NaN()
		d.coreClocksHz[i] = math.NaN()
	}

	return d
}

// tjMaxPerCore reads IA32_TEMPERATURE_TARGET bits 23:16 on each core,
// falling back to 100C where the MSR does not answer (pre-Nehalem parts
// use per-stepping constants close enough to that default).
func (d *Intel) tjMaxPerCore() []float64 {
	out := make([]float64, d.CoreCount())

	for i := range out {
		out[i] = 100

		if len(d.topology[i]) == 0 {
			continue
		}

		eax, _, err := d.ring0.ReadMSRAffinity(d.topology[i][0].Affinity, ia32TemperatureTarget)
		if err != nil {
			continue
		}

		if t := float64((eax >> 16) & 0xFF); t > 0 {
			out[i] = t
		}
	}

	return out
}

// readTSCMultiplier resolves the TSC-to-bus-clock ratio: legacy
// Core/Atom/NetBurst parts encode it in IA32_PERF_STATUS's EDX, everything
// newer in MSR_PLATFORM_INFO bits 15:8.
func (d *Intel) readTSCMultiplier() float64 {
	switch d.arch {
	case microArchAtom, microArchCore, microArchNetBurst:
		if _, edx, err := d.ring0.ReadMSR(ia32PerfStatus); err == nil {
			return float64((edx>>8)&0x1F) + 0.5*float64((edx>>14)&1)
		}
	case microArchUnknown:
		return 0
	default:
		if eax, _, err := d.ring0.ReadMSR(msrPlatformInfo); err == nil {
			return float64((eax >> 8) & 0xFF)
		}
	}

	return 0
}

// Channel layout: with a core DTS, core temps then per-core distance to
// TjMax; with a package DTS, "CPU Package", followed by "Core Max"/"Core
// Average" when the package has more than one core.

func (d *Intel) temperatureChannelCount() int {
	n := 0

	if d.hasCoreDTS {
		n += 2 * d.CoreCount()
	}

	if d.hasPackageDTS {
		n++

		if d.CoreCount() > 1 {
			n += 2
		}
	}

	return n
}

func (d *Intel) frequencyChannelCount() int {
	if d.tscMultiplier <= 0 {
		return 0
	}

	return 1 + d.CoreCount()
}

func (d *Intel) powerChannelCount() int {
	n := 0

	for _, present := range d.powerPresent {
		if present {
			n++
		}
	}

	return n
}

func (d *Intel) Config() sensors.ChannelConfig {
	cfg := d.GenericCPU.Config()

	appendType := func(t sensors.SensorType, n int) {
		if n == 0 {
			return
		}

		attrs := make([]sensors.Mask, n)
		for i := range attrs {
			attrs[i] = sensors.InputMask(true)
		}

		cfg.Sensors[t] = sensors.TypeConfig{ChannelAttributes: attrs}
	}

	appendType(sensors.Temperature, d.temperatureChannelCount())
	appendType(sensors.Frequency, d.frequencyChannelCount())
	appendType(sensors.Power, d.powerChannelCount())

	return cfg
}

func (d *Intel) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	var n int

	switch t {
	case sensors.Temperature:
		n = d.temperatureChannelCount()
	case sensors.Frequency:
		n = d.frequencyChannelCount()
	case sensors.Power:
		n = d.powerChannelCount()
	default:
		return d.GenericCPU.IsVisible(t, attr, channel)
	}

	if channel < 0 || channel >= n {
		return sensors.Visibility{}, sensors.ErrChannelOutOfRange
	}

	return sensors.Visibility{Readable: true}, nil
}

// update refreshes every cached reading at most once per updateInterval.
func (d *Intel) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.gate.due(now) {
		return
	}

	d.updateTemperaturesLocked()
	d.updateClocksLocked()
	d.updatePowersLocked(now)
}

func (d *Intel) updateTemperaturesLocked() {
	if !d.hasCoreDTS {
		return
	}

	coreMax := math.Inf(-1)
	coreSum := 0.0
	valid := 0

	for i := range d.coreTemps {
		eax, _, err := d.ring0.ReadMSRAffinity(d.topology[i][0].Affinity, ia32ThermStatusMSR)
		if err != nil || eax&0x80000000 == 0 {
			d.coreTemps[i] = math.NaN()
			d.coreDeltas[i] = math.NaN()

			continue
		}

		delta := float64((eax & 0x007F0000) >> 16)
		d.coreDeltas[i] = delta
		d.coreTemps[i] = d.tjMax[i] - delta

		coreSum += d.coreTemps[i]
		valid++

		if d.coreTemps[i] > coreMax {
			coreMax = d.coreTemps[i]
		}
	}

	if valid > 0 {
		d.coreMaxTemp = coreMax
		d.coreAvgTemp = coreSum / float64(valid)
	}

	if d.hasPackageDTS {
		eax, _, err := d.ring0.ReadMSR(ia32PackageThermStatus)
		if err == nil && eax&0x80000000 != 0 {
			d.packageTemp = d.tjMax[0] - float64((eax&0x007F0000)>>16)
		} else {
			d.packageTemp = math.NaN()
		}
	}
}

func (d *Intel) updateClocksLocked() {
	if d.tscMultiplier <= 0 {
		return
	}

	tscHz := d.TSCFrequencyHz()
	if tscHz <= 0 {
		return
	}

	newBusClock := 0.0

	for i := range d.coreClocksHz {
		eax, _, err := d.ring0.ReadMSRAffinity(d.topology[i][0].Affinity, ia32PerfStatus)
		if err != nil {
			d.coreClocksHz[i] = tscHz

			continue
		}

		newBusClock = tscHz / d.tscMultiplier

		switch d.arch {
		case microArchNehalem:
			d.coreClocksHz[i] = float64(eax&0xFF) * newBusClock
		case microArchAtom, microArchCore, microArchNetBurst, microArchUnknown:
			multiplier := float64((eax>>8)&0x1F) + 0.5*float64((eax>>14)&1)
			d.coreClocksHz[i] = multiplier * newBusClock
		default:
			d.coreClocksHz[i] = float64((eax>>8)&0xFF) * newBusClock
		}
	}

	if newBusClock > 0 {
		d.busClockHz = newBusClock
	}
}

func (d *Intel) updatePowersLocked(now time.Time) {
	for i := range energyStatusMSRs {
		if !d.powerPresent[i] {
			continue
		}

		eax, _, err := d.ring0.ReadMSR(energyStatusMSRs[i])
		if err != nil {
			continue
		}

		d.energy[i].update(eax, d.energyUnitJ, now)
	}
}

func (d *Intel) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	switch t {
	case sensors.Temperature, sensors.Frequency, sensors.Power:
	default:
		return d.GenericCPU.ReadFloat(t, attr, channel)
	}

	d.update()

	d.mu.Lock()
	defer d.mu.Unlock()

	switch t {
	case sensors.Temperature:
		return d.temperatureChannelLocked(channel)
	case sensors.Frequency:
		if channel < 0 || channel >= d.frequencyChannelCount() {
			return 0, sensors.ErrChannelOutOfRange
		}

		if channel == 0 {
			return d.busClockHz, nil
		}

		return d.coreClocksHz[channel-1], nil
	default: // sensors.Power
		idx, ok := d.powerChannelIndex(channel)
		if !ok {
			return 0, sensors.ErrChannelOutOfRange
		}

		return d.energy[idx].powerW, nil
	}
}

func (d *Intel) temperatureChannelLocked(channel int) (float64, error) {
	if channel < 0 || channel >= d.temperatureChannelCount() {
		return 0, sensors.ErrChannelOutOfRange
	}

	if d.hasCoreDTS {
		if channel < len(d.coreTemps) {
			return d.coreTemps[channel], nil
		}

		channel -= len(d.coreTemps)

		if channel < len(d.coreDeltas) {
			return d.coreDeltas[channel], nil
		}

		channel -= len(d.coreDeltas)
	}

	switch channel {
	case 0:
		return d.packageTemp, nil
	case 1:
		return d.coreMaxTemp, nil
	case 2:
		return d.coreAvgTemp, nil
	}

	return 0, sensors.ErrChannelOutOfRange
}

// powerChannelIndex maps a published power channel number back to its slot
// in energyStatusMSRs, skipping absent rails.
func (d *Intel) powerChannelIndex(channel int) (int, bool) {
	if channel < 0 {
		return 0, false
	}

	for i, present := range d.powerPresent {
		if !present {
			continue
		}

		if channel == 0 {
			return i, true
		}

		channel--
	}

	return 0, false
}

func (d *Intel) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (d *Intel) ChannelLabel(t sensors.SensorType, channel int) string {
	switch t {
	case sensors.Temperature:
		if d.hasCoreDTS {
			if channel < d.CoreCount() {
				return defaultCoreLabel(channel)
			}

			if channel < 2*d.CoreCount() {
				return defaultCoreLabel(channel-d.CoreCount()) + " Distance to TjMax"
			}

			channel -= 2 * d.CoreCount()
		}

		switch channel {
		case 0:
			return "CPU Package"
		case 1:
			return "Core Max"
		case 2:
			return "Core Average"
		}

		return sensors.DefaultChannelLabel(t, channel)
	case sensors.Frequency:
		if channel == 0 {
			return "Bus Speed"
		}

		return defaultCoreLabel(channel - 1)
	case sensors.Power:
		if idx, ok := d.powerChannelIndex(channel); ok {
			return energyStatusLabels[idx]
		}

		return sensors.DefaultChannelLabel(t, channel)
	default:
		return d.GenericCPU.ChannelLabel(t, channel)
	}
}
