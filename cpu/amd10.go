package cpu

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

// AMD families 10h-16h register constants.
const (
	clockPowerTimingControl0Register = 0xD4
	cofvidStatus                     = 0xC0010071
	cstatesIOPort                    = 0xCD6
	smuReportedTempCtrlOffset        = 0xD8200CA4
	reportedTemperatureControlReg    = 0xA4

	hwcrMSR  = 0xC0010015
	perfCtl0 = 0xC0010000
	perfCtr0 = 0xC0010004

	miscellaneousControlFunction10h = 3

	family10hMiscControlDeviceID     = 0x1203
	family11hMiscControlDeviceID     = 0x1303
	family12hMiscControlDeviceID     = 0x1703
	family14hMiscControlDeviceID     = 0x1703
	family15hModel00MiscControlDevID = 0x1603
	family15hModel10MiscControlDevID = 0x1403
	family15hModel30MiscControlDevID = 0x141D
	family15hModel60MiscControlDevID = 0x1573
	family15hModel70MiscControlDevID = 0x15B3
	family16hModel00MiscControlDevID = 0x1533
	family16hModel30MiscControlDevID = 0x1583
)

// AMD10 implements the AMD families 10h-16h (K10 through Jaguar/Puma) CPU
// chip: core temperature, core/northbridge SVI voltage, bus and
// per-core frequency, and (when the chipset exposes the C-state residency
// I/O port pair) CC2/CC3 package C-state residency fractions.
type AMD10 struct {
	*GenericCPU

	ring0   *ring0.Facade
	miscPCI uint32

	family, model uint32

	isSVI2               bool
	hasSMUTemperatureReg bool
	hasTSC               bool
	cstatesIOOffset      uint8

	mu   sync.Mutex
	gate updateGate

	tscMultiplier float64

	coreClockHz []float64
	busClockHz  float64
	coreVoltage float64
	nbVoltage   float64
	temperature float64
}

// NewAMD10 constructs the family 10h-16h driver. packageIndex selects the
// 0x18+index miscellaneous-control PCI device for multi-socket systems.
func NewAMD10(base *GenericCPU, facade *ring0.Facade, packageIndex int) *AMD10 {
	d := &AMD10{GenericCPU: base, ring0: facade, temperature: math.NaN()}

	d.family = base.Cpuid0().Family
	d.model = base.Cpuid0().Model
	d.isSVI2 = (d.family == 0x15 && d.model >= 0x10) || d.family == 0x16

	devID := d.miscControlDeviceID()
	d.miscPCI = amdMiscPCIAddress(facade, packageIndex, miscellaneousControlFunction10h, devID)

	if d.family == 0x15 {
		switch d.model & 0xF0 {
		case 0x60, 0x70:
			d.hasSMUTemperatureReg = true
		}
	}

	d.hasTSC = hasTimeStampCounter(base.Cpuid0())
	if d.hasTSC {
		d.coreClockHz = make([]float64, base.CoreCount())
		d.tscMultiplier = d.estimateTSCMultiplier()
	}

	if addr := ring0.PCIAddress(0, 20, 0); true {
		if dev, err := facade.ReadPCIConfig(addr, 0); err == nil {
			rev, _ := facade.ReadPCIConfig(addr, 8)

			switch dev {
			case 0x43851002:
				if rev&0xFF < 0x40 {
					d.cstatesIOOffset = 0xB3
				} else {
					d.cstatesIOOffset = 0x9C
				}
			case 0x780B1022, 0x790B1022:
				d.cstatesIOOffset = 0x9C
			}
		}
	}

	return d
}

func (d *AMD10) miscControlDeviceID() uint16 {
	switch d.family {
	case 0x10:
		return family10hMiscControlDeviceID
	case 0x11:
		return family11hMiscControlDeviceID
	case 0x12:
		return family12hMiscControlDeviceID
	case 0x14:
		return family14hMiscControlDeviceID
	case 0x15:
		switch d.model & 0xF0 {
		case 0x00:
			return family15hModel00MiscControlDevID
		case 0x10:
			return family15hModel10MiscControlDevID
		case 0x30:
			return family15hModel30MiscControlDevID
		case 0x60:
			return family15hModel60MiscControlDevID
		case 0x70:
			return family15hModel70MiscControlDevID
		}
	case 0x16:
		switch d.model & 0xF0 {
		case 0x00:
			return family16hModel00MiscControlDevID
		case 0x30:
			return family16hModel30MiscControlDevID
		}
	}

	return 0
}

func (d *AMD10) hasCStates() bool { return d.cstatesIOOffset != 0 }

// estimateTSCMultiplier measures the TSC-to-bus-clock ratio by counting
// "CPU clocks not halted" events (performance event 0x76) over short
// windows and dividing out the COFVID core multiplier. The whole
// measurement runs pinned to core 0's first thread with core performance
// boost disabled and performance counter 0's registers saved, so the
// counter hijack never leaks into another core's state or survives a
// failure path.
func (d *AMD10) estimateTSCMultiplier() float64 {
	cpu0 := d.Cpuid0()

	restoreAffinity, err := cpu0.Affinity.Pin()
	if err != nil {
		return 0
	}
	defer restoreAffinity()

	cpbSupport := cpu0.SafeExt(7).Edx&(1<<9) != 0

	hwcrEax, hwcrEdx, err := d.ring0.ReadMSR(hwcrMSR)
	if err != nil {
		return 0
	}

	if cpbSupport {
		if err := d.ring0.WriteMSR(hwcrMSR, hwcrEax|(1<<25), hwcrEdx); err != nil {
			return 0
		}

		defer func() { _ = d.ring0.WriteMSR(hwcrMSR, hwcrEax, hwcrEdx) }()
	}

	ctlEax, ctlEdx, err := d.ring0.ReadMSR(perfCtl0)
	if err != nil {
		return 0
	}

	ctrEax, ctrEdx, err := d.ring0.ReadMSR(perfCtr0)
	if err != nil {
		return 0
	}

	defer func() {
		_ = d.ring0.WriteMSR(perfCtl0, ctlEax, ctlEdx)
		_ = d.ring0.WriteMSR(perfCtr0, ctrEax, ctrEdx)
	}()

	// Two throwaway runs warm the code path, then the median of three
	// 25ms windows is kept.
	d.sampleTSCMultiplier(0)
	d.sampleTSCMultiplier(0)

	samples := []float64{
		d.sampleTSCMultiplier(25 * time.Millisecond),
		d.sampleTSCMultiplier(25 * time.Millisecond),
		d.sampleTSCMultiplier(25 * time.Millisecond),
	}

	sort.Float64s(samples)

	return samples[1]
}

// sampleTSCMultiplier runs one counting window. Callers have already
// pinned the thread and saved the counter registers.
func (d *AMD10) sampleTSCMultiplier(window time.Duration) float64 {
	// select event 0x76 "CPU clocks not halted", counting in both user
	// and operating-system mode, and enable the counter
	ctl := uint32(1<<22 | 1<<17 | 1<<16 | 0x76)

	if err := d.ring0.WriteMSR(perfCtl0, ctl, 0); err != nil {
		return 0
	}

	if err := d.ring0.WriteMSR(perfCtr0, 0, 0); err != nil {
		return 0
	}

	t0 := time.Now()

	beginEax, beginEdx, err := d.ring0.ReadMSR(perfCtr0)
	if err != nil {
		return 0
	}

	deadline := t0.Add(window)
	for time.Now().Before(deadline) {
	}

	endEax, endEdx, err := d.ring0.ReadMSR(perfCtr0)
	if err != nil {
		return 0
	}

	elapsed := time.Since(t0)
	if elapsed <= 0 {
		return 0
	}

	cofvidEax, _, err := d.ring0.ReadMSR(cofvidStatus)
	if err != nil {
		return 0
	}

	coreMultiplier := d.coreMultiplier(cofvidEax)
	if coreMultiplier <= 0 {
		return 0
	}

	begin := uint64(beginEdx)<<32 | uint64(beginEax)
	end := uint64(endEdx)<<32 | uint64(endEax)

	coreFrequency := float64(end-begin) / elapsed.Seconds()

	busFrequency := coreFrequency / coreMultiplier
	if busFrequency <= 0 {
		return 0
	}

	return 0.25 * math.Round(4*d.TSCFrequencyHz()/busFrequency)
}

func (d *AMD10) Config() sensors.ChannelConfig {
	cfg := d.GenericCPU.Config()

	cfg.Sensors[sensors.Temperature] = sensors.TypeConfig{ChannelAttributes: []sensors.Mask{sensors.InputMask(true)}}
	cfg.Sensors[sensors.Voltage] = sensors.TypeConfig{
		ChannelAttributes: []sensors.Mask{sensors.InputMask(true), sensors.InputMask(true)},
	}

	if d.hasTSC {
		attrs := make([]sensors.Mask, 1+len(d.coreClockHz))
		for i := range attrs {
			attrs[i] = sensors.InputMask(true)
		}

		cfg.Sensors[sensors.Frequency] = sensors.TypeConfig{ChannelAttributes: attrs}
	}

	if d.hasCStates() {
		cfg.Sensors[sensors.Fraction] = sensors.TypeConfig{
			ChannelAttributes: []sensors.Mask{sensors.InputMask(true), sensors.InputMask(true)},
		}
	}

	return cfg
}

func (d *AMD10) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	switch t {
	case sensors.Temperature:
		if channel != 0 {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Voltage:
		if channel < 0 || channel > 1 {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Frequency:
		if !d.hasTSC || channel < 0 || channel > len(d.coreClockHz) {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Fraction:
		if !d.hasCStates() || channel < 0 || channel > 1 {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	default:
		return d.GenericCPU.IsVisible(t, attr, channel)
	}
}

func (d *AMD10) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	switch t {
	case sensors.Temperature, sensors.Voltage, sensors.Frequency:
	case sensors.Fraction:
		d.mu.Lock()
		defer d.mu.Unlock()

		return d.readCStateResidency(channel)
	default:
		return d.GenericCPU.ReadFloat(t, attr, channel)
	}

	d.update()

	d.mu.Lock()
	defer d.mu.Unlock()

	switch t {
	case sensors.Temperature:
		return d.temperature, nil
	case sensors.Voltage:
		if channel == 0 {
			return d.coreVoltage, nil
		}

		return d.nbVoltage, nil
	default: // sensors.Frequency
		if channel == 0 {
			return d.busClockHz, nil
		}

		idx := channel - 1
		if idx < 0 || idx >= len(d.coreClockHz) {
			return 0, sensors.ErrChannelOutOfRange
		}

		return d.coreClockHz[idx], nil
	}
}

// update refreshes the cached temperature, clocks and voltages at most
// once per updateInterval.
func (d *AMD10) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.gate.due(time.Now()) {
		return
	}

	_ = d.updateTemperature()
	_ = d.updateClocksAndVoltage()
}

// coreMultiplier decodes COFVID_STATUS's CpuFid/CpuDid fields, whose bit
// layout differs per family.
func (d *AMD10) coreMultiplier(cofVidEax uint32) float64 {
	switch d.family {
	case 0x10, 0x11, 0x15, 0x16:
		cpuDid := (cofVidEax >> 6) & 7
		cpuFid := cofVidEax & 0x1F

		return 0.5 * float64(cpuFid+0x10) / float64(uint32(1)<<cpuDid)
	case 0x12:
		cpuFid := (cofVidEax >> 4) & 0x1F
		cpuDid := cofVidEax & 0xF

		divisors := [...]float64{1, 1.5, 2, 3, 4, 6, 8, 12, 16}

		divisor := 1.0
		if int(cpuDid) < len(divisors) {
			divisor = divisors[cpuDid]
		}

		return float64(cpuFid+0x10) / divisor
	case 0x14:
		divisorIDMsd := (cofVidEax >> 4) & 0x1F
		divisorIDLsd := cofVidEax & 0xF

		value, err := d.ring0.ReadPCIConfig(d.miscPCI, clockPowerTimingControl0Register)
		if err != nil {
			return 1
		}

		frequencyID := value & 0x1F

		return float64(frequencyID+0x10) / (float64(divisorIDMsd) + float64(divisorIDLsd)*0.25 + 1)
	default:
		return 1
	}
}

func svi2Volt(vid uint32) float64 {
	if vid < 0xF8 {
		return 1.5500 - 0.00625*float64(vid)
	}

	return 0
}

func svi1Volt(vid uint32) float64 {
	if vid < 0x7C {
		return 1.550 - 0.0125*float64(vid)
	}

	return 0
}

func (d *AMD10) updateTemperature() error {
	var (
		value uint32
		valid bool
		err   error
	)

	if d.hasSMUTemperatureReg {
		value, valid = d.readSMURegister(smuReportedTempCtrlOffset)
	} else if d.miscPCI != ring0.InvalidPCIAddress {
		value, err = d.ring0.ReadPCIConfig(d.miscPCI, reportedTemperatureControlReg)
		valid = err == nil
	}

	if !valid {
		d.temperature = math.NaN()
		return nil
	}

	if (d.family == 0x15 || d.family == 0x16) && value&0x30000 == 0x3000 {
		if d.family == 0x15 && d.model&0xF0 == 0x00 {
			d.temperature = float64((value>>21)&0x7FC)/8.0 - 49
		} else {
			d.temperature = float64((value>>21)&0x7FF)/8.0 - 49
		}
	} else {
		d.temperature = float64((value>>21)&0x7FF) / 8.0
	}

	return nil
}

// readSMURegister indirects through PCI device 0 registers 0xB8/0xBC, the
// AMD System Management Unit's register window, under the shared PCI lock
// so the address write and data read never interleave with another
// process's indirect access.
func (d *AMD10) readSMURegister(address uint32) (uint32, bool) {
	unlock, ok := ring0.LockPCIBus.TryLock(10 * time.Millisecond)
	if !ok {
		return 0, false
	}
	defer unlock()

	if err := d.ring0.WritePCIConfig(0, 0xB8, address); err != nil {
		return 0, false
	}

	value, err := d.ring0.ReadPCIConfig(0, 0xBC)

	return value, err == nil
}

func (d *AMD10) updateClocksAndVoltage() error {
	if !d.hasTSC {
		return nil
	}

	tscHz := d.TSCFrequencyHz()

	busClock := tscHz
	if d.tscMultiplier > 0 {
		busClock = tscHz / d.tscMultiplier
	}

	var newBusClock, maxCoreVoltage, maxNbVoltage float64

	for i := range d.coreClockHz {
		affinity := d.topology[i][0].Affinity

		eax, _, err := d.ring0.ReadMSRAffinity(affinity, cofvidStatus)
		if err != nil {
			d.coreClockHz[i] = tscHz
			continue
		}

		multiplier := d.coreMultiplier(eax)
		d.coreClockHz[i] = multiplier * busClock
		newBusClock = busClock

		coreVid60 := (eax >> 9) & 0x7F

		var coreVoltage, nbVoltage float64
		if d.isSVI2 {
			coreVoltage = svi2Volt((eax>>13)&0x80 | coreVid60)
			nbVoltage = svi2Volt(eax >> 24)
		} else {
			coreVoltage = svi1Volt(coreVid60)
			nbVoltage = svi1Volt(eax >> 25)
		}

		if coreVoltage > maxCoreVoltage {
			maxCoreVoltage = coreVoltage
		}

		if nbVoltage > maxNbVoltage {
			maxNbVoltage = nbVoltage
		}
	}

	d.coreVoltage = maxCoreVoltage
	d.nbVoltage = maxNbVoltage

	if newBusClock > 0 {
		d.busClockHz = newBusClock
	}

	return nil
}

func (d *AMD10) readCStateResidency(channel int) (float64, error) {
	if !d.hasCStates() || channel < 0 || channel > 1 {
		return 0, sensors.ErrChannelOutOfRange
	}

	if err := d.ring0.WriteIOPort(cstatesIOPort, d.cstatesIOOffset+uint8(channel)); err != nil {
		return 0, err
	}

	raw, err := d.ring0.ReadIOPort(cstatesIOPort + 1)
	if err != nil {
		return 0, err
	}

	return float64(raw) / 256.0, nil
}

func (d *AMD10) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (d *AMD10) ChannelLabel(t sensors.SensorType, channel int) string {
	switch t {
	case sensors.Temperature:
		return "CPU Cores"
	case sensors.Voltage:
		if channel == 0 {
			return "CPU Cores"
		}

		return "Northbridge"
	case sensors.Frequency:
		if channel == 0 {
			return "Bus Speed"
		}

		return defaultCoreLabel(channel - 1)
	case sensors.Fraction:
		if channel == 0 {
			return "CPU Package C2"
		}

		return "CPU Package C3"
	default:
		return d.GenericCPU.ChannelLabel(t, channel)
	}
}
