package cpu

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

// AMD family 17h/19h (Zen/Zen+/Zen2/Zen3/Zen4) register constants.
const (
	f17hM01hSVI           = 0x0005A000
	f17hM01hThmTconCurTmp = 0x00059800
	f17hTempOffsetFlag    = 0x80000

	// zenCCDTempValidBit marks a per-CCD temperature register as backed by
	// a populated die; a CCD slot with the bit clear is simply absent on
	// that package (fewer CCDs than the family's maximum).
	zenCCDTempValidBit = 11

	msrCoreEnergyStat       = 0xC001029A
	msrPkgEnergyStat        = 0xC001029B
	msrPwrUnit              = 0xC0010299
	msrHardwarePstateStatus = 0xC0010293

	amdSmnIndexOffset = 0x60
	amdSmnDataOffset  = 0x64
)

// tctlOffset is one row of the Tctl-to-Tdie correction table: some Ryzen
// parts report Tctl a fixed number of degrees above actual Tdie. Rows are
// keyed by CPUID model plus package type (0x07 is Socket TR4/sTRX4, the
// Threadripper package) because desktop and Threadripper parts share model
// numbers but carry different offsets.
type tctlOffset struct {
	model       uint32
	packageType int32 // -1 matches any package type
	offset      float64
}

var tctlOffsetTable = []tctlOffset{
	{model: 0x01, packageType: 7, offset: -27},  // Threadripper 1900X/1920X/1950X (SummitRidge, TR4)
	{model: 0x08, packageType: 7, offset: -27},  // Threadripper 2920X/2950X/2970WX/2990WX (Colfax, TR4)
	{model: 0x08, packageType: -1, offset: -20}, // Ryzen 1600X/1700X/1800X (desktop AM4)
	{model: 0x18, packageType: -1, offset: -10}, // Ryzen 2700X (desktop AM4, Pinnacle Ridge)
}

// ccdLayout is one row of the per-CCD temperature discovery table:
// maxCount is the most CCDs a package in this family can carry, and
// offset locates ZEN_CCD_TEMP's first slot within the family's SMN
// temperature window. One desktop layout per family; server parts place
// the window elsewhere and simply discover no CCDs here.
type ccdLayout struct {
	family   uint32
	maxCount int
	offset   uint32
}

var ccdLayoutTable = []ccdLayout{
	{family: 0x17, maxCount: 8, offset: 0x154}, // Matisse/Vermeer (Zen2/Zen3 desktop)
	{family: 0x19, maxCount: 8, offset: 0x154}, // Vermeer/Raphael (Zen3/Zen4 desktop)
}

// zenCCDTempAddr returns the SMN address of CCD i's temperature register
// within a family's offset window.
func zenCCDTempAddr(offset uint32, i int) uint32 {
	return f17hM01hThmTconCurTmp + offset + uint32(i)*4
}

// lookupTctlOffset returns the first matching row's offset, or 0 if the
// model has none (no correction needed/known).
func lookupTctlOffset(model uint32, packageType int32) float64 {
	for _, e := range tctlOffsetTable {
		if e.model == model && (e.packageType < 0 || e.packageType == packageType) {
			return e.offset
		}
	}

	return 0
}

func ccdInfo(family uint32) (maxCount int, offset uint32, ok bool) {
	for _, l := range ccdLayoutTable {
		if l.family == family {
			return l.maxCount, l.offset, true
		}
	}

	return 0, 0, false
}

// AMD17 implements the AMD family 17h/19h CPU chip: Tctl/Tdie and per-CCD
// Tdie temperatures (via the SMN-indirect THM_TCON_CUR_TMP and
// ZEN_CCD_TEMP registers), package and core power (via the
// RAPL-equivalent MSR_PKG_ENERGY_STAT/MSR_CORE_ENERGY_STAT accumulators),
// and effective core clock (via MSR_HARDWARE_PSTATE_STATUS).
type AMD17 struct {
	*GenericCPU

	smnPCIAddress uint32
	ring0         *ring0.Facade

	tctlOffset float64

	ccdOffset  uint32
	ccdIndices []int

	smu *AMD17SMUPMTable

	energyUnitJ float64

	mu   sync.Mutex
	gate updateGate

	pkgEnergy  energyCounter
	coreEnergy energyCounter

	tctlTemp   float64
	ccdTemps   []float64
	coreFreqHz float64
	smuFreq    []float64
	smuVolt    []float64
}

// NewAMD17 constructs the family 17h/19h driver. node is the data-fabric
// PCI device's node index (0 on single-socket desktop parts).
func NewAMD17(base *GenericCPU, facade *ring0.Facade, node int) *AMD17 {
	d := &AMD17{GenericCPU: base, ring0: facade, smnPCIAddress: nodeToPCIAddress(node)}

	cpu0 := base.Cpuid0()
	model := cpu0.Model
	family := cpu0.Family
	pkgType := int32(cpu0.PkgType)

	d.tctlOffset = lookupTctlOffset(model, pkgType)

	if maxCount, offset, ok := ccdInfo(family); ok {
		d.ccdOffset = offset

		for i := 0; i < maxCount; i++ {
			raw, err := d.smnRead(zenCCDTempAddr(offset, i))
			if err == nil && raw&(1<<zenCCDTempValidBit) != 0 {
				d.ccdIndices = append(d.ccdIndices, i)
			}
		}
	}

	if smu, ok := NewAMD17SMUPMTable(d, family, model); ok {
		d.smu = smu
	}

	d.tctlTemp = math.NaN()
	d.ccdTemps = make([]float64, len(d.ccdIndices))

	for i := range d.ccdTemps {
		d.ccdTemps[i] = math.NaN()
	}

	d.coreFreqHz = math.NaN()
	d.pkgEnergy.powerW = math.NaN()
	d.coreEnergy.powerW = math.NaN()

	return d
}

// nodeToPCIAddress maps a data-fabric node to its PCI identity: node 0 is
// device 0x18, function 0, on the root bus.
func nodeToPCIAddress(node int) uint32 {
	return ring0.PCIAddress(0, uint32(0x18+node), 0)
}

// smnReadRaw performs the two-register SMN indirection with no locking;
// callers either hold the PCI lock across a longer transaction (the SMU
// mailbox) or go through smnRead.
func (d *AMD17) smnReadRaw(addr uint32) (uint32, error) {
	if err := d.ring0.WritePCIConfig(d.smnPCIAddress, amdSmnIndexOffset, addr); err != nil {
		return 0, err
	}

	return d.ring0.ReadPCIConfig(d.smnPCIAddress, amdSmnDataOffset)
}

// smnRead is smnReadRaw under the shared PCI lock; the index write and
// data read must not interleave with any other process's SMN access.
func (d *AMD17) smnRead(addr uint32) (uint32, error) {
	unlock, ok := ring0.LockPCIBus.TryLock(10 * time.Millisecond)
	if !ok {
		return 0, sensors.ErrLockTimeout
	}
	defer unlock()

	return d.smnReadRaw(addr)
}

// temperatureChannelCount is 1 (Tctl/Tdie) plus one per discovered CCD,
// plus two more (CCDs Max/Average) once there is more than one CCD to
// aggregate.
func (d *AMD17) temperatureChannelCount() int {
	n := 1 + len(d.ccdIndices)
	if len(d.ccdIndices) > 1 {
		n += 2
	}

	return n
}

// frequencyChannelCount is 1 (effective core clock) plus one per SMU
// PM-table frequency offset this codename is recognized to expose.
func (d *AMD17) frequencyChannelCount() int {
	n := 1
	if d.smu != nil {
		n += len(d.smu.layout.frequency)
	}

	return n
}

// voltageChannelCount is the number of SMU PM-table voltage offsets this
// codename is recognized to expose -- zero on an unrecognized codename,
// in which case the Voltage type isn't published at all.
func (d *AMD17) voltageChannelCount() int {
	if d.smu == nil {
		return 0
	}

	return len(d.smu.layout.voltage)
}

// Config extends GenericCPU's Load channel with Temperature (Tctl/Tdie
// plus any discovered per-CCD channels), Power (package and core),
// Frequency (effective core clock plus any SMU PM-table clocks), and,
// when the SMU PM-table parser recognizes this CPU's codename, Voltage
// (SoC rail) channels.
func (d *AMD17) Config() sensors.ChannelConfig {
	cfg := d.GenericCPU.Config()

	tempAttrs := make([]sensors.Mask, d.temperatureChannelCount())
	for i := range tempAttrs {
		tempAttrs[i] = sensors.InputMask(true)
	}

	freqAttrs := make([]sensors.Mask, d.frequencyChannelCount())
	for i := range freqAttrs {
		freqAttrs[i] = sensors.InputMask(true)
	}

	cfg.Sensors[sensors.Temperature] = sensors.TypeConfig{ChannelAttributes: tempAttrs}
	cfg.Sensors[sensors.Power] = sensors.TypeConfig{
		ChannelAttributes: []sensors.Mask{sensors.InputMask(true), sensors.InputMask(true)},
	}
	cfg.Sensors[sensors.Frequency] = sensors.TypeConfig{ChannelAttributes: freqAttrs}

	if n := d.voltageChannelCount(); n > 0 {
		voltAttrs := make([]sensors.Mask, n)
		for i := range voltAttrs {
			voltAttrs[i] = sensors.InputMask(true)
		}

		cfg.Sensors[sensors.Voltage] = sensors.TypeConfig{ChannelAttributes: voltAttrs}
	}

	return cfg
}

func (d *AMD17) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	switch t {
	case sensors.Temperature:
		if channel < 0 || channel >= d.temperatureChannelCount() {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Power:
		if channel < 0 || channel > 1 {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Frequency:
		if channel < 0 || channel >= d.frequencyChannelCount() {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.Voltage:
		if channel < 0 || channel >= d.voltageChannelCount() {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	default:
		return d.GenericCPU.IsVisible(t, attr, channel)
	}
}

func (d *AMD17) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	switch t {
	case sensors.Temperature, sensors.Power, sensors.Frequency, sensors.Voltage:
	default:
		return d.GenericCPU.ReadFloat(t, attr, channel)
	}

	d.update()

	d.mu.Lock()
	defer d.mu.Unlock()

	switch t {
	case sensors.Temperature:
		return d.temperatureChannelLocked(channel)
	case sensors.Power:
		if channel < 0 || channel > 1 {
			return 0, sensors.ErrChannelOutOfRange
		}

		if channel == 0 {
			return d.pkgEnergy.powerW, nil
		}

		return d.coreEnergy.powerW, nil
	case sensors.Frequency:
		return d.frequencyChannelLocked(channel)
	default: // sensors.Voltage
		return d.smuVoltageLocked(channel)
	}
}

// update refreshes every cached reading at most once per updateInterval;
// readers inside the window never touch the SMN or an MSR.
func (d *AMD17) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.gate.due(now) {
		return
	}

	d.tctlTemp = math.NaN()

	if raw, err := d.smnRead(f17hM01hThmTconCurTmp); err == nil {
		temp := float64((raw>>21)&0x7FF) * 0.125
		if raw&f17hTempOffsetFlag != 0 {
			temp -= 49
		}

		d.tctlTemp = temp + d.tctlOffset
	}

	for i, idx := range d.ccdIndices {
		d.ccdTemps[i] = math.NaN()

		if raw, err := d.smnRead(zenCCDTempAddr(d.ccdOffset, idx)); err == nil {
			if t, err := decodeCCDTemp(raw); err == nil {
				d.ccdTemps[i] = t
			}
		}
	}

	if err := d.ensureEnergyUnit(); err == nil {
		if eax, _, err := d.ring0.ReadMSR(msrPkgEnergyStat); err == nil {
			d.pkgEnergy.update(eax, d.energyUnitJ, now)
		}

		if eax, _, err := d.ring0.ReadMSR(msrCoreEnergyStat); err == nil {
			d.coreEnergy.update(eax, d.energyUnitJ, now)
		}
	}

	d.coreFreqHz = math.NaN()

	if eax, _, err := d.ring0.ReadMSR(msrHardwarePstateStatus); err == nil {
		d.coreFreqHz = decodeCoreFrequency(eax)
	}

	if d.smu != nil {
		if freq, volt, err := d.smu.Refresh(); err == nil {
			d.smuFreq = freq
			d.smuVolt = volt
		}
	}
}

func (d *AMD17) frequencyChannelLocked(channel int) (float64, error) {
	if channel < 0 || channel >= d.frequencyChannelCount() {
		return 0, sensors.ErrChannelOutOfRange
	}

	if channel == 0 {
		return d.coreFreqHz, nil
	}

	if channel-1 >= len(d.smuFreq) {
		return math.NaN(), nil
	}

	return d.smuFreq[channel-1], nil
}

func (d *AMD17) smuVoltageLocked(channel int) (float64, error) {
	if channel < 0 || channel >= d.voltageChannelCount() {
		return 0, sensors.ErrChannelOutOfRange
	}

	if channel >= len(d.smuVolt) {
		return math.NaN(), nil
	}

	return d.smuVolt[channel], nil
}

// decodeCCDTemp interprets one ZEN_CCD_TEMP register: bit 11 marks the
// slot populated, bits [11:0] are the temperature in 0.125C steps biased
// by 305C.
func decodeCCDTemp(raw uint32) (float64, error) {
	if raw&(1<<zenCCDTempValidBit) == 0 {
		return math.NaN(), nil
	}

	return (float64(raw&0xFFF)*125 - 305000) * 0.001, nil
}

func (d *AMD17) temperatureChannelLocked(channel int) (float64, error) {
	if channel < 0 || channel >= d.temperatureChannelCount() {
		return 0, sensors.ErrChannelOutOfRange
	}

	if channel == 0 {
		return d.tctlTemp, nil
	}

	n := len(d.ccdTemps)

	if channel-1 < n {
		return d.ccdTemps[channel-1], nil
	}

	max := math.Inf(-1)
	sum := 0.0
	valid := 0

	for _, t := range d.ccdTemps {
		if math.IsNaN(t) {
			continue
		}

		sum += t
		valid++

		if t > max {
			max = t
		}
	}

	if valid == 0 {
		return math.NaN(), nil
	}

	if channel-1-n == 0 {
		return max, nil
	}

	return sum / float64(valid), nil
}

func (d *AMD17) ensureEnergyUnit() error {
	if d.energyUnitJ != 0 {
		return nil
	}

	eax, _, err := d.ring0.ReadMSR(msrPwrUnit)
	if err != nil {
		return err
	}

	d.energyUnitJ = 1.0 / float64(uint32(1)<<((eax>>8)&0x1F))

	return nil
}

// decodeCoreFrequency derives the effective core clock from
// MSR_HARDWARE_PSTATE_STATUS's CurCpuFid/CurCpuDfsId fields: fid/dfsid is
// the multiplier applied to the 200MHz reference clock.
func decodeCoreFrequency(eax uint32) float64 {
	curCpuFid := eax & 0xFF
	curCpuDfsID := (eax >> 8) & 0x3F

	if curCpuDfsID == 0 {
		return math.NaN()
	}

	return float64(curCpuFid) / float64(curCpuDfsID) * 200e6
}

func (d *AMD17) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (d *AMD17) ChannelLabel(t sensors.SensorType, channel int) string {
	switch t {
	case sensors.Temperature:
		n := len(d.ccdIndices)

		switch {
		case channel == 0:
			return "Core (Tctl/Tdie)"
		case channel-1 < n:
			return fmt.Sprintf("CCD%d (Tdie)", d.ccdIndices[channel-1]+1)
		case n > 1 && channel-1-n == 0:
			return "CCDs Max (Tdie)"
		case n > 1 && channel-1-n == 1:
			return "CCDs Average (Tdie)"
		default:
			return sensors.DefaultChannelLabel(t, channel)
		}
	case sensors.Power:
		if channel == 0 {
			return "Package"
		}

		return "Core"
	case sensors.Frequency:
		if channel == 0 {
			return "Core"
		}

		if d.smu != nil && channel-1 < len(d.smu.layout.frequency) {
			return d.smu.layout.frequency[channel-1].label
		}

		return sensors.DefaultChannelLabel(t, channel)
	case sensors.Voltage:
		if d.smu != nil && channel >= 0 && channel < len(d.smu.layout.voltage) {
			return d.smu.layout.voltage[channel].label
		}

		return sensors.DefaultChannelLabel(t, channel)
	default:
		return d.GenericCPU.ChannelLabel(t, channel)
	}
}
