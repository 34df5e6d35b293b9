package cpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/cpuid"
	"github.com/openhwmon/gohwmon/sensors"
)

// GenericCPU is the shared base every vendor/family CPU chip embeds: it
// exposes one Load channel per core plus a package-total channel, refusing
// to publish more than the topology it was built from actually has.
type GenericCPU struct {
	mu   sync.Mutex
	gate updateGate

	id       sensors.Identifier
	topology [][]*cpuid.Data // [core][thread]
	load     *Load

	coreLoads []float64
	totalLoad float64

	tscOnce sync.Once
	tscHz   float64
}

// NewGenericCPU builds the base chip from one package's topology (as
// returned by cpuid.GroupTopology, indexed [core][thread]).
func NewGenericCPU(index int, topology [][]*cpuid.Data, hwType sensors.HardwareType) *GenericCPU {
	return &GenericCPU{
		id:        sensors.Identifier{Name: fmt.Sprintf("cpu%d", index), Type: hwType, Bus: sensors.BusVirtual},
		topology:  topology,
		load:      NewLoad(),
		coreLoads: make([]float64, len(topology)),
	}
}

// CoreCount returns the number of cores in this package.
func (c *GenericCPU) CoreCount() int { return len(c.topology) }

// Cpuid0 returns the CPUID snapshot for core 0, thread 0 -- the instance
// every family-specific driver reads Family/Model/ApicID from.
func (c *GenericCPU) Cpuid0() *cpuid.Data {
	if len(c.topology) == 0 || len(c.topology[0]) == 0 {
		return nil
	}

	return c.topology[0][0]
}

// TSCFrequencyHz returns the package's TSC frequency, calibrated once on
// first use. Family drivers derive bus and core clocks from it.
func (c *GenericCPU) TSCFrequencyHz() float64 {
	c.tscOnce.Do(func() {
		if hasTimeStampCounter(c.Cpuid0()) {
			c.tscHz = estimateTSCFrequencyHz()
		}
	})

	return c.tscHz
}

// UpdateLoad refreshes coreLoads/totalLoad from /proc/stat, averaging a
// core's threads' per-logical-CPU loads so a hyperthreaded core reports
// one figure.
func (c *GenericCPU) UpdateLoad() error {
	perLogical, err := c.load.Update()
	if err != nil {
		return err
	}

	if perLogical == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64

	count := 0

	for i, threads := range c.topology {
		var sum float64

		for _, d := range threads {
			if d.Thread < len(perLogical) {
				sum += perLogical[d.Thread]
				total += perLogical[d.Thread]
				count++
			}
		}

		if len(threads) > 0 {
			c.coreLoads[i] = sum / float64(len(threads))
		}
	}

	if count > 0 {
		c.totalLoad = total / float64(count)
	}

	return nil
}

// Config publishes one Load channel per core plus a trailing package-total
// channel at index CoreCount().
func (c *GenericCPU) Config() sensors.ChannelConfig {
	n := len(c.topology) + 1
	attrs := make([]sensors.Mask, n)

	for i := range attrs {
		attrs[i] = sensors.InputMask(true)
	}

	return sensors.ChannelConfig{Sensors: map[sensors.SensorType]sensors.TypeConfig{
		sensors.Load: {ChannelAttributes: attrs},
	}}
}

// IsVisible reports whether (Load, channel) is in range; every other type
// is left to the embedding family driver.
func (c *GenericCPU) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	if t != sensors.Load {
		return sensors.Visibility{}, sensors.ErrNotSupported
	}

	if channel < 0 || channel > len(c.topology) {
		return sensors.Visibility{}, sensors.ErrChannelOutOfRange
	}

	return sensors.Visibility{Readable: true}, nil
}

// ReadFloat returns a per-core load fraction, or the package total at the
// trailing channel index, re-sampling /proc/stat at most once per
// updateInterval.
func (c *GenericCPU) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	if t != sensors.Load {
		return 0, sensors.ErrNotSupported
	}

	c.mu.Lock()
	due := c.gate.due(time.Now())
	c.mu.Unlock()

	if due {
		if err := c.UpdateLoad(); err != nil {
			return 0, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if channel == len(c.topology) {
		return c.totalLoad, nil
	}

	if channel < 0 || channel >= len(c.coreLoads) {
		return 0, sensors.ErrChannelOutOfRange
	}

	return c.coreLoads[channel], nil
}

// ReadString returns the channel label for AttrLabel reads.
func (c *GenericCPU) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return c.ChannelLabel(t, channel), nil
}

// Write is unsupported: load is read-only.
func (c *GenericCPU) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

// Identifier returns the chip's tree identity.
func (c *GenericCPU) Identifier() *sensors.Identifier { return &c.id }

// ChannelLabel labels the trailing channel "CPU Total" and numbers cores
// from 1.
func (c *GenericCPU) ChannelLabel(t sensors.SensorType, channel int) string {
	if t == sensors.Load && channel == len(c.topology) {
		return "CPU Total"
	}

	if t == sensors.Load {
		return defaultCoreLabel(channel)
	}

	return sensors.DefaultChannelLabel(t, channel)
}

// defaultCoreLabel numbers a per-core channel from 1, the label every
// family driver uses for per-core channels ("CPU Core #1").
func defaultCoreLabel(core int) string {
	return fmt.Sprintf("CPU Core #%d", core+1)
}
