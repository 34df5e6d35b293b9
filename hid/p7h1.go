package hid

import (
	"math"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
)

const (
	p7h1VendorAerocool = 0x2e97
	p7h1ProductP7H1    = 0x0001

	p7h1FanCount       = 5
	p7h1UpdateInterval = time.Second

	// p7h1SentinelNoFan marks a tachometer group with no fan attached; the
	// firmware reports all bits set rather than omitting the group.
	p7h1SentinelNoFan = 0xFFFFFF
)

// P7H1 is the AeroCool P7-H1 fan hub: a pull-model HID device with no
// autonomous reporting. A client must request a report and the device
// replies with five 3-byte fan tachometer counters; readings are cached
// behind the same one-second gate every Super I/O and EC chip in this
// module uses.
type P7H1 struct {
	dev Device
	id  sensors.Identifier

	mu         sync.Mutex
	lastUpdate time.Time
	haveCache  bool
	fanRPM     [p7h1FanCount]float64
}

// OpenP7H1 enumerates hidraw devices for the AeroCool P7-H1's USB identity
// and, if found, opens it.
func OpenP7H1() (*P7H1, bool, error) {
	found, err := Enumerate(VendorProductMatcher(p7h1VendorAerocool, p7h1ProductP7H1))
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

	return NewP7H1(dev), true, nil
}

func NewP7H1(dev Device) *P7H1 {
	return &P7H1{
		dev: dev,
		id:  sensors.Identifier{Name: "p7h1", Type: "p7h1", Bus: sensors.BusHID},
	}
}

func (p *P7H1) update() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveCache && time.Since(p.lastUpdate) < p7h1UpdateInterval {
		return nil
	}

	report := make([]byte, 64)

	if _, err := p.dev.Read(report); err != nil {
		return err
	}

	const fanGroupStart = 4

	for i := 0; i < p7h1FanCount; i++ {
		off := fanGroupStart + i*3
		raw := uint32(report[off]) | uint32(report[off+1])<<8 | uint32(report[off+2])<<16

		if raw == 0 || raw == p7h1SentinelNoFan {
			p.fanRPM[i] = math.NaN()
			continue
		}

		p.fanRPM[i] = float64(raw)
	}

	p.haveCache = true
	p.lastUpdate = time.Now()

	return nil
}

func (p *P7H1) Config() sensors.ChannelConfig {
	attrs := make([]sensors.Mask, p7h1FanCount)
	for i := range attrs {
		attrs[i] = sensors.InputMask(true)
	}

	return sensors.ChannelConfig{
		Sensors: map[sensors.SensorType]sensors.TypeConfig{
			sensors.Fan: {ChannelAttributes: attrs},
		},
	}
}

func (p *P7H1) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	if t != sensors.Fan {
		return sensors.Visibility{}, sensors.ErrNotSupported
	}

	if channel < 0 || channel >= p7h1FanCount {
		return sensors.Visibility{}, sensors.ErrChannelOutOfRange
	}

	return sensors.Visibility{Readable: true}, nil
}

func (p *P7H1) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	if t != sensors.Fan {
		return 0, sensors.ErrNotSupported
	}

	if channel < 0 || channel >= p7h1FanCount {
		return 0, sensors.ErrChannelOutOfRange
	}

	if err := p.update(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.fanRPM[channel], nil
}

func (p *P7H1) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return p.ChannelLabel(t, channel), nil
}

func (p *P7H1) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (p *P7H1) Identifier() *sensors.Identifier { return &p.id }

func (p *P7H1) ChannelLabel(t sensors.SensorType, channel int) string {
	return sensors.DefaultChannelLabel(t, channel)
}

// Close releases the underlying hidraw device.
func (p *P7H1) Close() error { return p.dev.Close() }
