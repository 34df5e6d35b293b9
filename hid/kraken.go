package hid

import (
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
)

const (
	krakenVendorNZXT   = 0x1e71
	krakenProductX3    = 0x2007
	krakenPollInterval = 500 * time.Millisecond
)

// Kraken is the NZXT Kraken X3 all-in-one liquid cooler: a push-model HID
// device that streams an unsolicited status report roughly twice a second
// containing liquid temperature and pump speed. A background goroutine
// owns the only read of the device; callers only ever see the last decoded
// report.
type Kraken struct {
	reader autoReader

	id sensors.Identifier

	mu          sync.Mutex
	temperature float64
	pumpRPM     float64
	haveReport  bool
}

// OpenKraken enumerates hidraw devices for the NZXT Kraken X3's USB
// identity and, if found, opens and starts it. ok is false when no such
// device is present; err is only set for an actual enumeration/open
// failure, distinct from "not present" per the probe registry's log-and-
// skip convention.
func OpenKraken() (*Kraken, bool, error) {
	found, err := Enumerate(VendorProductMatcher(krakenVendorNZXT, krakenProductX3))
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

	return NewKraken(dev), true, nil
}

// NewKraken starts the background report reader over dev and returns
// immediately; the first few ReadFloat calls may race the first report and
// report ErrNotSupported until haveReport is set.
func NewKraken(dev Device) *Kraken {
	k := &Kraken{
		id: sensors.Identifier{Name: "krakenx3", Type: "krakenx3", Bus: sensors.BusHID},
	}

	k.reader.start(dev, krakenPollInterval, k.onReport)

	return k
}

// Close stops the background reader and closes the underlying device.
func (k *Kraken) Close() error {
	k.reader.stop()

	return nil
}

// onReport decodes one 64-byte status report. Byte 0 is the report's own
// type tag (0x75) and is not otherwise interpreted; temperature is a
// whole-degree byte plus a tenths-digit byte, and pump RPM is a
// little-endian 16-bit count starting at byte 17.
func (k *Kraken) onReport(data []byte) {
	if len(data) < 19 {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.temperature = float64(data[15]) + float64(data[16])/10
	k.pumpRPM = float64(uint16(data[17]) | uint16(data[18])<<8)
	k.haveReport = true
}

func (k *Kraken) Config() sensors.ChannelConfig {
	return sensors.ChannelConfig{
		Sensors: map[sensors.SensorType]sensors.TypeConfig{
			sensors.Temperature: {ChannelAttributes: []sensors.Mask{sensors.InputMask(true)}},
			sensors.Fan:         {ChannelAttributes: []sensors.Mask{sensors.InputMask(true)}},
		},
	}
}

func (k *Kraken) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	if channel != 0 {
		return sensors.Visibility{}, sensors.ErrChannelOutOfRange
	}

	switch t {
	case sensors.Temperature, sensors.Fan:
		return sensors.Visibility{Readable: true}, nil
	default:
		return sensors.Visibility{}, sensors.ErrNotSupported
	}
}

func (k *Kraken) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	if channel != 0 {
		return 0, sensors.ErrChannelOutOfRange
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.haveReport {
		return 0, sensors.ErrNotSupported
	}

	switch t {
	case sensors.Temperature:
		return k.temperature, nil
	case sensors.Fan:
		return k.pumpRPM, nil
	default:
		return 0, sensors.ErrNotSupported
	}
}

func (k *Kraken) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return k.ChannelLabel(t, channel), nil
}

func (k *Kraken) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (k *Kraken) Identifier() *sensors.Identifier { return &k.id }

func (k *Kraken) ChannelLabel(t sensors.SensorType, channel int) string {
	if channel != 0 {
		return sensors.DefaultChannelLabel(t, channel)
	}

	switch t {
	case sensors.Temperature:
		return "Liquid"
	case sensors.Fan:
		return "Pump"
	default:
		return sensors.DefaultChannelLabel(t, channel)
	}
}
