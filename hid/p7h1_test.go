package hid

import (
	"math"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

type fakeDevice struct {
	report []byte
	reads  int
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	f.reads++
	n := copy(p, f.report)

	return n, nil
}

func (f *fakeDevice) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeDevice) Close() error                { return nil }

func newP7H1Fixture() *fakeDevice {
	report := make([]byte, 64)
	// fan 0: 1200, fan 1: no fan attached (sentinel), rest zero.
	report[4], report[5], report[6] = 0xB0, 0x04, 0x00
	report[7], report[8], report[9] = 0xFF, 0xFF, 0xFF

	return &fakeDevice{report: report}
}

func TestP7H1ReadFloatDecodesTachometerGroups(t *testing.T) {
	t.Parallel()

	dev := newP7H1Fixture()
	p := NewP7H1(dev)

	v, err := p.ReadFloat(sensors.Fan, sensors.AttrInput, 0)
	if err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	if v != 1200 {
		t.Fatalf("fan 0 = %v, want 1200", v)
	}

	v, err = p.ReadFloat(sensors.Fan, sensors.AttrInput, 1)
	if err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	if !math.IsNaN(v) {
		t.Fatalf("fan 1 = %v, want NaN for absent fan", v)
	}
}

func TestP7H1ReadFloatCachesWithinUpdateInterval(t *testing.T) {
	t.Parallel()

	dev := newP7H1Fixture()
	p := NewP7H1(dev)

	if _, err := p.ReadFloat(sensors.Fan, sensors.AttrInput, 0); err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	if _, err := p.ReadFloat(sensors.Fan, sensors.AttrInput, 0); err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	if dev.reads != 1 {
		t.Fatalf("reads = %d, want 1 (second call should hit cache)", dev.reads)
	}
}

func TestP7H1ReadFloatOutOfRange(t *testing.T) {
	t.Parallel()

	p := NewP7H1(newP7H1Fixture())

	if _, err := p.ReadFloat(sensors.Fan, sensors.AttrInput, 99); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}

func TestP7H1IsVisibleUnsupportedType(t *testing.T) {
	t.Parallel()

	p := NewP7H1(newP7H1Fixture())

	if _, err := p.IsVisible(sensors.Temperature, sensors.AttrInput, 0); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}
