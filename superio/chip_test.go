package superio

import (
	"math"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

// recordingDriver is a Driver whose raw readings come from a table and
// whose writes are recorded, plus an optional Close hook so BaseChip's
// teardown path can be observed.
type recordingDriver struct {
	raw    map[sensors.SensorType]map[int]float64
	writes []struct {
		t     sensors.SensorType
		src   int
		value float64
	}
	closed bool
}

func (r *recordingDriver) ReadSIO(t sensors.SensorType, src int) (float64, error) {
	if v, ok := r.raw[t][src]; ok {
		return v, nil
	}

	return 0, sensors.ErrNotSupported
}

func (r *recordingDriver) WriteSIO(t sensors.SensorType, src int, value float64) error {
	r.writes = append(r.writes, struct {
		t     sensors.SensorType
		src   int
		value float64
	}{t, src, value})

	return nil
}

func (r *recordingDriver) Close() error {
	r.closed = true

	return nil
}

func testChip(driver Driver) *BaseChip {
	channels := ChannelsConfig{
		Voltage: []VoltageChannelConfig{
			{ChannelConfig: ChannelConfig{Label: "Vcore", SourceIndex: 0}},
			{ChannelConfig: ChannelConfig{Label: "+12V", SourceIndex: 4}, Ri: 1, Rf: 10, Vf: 0},
		},
		Temperature: []ChannelConfig{{Label: "CPU", SourceIndex: 1}},
		PWM:         []ChannelConfig{{Label: "Fan Control #1", SourceIndex: 0}},
	}

	id := sensors.Identifier{Name: "sio0", Type: "nct6798", Bus: sensors.BusISA}

	return NewBaseChip(ChipNCT6798D, 0x0A20, id, channels, driver, nil)
}

func TestBaseChipVoltageDivider(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{raw: map[sensors.SensorType]map[int]float64{
		sensors.Voltage: {0: 1.05, 4: 1.1},
	}}
	chip := testChip(driver)

	// channel 0 has no divider: raw value passes through
	v, err := chip.ReadFloat(sensors.Voltage, sensors.AttrInput, 0)
	if err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	if v != 1.05 {
		t.Fatalf("Vcore = %v, want 1.05", v)
	}

	// channel 1 maps to raw source 4 and applies raw + (raw-Vf)*Ri/Rf
	v, err = chip.ReadFloat(sensors.Voltage, sensors.AttrInput, 1)
	if err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	want := 1.1 + (1.1-0)*1/10

	if math.Abs(v-want) > 1e-9 {
		t.Fatalf("+12V = %v, want %v", v, want)
	}
}

func TestBaseChipChannelLabels(t *testing.T) {
	t.Parallel()

	chip := testChip(&recordingDriver{})

	if got := chip.ChannelLabel(sensors.Voltage, 0); got != "Vcore" {
		t.Fatalf("label = %q, want Vcore", got)
	}

	if got := chip.ChannelLabel(sensors.Voltage, 99); got != "in99" {
		t.Fatalf("fallback label = %q, want in99", got)
	}
}

func TestBaseChipWriteRejectsNonPWM(t *testing.T) {
	t.Parallel()

	chip := testChip(&recordingDriver{})

	if err := chip.Write(sensors.Temperature, sensors.AttrInput, 0, 50); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestBaseChipWritePassesNaNThroughForRestore(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{}
	chip := testChip(driver)

	if err := chip.Write(sensors.PWM, sensors.AttrInput, 0, math.NaN()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if len(driver.writes) != 1 || !math.IsNaN(driver.writes[0].value) {
		t.Fatalf("writes = %v, want one NaN write reaching the driver", driver.writes)
	}
}

func TestBaseChipCloseReachesDriver(t *testing.T) {
	t.Parallel()

	driver := &recordingDriver{}
	chip := testChip(driver)

	if err := chip.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !driver.closed {
		t.Fatal("expected BaseChip.Close to reach the driver's Close")
	}
}

func TestBaseChipHiddenChannelInvisible(t *testing.T) {
	t.Parallel()

	channels := ChannelsConfig{
		Temperature: []ChannelConfig{{Label: "Hidden", SourceIndex: 0, Hidden: true}},
	}
	chip := NewBaseChip(ChipNCT6798D, 0x0A20, sensors.Identifier{}, channels, &recordingDriver{}, nil)

	vis, err := chip.IsVisible(sensors.Temperature, sensors.AttrInput, 0)
	if err != nil {
		t.Fatalf("IsVisible: %v", err)
	}

	if vis.Readable || vis.Writable {
		t.Fatalf("hidden channel visibility = %+v, want none", vis)
	}
}
