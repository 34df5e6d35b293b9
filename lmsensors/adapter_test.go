package lmsensors_test

import (
	"math"
	"testing"

	"github.com/openhwmon/gohwmon/lmsensors"
	"github.com/openhwmon/gohwmon/sensors"
)

type fakeChip struct {
	id        sensors.Identifier
	temps     [2]float64
	pwmDuty   float64
	pwmEnable float64
}

func (c *fakeChip) Config() sensors.ChannelConfig {
	tempAttrs := []sensors.Mask{
		sensors.InputMask(true).With(sensors.AttrCrit),
		sensors.InputMask(false),
	}

	pwmAttrs := []sensors.Mask{
		sensors.InputMask(false).With(sensors.AttrPWMEnable),
	}

	return sensors.ChannelConfig{
		Sensors: map[sensors.SensorType]sensors.TypeConfig{
			sensors.Temperature: {ChannelAttributes: tempAttrs},
			sensors.PWM:         {ChannelAttributes: pwmAttrs},
		},
	}
}

func (c *fakeChip) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	switch t {
	case sensors.Temperature:
		if channel < 0 || channel >= len(c.temps) {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		return sensors.Visibility{Readable: true}, nil
	case sensors.PWM:
		if channel != 0 {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}

		if attr == sensors.AttrPWMEnable {
			return sensors.Visibility{Readable: true, Writable: true}, nil
		}

		return sensors.Visibility{Readable: true}, nil
	default:
		return sensors.Visibility{}, sensors.ErrNotSupported
	}
}

func (c *fakeChip) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	switch t {
	case sensors.Temperature:
		return c.temps[channel], nil
	case sensors.PWM:
		if attr == sensors.AttrPWMEnable {
			return c.pwmEnable, nil
		}

		return c.pwmDuty, nil
	default:
		return 0, sensors.ErrNotSupported
	}
}

func (c *fakeChip) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	if t == sensors.Temperature && attr == sensors.AttrLabel && channel == 0 {
		return "CPU", nil
	}

	return c.ChannelLabel(t, channel), nil
}

func (c *fakeChip) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	if t == sensors.PWM && attr == sensors.AttrPWMEnable {
		c.pwmEnable = v

		return nil
	}

	return sensors.ErrNotSupported
}

func (c *fakeChip) Identifier() *sensors.Identifier { return &c.id }

func (c *fakeChip) ChannelLabel(t sensors.SensorType, channel int) string {
	return sensors.DefaultChannelLabel(t, channel)
}

func buildTestAdapter() *lmsensors.Adapter {
	chip := &fakeChip{
		id:      sensors.Identifier{Name: "cpu0", Type: "genericcpu", Bus: sensors.BusACPI},
		temps:   [2]float64{45.5, 50.0},
		pwmDuty: 128,
	}

	tree := sensors.NewTree()
	tree.Child("cpu").AddPayload(chip)

	return lmsensors.Build(tree)
}

func TestGetDetectedChipsMatchesPrefix(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()

	chips := lmsensors.GetDetectedChips(a, &lmsensors.ChipName{Prefix: "genericcpu", Bus: sensors.BusAny, BusNr: lmsensors.BusNrAny, Addr: lmsensors.AddrAny})
	if len(chips) != 1 {
		t.Fatalf("GetDetectedChips() returned %d chips, want 1", len(chips))
	}

	if chips[0].Addr != 0 {
		t.Fatalf("Addr = %d, want 0 (from trailing digit in cpu0)", chips[0].Addr)
	}
}

func TestGetDetectedChipsNoMatch(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()

	chips := lmsensors.GetDetectedChips(a, &lmsensors.ChipName{Prefix: "nct6798", Bus: sensors.BusAny, BusNr: lmsensors.BusNrAny, Addr: lmsensors.AddrAny})
	if len(chips) != 0 {
		t.Fatalf("GetDetectedChips() returned %d chips, want 0", len(chips))
	}
}

func TestGetFeaturesListsBothSensorTypes(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()
	name := lmsensors.ChipName{Prefix: "genericcpu", Bus: sensors.BusACPI, Addr: 0}

	features, err := lmsensors.GetFeatures(a, name)
	if err != nil {
		t.Fatalf("GetFeatures: %v", err)
	}

	if len(features) != 3 {
		t.Fatalf("len(features) = %d, want 3 (temp1, temp2, pwm1)", len(features))
	}

	if features[0].Name != "temp1" || features[2].Name != "pwm1" {
		t.Fatalf("unexpected feature names: %+v", features)
	}

	if features[2].LibsensorsType() != sensors.Fan {
		t.Fatalf("pwm feature LibsensorsType() = %v, want Fan", features[2].LibsensorsType())
	}
}

func TestGetSubfeatureFindsCritOnChannelZeroOnly(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()
	name := lmsensors.ChipName{Prefix: "genericcpu", Bus: sensors.BusACPI, Addr: 0}

	features, err := lmsensors.GetFeatures(a, name)
	if err != nil {
		t.Fatalf("GetFeatures: %v", err)
	}

	if _, err := lmsensors.GetSubfeature(a, name, features[0], sensors.AttrCrit); err != nil {
		t.Fatalf("GetSubfeature(temp1, crit): %v", err)
	}

	if _, err := lmsensors.GetSubfeature(a, name, features[1], sensors.AttrCrit); err == nil {
		t.Fatal("expected no crit subfeature on temp2")
	}
}

func TestGetValueReadsInputAndLabel(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()
	name := lmsensors.ChipName{Prefix: "genericcpu", Bus: sensors.BusACPI, Addr: 0}

	features, err := lmsensors.GetFeatures(a, name)
	if err != nil {
		t.Fatalf("GetFeatures: %v", err)
	}

	input, err := lmsensors.GetSubfeature(a, name, features[0], sensors.AttrInput)
	if err != nil {
		t.Fatalf("GetSubfeature(temp1, input): %v", err)
	}

	v, err := lmsensors.GetValue(a, name, input.Number)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}

	if v != 45.5 {
		t.Fatalf("GetValue() = %v, want 45.5", v)
	}

	label, err := lmsensors.GetLabel(a, name, features[0])
	if err != nil {
		t.Fatalf("GetLabel: %v", err)
	}

	if label != "CPU" {
		t.Fatalf("GetLabel() = %q, want %q", label, "CPU")
	}
}

func TestGetValueUnknownSubfeatureReturnsNaN(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()
	name := lmsensors.ChipName{Prefix: "genericcpu", Bus: sensors.BusACPI, Addr: 0}

	v, err := lmsensors.GetValue(a, name, 999)
	if err == nil {
		t.Fatal("expected an error for an unknown subfeature number")
	}

	if !math.IsNaN(v) {
		t.Fatalf("GetValue() = %v, want NaN", v)
	}
}

func TestSetValueWritesEnableButRejectsReadOnly(t *testing.T) {
	t.Parallel()

	a := buildTestAdapter()
	name := lmsensors.ChipName{Prefix: "genericcpu", Bus: sensors.BusACPI, Addr: 0}

	features, err := lmsensors.GetFeatures(a, name)
	if err != nil {
		t.Fatalf("GetFeatures: %v", err)
	}

	enable, err := lmsensors.GetSubfeature(a, name, features[2], sensors.AttrPWMEnable)
	if err != nil {
		t.Fatalf("GetSubfeature(pwm1, enable): %v", err)
	}

	if err := lmsensors.SetValue(a, name, enable.Number, 1); err != nil {
		t.Fatalf("SetValue(enable): %v", err)
	}

	input, err := lmsensors.GetSubfeature(a, name, features[2], sensors.AttrInput)
	if err != nil {
		t.Fatalf("GetSubfeature(pwm1, input): %v", err)
	}

	if err := lmsensors.SetValue(a, name, input.Number, 200); err == nil {
		t.Fatal("expected SetValue on a read-only subfeature to fail")
	}
}

func TestStrerrorKnownAndUnknownCodes(t *testing.T) {
	t.Parallel()

	if got := lmsensors.Strerror(int(lmsensors.ErrNoEntry)); got == "" {
		t.Fatal("Strerror(ErrNoEntry) returned empty string")
	}

	if got := lmsensors.Strerror(12345); got != "Unknown error" {
		t.Fatalf("Strerror(unknown) = %q, want %q", got, "Unknown error")
	}
}
