package hid

import (
	"math"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func TestKrakenOnReportDecodesTemperatureAndPumpSpeed(t *testing.T) {
	t.Parallel()

	data := make([]byte, 64)
	data[0] = 0x75
	data[1] = 0x02
	data[15] = 28
	data[16] = 5
	data[17] = 0xE8
	data[18] = 0x03

	k := &Kraken{}
	k.onReport(data)

	if math.Abs(k.temperature-28.5) > 1e-9 {
		t.Fatalf("temperature = %v, want 28.5", k.temperature)
	}

	if k.pumpRPM != 1000 {
		t.Fatalf("pumpRPM = %v, want 1000", k.pumpRPM)
	}
}

func TestKrakenOnReportIgnoresShortReport(t *testing.T) {
	t.Parallel()

	k := &Kraken{}
	k.onReport(make([]byte, 4))

	if k.haveReport {
		t.Fatal("expected short report to be ignored")
	}
}

func TestKrakenReadFloatBeforeFirstReport(t *testing.T) {
	t.Parallel()

	k := &Kraken{id: sensors.Identifier{Name: "krakenx3"}}

	if _, err := k.ReadFloat(sensors.Temperature, sensors.AttrInput, 0); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestKrakenChannelLabel(t *testing.T) {
	t.Parallel()

	k := &Kraken{}

	if got := k.ChannelLabel(sensors.Temperature, 0); got != "Liquid" {
		t.Fatalf("label = %q, want Liquid", got)
	}

	if got := k.ChannelLabel(sensors.Fan, 0); got != "Pump" {
		t.Fatalf("label = %q, want Pump", got)
	}
}
