package hid

import (
	"math"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func TestDecodeLinear11(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  uint16
		want float64
	}{
		// 12.0 encoded as mantissa 768, exponent -6: 768 * 2^-6 = 12.0.
		{"positive value", 0xd300, 12.0},
		// mantissa 0, any exponent, is zero.
		{"zero", 0x0000, 0},
		// mantissa -1 (0x7FF), exponent 0: -1 * 2^0 = -1.
		{"negative mantissa", 0x07ff, -1},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := decodeLinear11(tt.raw)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("decodeLinear11(0x%04x) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

// fakeCorsairDevice is a request/response fake that answers every command
// with a fixed 3-byte LINEAR11 payload, recording the most recently
// selected rail so tests can assert rail-select precedes every rail read.
type fakeCorsairDevice struct {
	lastRail    byte
	lastCommand byte
	response    [3]byte
}

func (f *fakeCorsairDevice) Read(p []byte) (int, error) {
	p[0] = f.lastCommand
	p[1] = f.response[1]
	p[2] = f.response[2]

	return 3, nil
}

func (f *fakeCorsairDevice) Write(p []byte) (int, error) {
	if p[0] == corsairCmdPage {
		f.lastRail = p[1]
	} else {
		f.lastCommand = p[0]
	}

	return len(p), nil
}

func (f *fakeCorsairDevice) Close() error { return nil }

func TestCorsairPSUSelectsRailBeforeReading(t *testing.T) {
	t.Parallel()

	dev := &fakeCorsairDevice{response: [3]byte{0, 0x00, 0xd3}} // 12.0 in little-endian LINEAR11

	p := &CorsairPSU{dev: dev}

	v, err := p.readRailLinear11Locked(corsairCmdReadVoltage, 2)
	if err != nil {
		t.Fatalf("readRailLinear11Locked: %v", err)
	}

	if dev.lastRail != 2 {
		t.Fatalf("lastRail = %d, want 2", dev.lastRail)
	}

	if math.Abs(v-12.0) > 1e-9 {
		t.Fatalf("voltage = %v, want 12.0", v)
	}
}

func TestCorsairPSUChannelLabels(t *testing.T) {
	t.Parallel()

	p := &CorsairPSU{}

	if got := p.ChannelLabel(sensors.Voltage, 0); got != "12V" {
		t.Fatalf("rail 0 label = %q, want 12V", got)
	}
}
