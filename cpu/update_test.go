package cpu

import (
	"math"
	"testing"
	"time"
)

func TestEnergyCounterFirstSampleIsNaN(t *testing.T) {
	t.Parallel()

	var e energyCounter

	e.update(1000, 15.3e-6, time.Unix(0, 0))

	if !math.IsNaN(e.powerW) {
		t.Fatalf("powerW after one sample = %v, want NaN", e.powerW)
	}
}

func TestEnergyCounterComputesWatts(t *testing.T) {
	t.Parallel()

	var e energyCounter

	t0 := time.Unix(100, 0)
	e.update(1000, 15.3e-6, t0)
	e.update(1000+2_000_000, 15.3e-6, t0.Add(time.Second))

	want := 15.3e-6 * 2_000_000 / 1.0

	if math.Abs(e.powerW-want) > 1e-9 {
		t.Fatalf("powerW = %v, want %v", e.powerW, want)
	}
}

func TestEnergyCounterWrapsWithoutGoingNegative(t *testing.T) {
	t.Parallel()

	var e energyCounter

	t0 := time.Unix(100, 0)
	e.update(0xFFFF_FF00, 15.3e-6, t0)
	e.update(0x0000_0100, 15.3e-6, t0.Add(time.Second))

	if e.powerW < 0 {
		t.Fatalf("powerW across counter wrap = %v, want non-negative", e.powerW)
	}

	want := 15.3e-6 * 0x200 / 1.0

	if math.Abs(e.powerW-want) > 1e-9 {
		t.Fatalf("powerW = %v, want %v", e.powerW, want)
	}
}

func TestEnergyCounterSuppressesTooShortWindow(t *testing.T) {
	t.Parallel()

	var e energyCounter

	t0 := time.Unix(100, 0)
	e.update(1000, 1, t0)
	e.update(5000, 1, t0.Add(time.Millisecond))

	if !math.IsNaN(e.powerW) {
		t.Fatalf("powerW over a 1ms window = %v, want suppressed (NaN)", e.powerW)
	}
}

func TestUpdateGate(t *testing.T) {
	t.Parallel()

	var g updateGate

	t0 := time.Unix(100, 0)

	if !g.due(t0) {
		t.Fatal("first check should be due")
	}

	if g.due(t0.Add(500 * time.Millisecond)) {
		t.Fatal("check inside the interval should not be due")
	}

	if !g.due(t0.Add(1500 * time.Millisecond)) {
		t.Fatal("check after the interval should be due")
	}
}

func TestClassifyIntel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		family, model uint32
		want          microArchitecture
	}{
		{0x06, 0x1A, microArchNehalem},
		{0x06, 0x2A, microArchSandyBridge},
		{0x06, 0x9E, microArchKabyLake},
		{0x06, 0x97, microArchAlderLake},
		{0x06, 0x4C, microArchAirmont},
		{0x0F, 0x04, microArchNetBurst},
		{0x06, 0xFF, microArchUnknown},
	}

	for _, c := range cases {
		if got := classifyIntel(c.family, c.model); got != c.want {
			t.Errorf("classifyIntel(%#x, %#x) = %v, want %v", c.family, c.model, got, c.want)
		}
	}
}

func TestSupportsRAPL(t *testing.T) {
	t.Parallel()

	if !supportsRAPL(microArchSkylake) {
		t.Error("Skylake should carry RAPL counters")
	}

	if supportsRAPL(microArchNetBurst) {
		t.Error("NetBurst predates RAPL")
	}
}
