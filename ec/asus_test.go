package ec

import (
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func TestNewAsusECUnknownBoard(t *testing.T) {
	t.Parallel()

	if _, ok := NewAsusEC(&EC{}, "SOME UNKNOWN BOARD"); ok {
		t.Fatal("expected ok=false for unknown board")
	}
}

func TestAsusECSortedByBankThenOffset(t *testing.T) {
	t.Parallel()

	a, ok := NewAsusEC(&EC{}, "ROG CROSSHAIR VIII HERO")
	if !ok {
		t.Fatal("expected known board")
	}

	for i := 1; i < len(a.sensorsList); i++ {
		prev, cur := a.sensorsList[i-1], a.sensorsList[i]
		if prev.Bank > cur.Bank || (prev.Bank == cur.Bank && prev.Offset > cur.Offset) {
			t.Fatalf("sensorsList not sorted at index %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestAsusECChannelLabelOutOfRange(t *testing.T) {
	t.Parallel()

	a, _ := NewAsusEC(&EC{}, "ROG CROSSHAIR VIII HERO")

	if got := a.ChannelLabel(sensors.Temperature, 999); got != "temp999" {
		t.Fatalf("label = %q, want default fallback", got)
	}
}

func TestAsusECIsVisibleOutOfRange(t *testing.T) {
	t.Parallel()

	a, _ := NewAsusEC(&EC{}, "ROG CROSSHAIR VIII HERO")

	if _, err := a.IsVisible(sensors.Temperature, sensors.AttrInput, 999); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}
