package chips

import (
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func TestWinbondReadSIOUnsupportedType(t *testing.T) {
	t.Parallel()

	d := &Winbond{}

	if _, err := d.ReadSIO(sensors.Power, 0); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestWinbondReadFanOutOfRange(t *testing.T) {
	t.Parallel()

	d := &Winbond{}

	if _, err := d.readFan(99); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}

func TestWinbondWriteSIORejectsNonPWM(t *testing.T) {
	t.Parallel()

	d := &Winbond{}

	if err := d.WriteSIO(sensors.Temperature, 0, 1); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestWinbondWriteSIOOutOfRange(t *testing.T) {
	t.Parallel()

	d := &Winbond{}

	if err := d.WriteSIO(sensors.PWM, 99, 50); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}
