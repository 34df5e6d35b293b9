package chips

import (
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func TestFintekReadSIOUnsupportedType(t *testing.T) {
	t.Parallel()

	d := &Fintek{}

	if _, err := d.ReadSIO(sensors.Power, 0); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestFintekReadTemperatureOutOfRange(t *testing.T) {
	t.Parallel()

	d := &Fintek{}

	if _, err := d.readTemperature(99); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}

func TestFintekWriteSIORejectsNonPWM(t *testing.T) {
	t.Parallel()

	d := &Fintek{}

	if err := d.WriteSIO(sensors.Voltage, 0, 1); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}
