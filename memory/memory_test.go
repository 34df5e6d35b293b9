package memory

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func writeFixture(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo")

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	return path
}

func TestReadFloatPhysicalLoad(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "MemTotal:       16777216 kB\nMemAvailable:    4194304 kB\nSwapTotal:       2097152 kB\nSwapFree:        2097152 kB\n")

	m := New()
	m.meminfoPath = path

	v, err := m.ReadFloat(sensors.Fraction, sensors.AttrInput, loadPhysical)
	if err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}

	if math.Abs(v-0.75) > 1e-9 {
		t.Fatalf("load = %v, want 0.75", v)
	}
}

func TestReadFloatOutOfRange(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "MemTotal:       1 kB\n")

	m := New()
	m.meminfoPath = path

	if _, err := m.ReadFloat(sensors.Fraction, sensors.AttrInput, 99); err != sensors.ErrChannelOutOfRange {
		t.Fatalf("err = %v, want ErrChannelOutOfRange", err)
	}
}

func TestIsVisibleUnsupportedType(t *testing.T) {
	t.Parallel()

	m := New()

	if _, err := m.IsVisible(sensors.Temperature, sensors.AttrInput, 0); err != sensors.ErrNotSupported {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestChannelLabel(t *testing.T) {
	t.Parallel()

	m := New()

	if got := m.ChannelLabel(sensors.Fraction, loadPhysical); got != "Memory" {
		t.Fatalf("label = %q, want %q", got, "Memory")
	}
}
