package probe

import (
	"errors"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

type stubChip struct{ id sensors.Identifier }

func (s *stubChip) Config() sensors.ChannelConfig { return sensors.ChannelConfig{} }
func (s *stubChip) IsVisible(sensors.SensorType, sensors.Attr, int) (sensors.Visibility, error) {
	return sensors.Visibility{}, sensors.ErrNotSupported
}
func (s *stubChip) ReadFloat(sensors.SensorType, sensors.Attr, int) (float64, error) {
	return 0, sensors.ErrNotSupported
}
func (s *stubChip) ReadString(sensors.SensorType, sensors.Attr, int) (string, error) { return "", nil }
func (s *stubChip) Write(sensors.SensorType, sensors.Attr, int, float64) error {
	return sensors.ErrNotSupported
}
func (s *stubChip) Identifier() *sensors.Identifier                       { return &s.id }
func (s *stubChip) ChannelLabel(t sensors.SensorType, channel int) string { return "" }

func TestProbeHIDSkipsAbsentDevices(t *testing.T) {
	t.Parallel()

	tree := sensors.NewTree()

	openers := []func() (sensors.SensorChip, bool, error){
		func() (sensors.SensorChip, bool, error) { return nil, false, nil },
		func() (sensors.SensorChip, bool, error) { return &stubChip{}, true, nil },
	}

	probeHID(tree, openers)

	node, err := tree.ConstChild("hid")
	if err != nil {
		t.Fatalf("ConstChild: %v", err)
	}

	if len(node.Payloads) != 1 {
		t.Fatalf("payload count = %d, want 1", len(node.Payloads))
	}
}

func TestProbeHIDSkipsErroringOpener(t *testing.T) {
	t.Parallel()

	tree := sensors.NewTree()

	openers := []func() (sensors.SensorChip, bool, error){
		func() (sensors.SensorChip, bool, error) { return nil, false, errors.New("open failed") },
	}

	probeHID(tree, openers)

	node, err := tree.ConstChild("hid")
	if err != nil {
		t.Fatalf("ConstChild: %v", err)
	}

	if len(node.Payloads) != 0 {
		t.Fatalf("payload count = %d, want 0", len(node.Payloads))
	}
}

func TestBuildSuperIODriverUnknownFamily(t *testing.T) {
	t.Parallel()

	driver, counts := buildSuperIODriver(nil, superio.Detected{})
	if driver != nil {
		t.Fatal("expected nil driver for unknown family")
	}

	if counts != nil {
		t.Fatal("expected nil counts for unknown family")
	}
}
