package sensors_test

import (
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

type stubChip struct {
	id sensors.Identifier
}

func (s *stubChip) Config() sensors.ChannelConfig { return sensors.ChannelConfig{} }

func (s *stubChip) IsVisible(sensors.SensorType, sensors.Attr, int) (sensors.Visibility, error) {
	return sensors.Visibility{}, sensors.ErrNotSupported
}

func (s *stubChip) ReadFloat(sensors.SensorType, sensors.Attr, int) (float64, error) {
	return 0, sensors.ErrNotSupported
}

func (s *stubChip) ReadString(sensors.SensorType, sensors.Attr, int) (string, error) {
	return "", sensors.ErrNotSupported
}

func (s *stubChip) Write(sensors.SensorType, sensors.Attr, int, float64) error {
	return sensors.ErrNotSupported
}

func (s *stubChip) Identifier() *sensors.Identifier { return &s.id }

func (s *stubChip) ChannelLabel(t sensors.SensorType, c int) string {
	return sensors.DefaultChannelLabel(t, c)
}

func TestChildCreatesMissingSegments(t *testing.T) {
	t.Parallel()

	root := sensors.NewTree()
	node := root.Child("/motherboard/lpc/sio0")

	if node.Name != "sio0" {
		t.Fatalf("expected leaf name sio0, got %q", node.Name)
	}

	if _, err := root.ConstChild("/motherboard/lpc/sio0"); err != nil {
		t.Fatalf("ConstChild should find the path created by Child: %v", err)
	}
}

func TestConstChildMissingPathErrors(t *testing.T) {
	t.Parallel()

	root := sensors.NewTree()
	if _, err := root.ConstChild("/no/such/path"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestAcceptVisitsInSortedOrder(t *testing.T) {
	t.Parallel()

	root := sensors.NewTree()
	root.Child("/cpu")
	root.Child("/motherboard/lpc/sio0").AddPayload(&stubChip{id: sensors.Identifier{Name: "sio0"}})
	root.Child("/memory")

	var order []string

	root.Accept(&orderVisitor{order: &order})

	// "cpu" < "memory" < "motherboard" lexically.
	want := []string{"", "cpu", "memory", "motherboard", "motherboard/lpc", "motherboard/lpc/sio0"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}

	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

type orderVisitor struct {
	order *[]string
}

func (o *orderVisitor) VisitNode(path string, _ *sensors.TreeNode) {
	*o.order = append(*o.order, path)
}

func (o *orderVisitor) VisitPayload(string, int, sensors.SensorChip) {}

func (o *orderVisitor) Ascend() {}

func TestChannelLabelDefault(t *testing.T) {
	t.Parallel()

	c := &stubChip{}
	if got := c.ChannelLabel(sensors.Temperature, 2); got != "temp2" {
		t.Fatalf("got %q, want temp2", got)
	}
}
