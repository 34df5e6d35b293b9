package ec

import (
	"sort"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
)

const (
	bankSelectRegister = 0xFF
	updateInterval     = time.Second
)

// sensorDef is one row of the per-board ec_sensors table: a fixed
// EC register location plus the channel it feeds.
type sensorDef struct {
	Label  string
	Type   sensors.SensorType
	Size   int // register width in bytes, 1 or 2
	Bank   uint8
	Offset uint8
	Scale  float64
}

// asusBoardTable lists each known board's present EC sensors (ASUS ROG
// boards expose PECI/Tctl/VRM temperatures and chassis/CPU fan
// tachometers through banked EC registers not otherwise reachable through
// the Super I/O chip). Boards without an entry get no EC chip.
var asusBoardTable = map[string][]sensorDef{
	"ROG CROSSHAIR VIII HERO": {
		{Label: "CPU", Type: sensors.Temperature, Size: 1, Bank: 0x00, Offset: 0x3A, Scale: 1},
		{Label: "Motherboard", Type: sensors.Temperature, Size: 1, Bank: 0x00, Offset: 0x3B, Scale: 1},
		{Label: "VRM", Type: sensors.Temperature, Size: 1, Bank: 0x00, Offset: 0x3C, Scale: 1},
		{Label: "T_Sensor", Type: sensors.Temperature, Size: 1, Bank: 0x00, Offset: 0x3D, Scale: 1},
		{Label: "CPU Optional", Type: sensors.Fan, Size: 2, Bank: 0x03, Offset: 0xBC, Scale: 1},
		{Label: "Chipset", Type: sensors.Fan, Size: 2, Bank: 0x03, Offset: 0xBE, Scale: 1},
	},
}

// AsusEC layers the per-board sensor table and bank-switching scan on top
// of the generic EC transaction protocol.
type AsusEC struct {
	ec *EC
	id sensors.Identifier

	sensorsList []sensorDef

	mu         sync.Mutex
	lastUpdate time.Time
	cached     []float64
	haveCache  bool
}

// NewAsusEC looks up board in the per-board sensor table and, if found,
// constructs the chip with its sensors sorted by (bank, offset) so a
// single scan only switches banks when needed. ok is false for
// boards with no known table -- callers should not add this chip to the
// tree. e is the shared EC instance so its mutex and fail-fast state is
// shared with any other EC consumer.
func NewAsusEC(e *EC, board string) (*AsusEC, bool) {
	defs, ok := asusBoardTable[board]
	if !ok {
		return nil, false
	}

	sorted := make([]sensorDef, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Bank != sorted[j].Bank {
			return sorted[i].Bank < sorted[j].Bank
		}

		return sorted[i].Offset < sorted[j].Offset
	})

	return &AsusEC{
		ec:          e,
		id:          sensors.Identifier{Name: "asusec", Type: "asusec", Bus: sensors.BusACPI},
		sensorsList: sorted,
	}, true
}

// channelsOfType returns the indices into sensorsList carrying t, in
// publication order.
func (a *AsusEC) channelsOfType(t sensors.SensorType) []int {
	var idx []int

	for i, s := range a.sensorsList {
		if s.Type == t {
			idx = append(idx, i)
		}
	}

	return idx
}

// update re-scans every bank-sorted sensor once per second, switching banks
// via register 0xFF only when the next sensor's bank differs from the
// last, and restoring the original bank afterward. Other software polling
// the same EC concurrently (e.g. the vendor's own monitoring utility) is
// not prevented from interleaving -- only this process's own EC accesses
// are serialized -- so a logged anomaly, not a hard failure, is the right
// response to an unexpected bank value.
func (a *AsusEC) update() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.haveCache && time.Since(a.lastUpdate) < updateInterval {
		return nil
	}

	originalBank, err := a.ec.Read(bankSelectRegister)
	if err != nil {
		return err
	}

	cached := make([]float64, len(a.sensorsList))

	var currentBank uint8 = originalBank
	bankKnown := true

	for i, s := range a.sensorsList {
		if !bankKnown || currentBank != s.Bank {
			if err := a.ec.Write(bankSelectRegister, s.Bank); err != nil {
				return err
			}

			currentBank = s.Bank
			bankKnown = true
		}

		raw, err := a.ec.ReadBlock(s.Offset, s.Size)
		if err != nil {
			sensors.Logger.Printf("ec: asus sensor %q read failed: %v", s.Label, err)

			cached[i] = nan()

			continue
		}

		var value float64
		if s.Size == 1 {
			value = float64(raw[0])
		} else {
			value = float64(uint16(raw[0])<<8 | uint16(raw[1]))
		}

		cached[i] = value * s.Scale
	}

	if err := a.ec.Write(bankSelectRegister, originalBank); err != nil {
		sensors.Logger.Printf("ec: asus restore bank failed: %v", err)
	}

	a.cached = cached
	a.haveCache = true
	a.lastUpdate = time.Now()

	return nil
}

func nan() float64 {
	var zero float64

	return zero / zero
}

// Config publishes one channel per entry of the board's sensor table,
// grouped under each SensorType the table contains.
func (a *AsusEC) Config() sensors.ChannelConfig {
	cfg := sensors.ChannelConfig{Sensors: map[sensors.SensorType]sensors.TypeConfig{}}

	for _, t := range []sensors.SensorType{sensors.Temperature, sensors.Fan, sensors.Voltage} {
		idx := a.channelsOfType(t)
		if len(idx) == 0 {
			continue
		}

		attrs := make([]sensors.Mask, len(idx))
		for i := range attrs {
			attrs[i] = sensors.InputMask(true)
		}

		cfg.Sensors[t] = sensors.TypeConfig{ChannelAttributes: attrs}
	}

	return cfg
}

func (a *AsusEC) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	idx := a.channelsOfType(t)
	if channel < 0 || channel >= len(idx) {
		return sensors.Visibility{}, sensors.ErrChannelOutOfRange
	}

	return sensors.Visibility{Readable: true}, nil
}

// ReadFloat refreshes the cache if stale and returns the requested channel.
func (a *AsusEC) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	if err := a.update(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.channelsOfType(t)
	if channel < 0 || channel >= len(idx) {
		return 0, sensors.ErrChannelOutOfRange
	}

	return a.cached[idx[channel]], nil
}

func (a *AsusEC) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return a.ChannelLabel(t, channel), nil
}

func (a *AsusEC) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

func (a *AsusEC) Identifier() *sensors.Identifier { return &a.id }

func (a *AsusEC) ChannelLabel(t sensors.SensorType, channel int) string {
	idx := a.channelsOfType(t)
	if channel >= 0 && channel < len(idx) {
		return a.sensorsList[idx[channel]].Label
	}

	return sensors.DefaultChannelLabel(t, channel)
}
