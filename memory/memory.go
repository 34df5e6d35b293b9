// Package memory implements the GenericMemory virtual chip: two load
// fractions (physical, page-file) and four absolute data channels (total
// and available physical/page-file memory), backed by a 1-second-cached
// read of /proc/meminfo.
package memory

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
)

const updateInterval = time.Second

// channel indices for the Fraction and Data SensorType arrays this chip
// publishes.
const (
	loadPhysical = iota
	loadPageFile
)

const (
	dataPhysicalTotal = iota
	dataPhysicalAvailable
	dataPageFileTotal
	dataPageFileAvailable
)

type snapshot struct {
	physicalTotalGB, physicalAvailGB float64
	pageFileTotalGB, pageFileAvailGB float64
}

// GenericMemory is the virtual chip publishing system memory counters.
type GenericMemory struct {
	mu           sync.Mutex
	id           sensors.Identifier
	meminfoPath  string
	lastUpdate   time.Time
	cached       snapshot
	haveSnapshot bool
}

// New constructs the memory virtual chip.
func New() *GenericMemory {
	return &GenericMemory{
		id:          sensors.Identifier{Name: "memory", Type: "genericmemory", Bus: sensors.BusVirtual},
		meminfoPath: "/proc/meminfo",
	}
}

func (m *GenericMemory) update() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.haveSnapshot && time.Since(m.lastUpdate) < updateInterval {
		return nil
	}

	snap, err := readMeminfo(m.meminfoPath)
	if err != nil {
		return err
	}

	m.cached = snap
	m.haveSnapshot = true
	m.lastUpdate = time.Now()

	return nil
}

// readMeminfo parses /proc/meminfo's kB fields into GB. SwapTotal/SwapFree
// stand in for the page-file counters.
func readMeminfo(path string) (snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot{}, fmt.Errorf("memory: open %s: %w", path, err)
	}
	defer f.Close()

	fields := map[string]float64{}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}

		key := line[:colon]
		rest := strings.Fields(strings.TrimSpace(line[colon+1:]))

		if len(rest) == 0 {
			continue
		}

		kb, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			continue
		}

		fields[key] = kb
	}

	if err := sc.Err(); err != nil {
		return snapshot{}, fmt.Errorf("memory: scan %s: %w", path, err)
	}

	const kbToGB = 1.0 / (1024 * 1024)

	memTotal := fields["MemTotal"]
	memAvail, ok := fields["MemAvailable"]
	if !ok {
		memAvail = fields["MemFree"]
	}

	return snapshot{
		physicalTotalGB: memTotal * kbToGB,
		physicalAvailGB: memAvail * kbToGB,
		pageFileTotalGB: fields["SwapTotal"] * kbToGB,
		pageFileAvailGB: fields["SwapFree"] * kbToGB,
	}, nil
}

// Config publishes two Fraction channels and four Data channels.
func (m *GenericMemory) Config() sensors.ChannelConfig {
	return sensors.ChannelConfig{Sensors: map[sensors.SensorType]sensors.TypeConfig{
		sensors.Fraction: {ChannelAttributes: []sensors.Mask{sensors.InputMask(true), sensors.InputMask(true)}},
		sensors.Data: {ChannelAttributes: []sensors.Mask{
			sensors.InputMask(true), sensors.InputMask(true), sensors.InputMask(true), sensors.InputMask(true),
		}},
	}}
}

func (m *GenericMemory) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	switch t {
	case sensors.Fraction:
		if channel < 0 || channel > loadPageFile {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}
	case sensors.Data:
		if channel < 0 || channel > dataPageFileAvailable {
			return sensors.Visibility{}, sensors.ErrChannelOutOfRange
		}
	default:
		return sensors.Visibility{}, sensors.ErrNotSupported
	}

	return sensors.Visibility{Readable: true}, nil
}

// ReadFloat refreshes the cached snapshot if it is stale, then returns the
// requested channel.
func (m *GenericMemory) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	if err := m.update(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.cached

	switch t {
	case sensors.Fraction:
		switch channel {
		case loadPhysical:
			if s.physicalTotalGB == 0 {
				return 0, nil
			}

			return 1 - s.physicalAvailGB/s.physicalTotalGB, nil
		case loadPageFile:
			if s.pageFileTotalGB == 0 {
				return 0, nil
			}

			return 1 - s.pageFileAvailGB/s.pageFileTotalGB, nil
		default:
			return 0, sensors.ErrChannelOutOfRange
		}
	case sensors.Data:
		switch channel {
		case dataPhysicalTotal:
			return s.physicalTotalGB, nil
		case dataPhysicalAvailable:
			return s.physicalAvailGB, nil
		case dataPageFileTotal:
			return s.pageFileTotalGB, nil
		case dataPageFileAvailable:
			return s.pageFileAvailGB, nil
		default:
			return 0, sensors.ErrChannelOutOfRange
		}
	default:
		return 0, sensors.ErrNotSupported
	}
}

// ReadString returns the channel label for AttrLabel reads.
func (m *GenericMemory) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return m.ChannelLabel(t, channel), nil
}

// Write is unsupported: every channel is read-only.
func (m *GenericMemory) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	return sensors.ErrNotSupported
}

// Identifier returns the chip's tree identity.
func (m *GenericMemory) Identifier() *sensors.Identifier { return &m.id }

// ChannelLabel names the fixed channel set.
func (m *GenericMemory) ChannelLabel(t sensors.SensorType, channel int) string {
	switch t {
	case sensors.Fraction:
		if channel == loadPhysical {
			return "Memory"
		}

		return "Virtual Memory"
	case sensors.Data:
		switch channel {
		case dataPhysicalTotal:
			return "Memory Total"
		case dataPhysicalAvailable:
			return "Memory Available"
		case dataPageFileTotal:
			return "Virtual Memory Total"
		case dataPageFileAvailable:
			return "Virtual Memory Available"
		}
	}

	return sensors.DefaultChannelLabel(t, channel)
}
