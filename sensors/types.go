// Package sensors defines the hierarchical, typed sensor namespace shared by
// every chip driver in gohwmon: the SensorType enumeration, the per-channel
// attribute mask, the polymorphic SensorChip boundary, and the tree that
// holds chip instances after probing.
package sensors

import "fmt"

// SensorType enumerates the semantics of a channel. Values are raw float64
// in SI-ish units (V, A, W, degrees C, RPM, Hz, fraction in [0,1]).
type SensorType int

const (
	Voltage SensorType = iota
	Temperature
	Current
	Power
	Energy
	Humidity
	Fan
	PWM
	Intrusion
	Data
	DataRate
	Duration
	Frequency
	Flow
	Load
	Raw
	Fraction
	Chip // the chip's own enable/alarm channel, not a physical quantity
)

func (t SensorType) String() string {
	switch t {
	case Voltage:
		return "in"
	case Temperature:
		return "temp"
	case Current:
		return "curr"
	case Power:
		return "power"
	case Energy:
		return "energy"
	case Humidity:
		return "humidity"
	case Fan:
		return "fan"
	case PWM:
		return "pwm"
	case Intrusion:
		return "intrusion"
	case Data:
		return "data"
	case DataRate:
		return "dataRate"
	case Duration:
		return "duration"
	case Frequency:
		return "freq"
	case Flow:
		return "flow"
	case Load:
		return "load"
	case Raw:
		return "raw"
	case Fraction:
		return "fraction"
	case Chip:
		return "chip"
	default:
		return fmt.Sprintf("SensorType(%d)", int(t))
	}
}

// BusType is the bus an Identifier is reachable on, mirroring the libsensors
// bus enumeration (i2c, isa, pci, spi, virtual, acpi, hid, mdio, scsi).
type BusType int

const (
	BusI2C BusType = iota
	BusISA
	BusPCI
	BusSPI
	BusVirtual
	BusACPI
	BusHID
	BusMDIO
	BusSCSI
	BusAny BusType = -1
)

func (b BusType) String() string {
	switch b {
	case BusI2C:
		return "i2c"
	case BusISA:
		return "isa"
	case BusPCI:
		return "pci"
	case BusSPI:
		return "spi"
	case BusVirtual:
		return "virtual"
	case BusACPI:
		return "acpi"
	case BusHID:
		return "hid"
	case BusMDIO:
		return "mdio"
	case BusSCSI:
		return "scsi"
	case BusAny:
		return "*"
	default:
		return fmt.Sprintf("BusType(%d)", int(b))
	}
}

// ParseBusType is the inverse of BusType.String, accepting "*" as BusAny.
func ParseBusType(s string) (BusType, bool) {
	for _, b := range []BusType{BusI2C, BusISA, BusPCI, BusSPI, BusVirtual, BusACPI, BusHID, BusMDIO, BusSCSI, BusAny} {
		if b.String() == s {
			return b, true
		}
	}

	return 0, false
}

// HardwareType tags the kind of device an Identifier names (e.g. "nct6798",
// "amdcpu", "kraken-x3"). It is a plain string tag rather than a closed enum
// because probes and board-quirk tables both need to mint new values without
// touching this package.
type HardwareType string

// Identifier is immutable for a chip's lifetime.
type Identifier struct {
	Name string
	Type HardwareType
	Bus  BusType
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s-%s", id.Name, id.Bus)
}
