// Package boardcfg maps a (manufacturer, model, Super I/O chip) triple to
// the board-specific channel configuration a Super I/O chip publishes:
// human labels, which raw channels are exposed or hidden, and the voltage
// resistor-divider scaling each input needs. The table is literal data,
// matched against at probe time; the labels and divider constants are
// empirically correct per board and must not be normalized.
package boardcfg

import "github.com/openhwmon/gohwmon/superio"

// Manufacturer identifies a motherboard vendor.
type Manufacturer string

const (
	ASRock   Manufacturer = "ASRock"
	ASUS     Manufacturer = "ASUS"
	Gigabyte Manufacturer = "Gigabyte"
	MSI      Manufacturer = "MSI"
	Unknown  Manufacturer = ""
)

// Model identifies a motherboard model within a Manufacturer.
type Model string

// Board is the key a quirk table entry is matched against.
type Board struct {
	Manufacturer Manufacturer
	Model        Model
}

// Entry is one quirk-table row: the board/chip it applies to, and the
// channel configuration to use instead of the generic default.
type Entry struct {
	Board Board
	Chip  superio.Chip
	Build func() superio.ChannelsConfig
}
