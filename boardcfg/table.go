package boardcfg

import (
	"fmt"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

func voltage(label string, src int, dividers ...float64) superio.VoltageChannelConfig {
	vc := superio.VoltageChannelConfig{ChannelConfig: superio.ChannelConfig{Label: label, SourceIndex: src}}

	switch len(dividers) {
	case 0:
		vc.Ri, vc.Rf = 0, 1
	case 2:
		vc.Ri, vc.Rf = dividers[0], dividers[1]
	case 3:
		vc.Ri, vc.Rf, vc.Vf = dividers[0], dividers[1], dividers[2]
	}

	return vc
}

func ch(label string, src int) superio.ChannelConfig {
	return superio.ChannelConfig{Label: label, SourceIndex: src}
}

// hidden marks a voltage input present on the chip but not wired to
// anything measurable on the board.
func hidden(label string, src int) superio.VoltageChannelConfig {
	vc := voltage(label, src)
	vc.Hidden = true

	return vc
}

// Table is the board/chip quirk list. Entries are matched in order; the
// first match wins. Boards not listed here fall back to Default's generic
// numbered labels.
var Table = []Entry{
	{
		Board: Board{Manufacturer: ASRock},
		Chip:  superio.ChipIT8720F,
		Build: func() superio.ChannelsConfig {
			return superio.ChannelsConfig{
				Voltage: []superio.VoltageChannelConfig{
					voltage("Vcore", 0),
					voltage("+3.3V", 2),
					voltage("+12V", 4, 30, 10),
					voltage("+5V", 5, 6.8, 10),
					voltage("VBat", 8),
				},
				Temperature: []superio.ChannelConfig{ch("CPU", 0), ch("Motherboard", 1)},
				Fan:         []superio.ChannelConfig{ch("CPU Fan", 0), ch("Chassis Fan #1", 1)},
				MutexName:   "ASRockOCMark",
			}
		},
	},
	{
		Board: Board{Manufacturer: ASUS, Model: "P8Z77-V"},
		Chip:  superio.ChipNCT6779D,
		Build: func() superio.ChannelsConfig {
			return superio.ChannelsConfig{
				Voltage: []superio.VoltageChannelConfig{
					voltage("Vcore", 0),
					hidden("Voltage #2", 1),
					voltage("AVCC", 2, 34, 34),
					voltage("+3.3V", 3, 34, 34),
					hidden("Voltage #5", 4),
					hidden("Voltage #6", 5),
					hidden("Voltage #7", 6),
					voltage("3VSB", 7, 34, 34),
					voltage("VBat", 8, 34, 34),
					voltage("VTT", 9),
					hidden("Voltage #11", 10),
					hidden("Voltage #12", 11),
					hidden("Voltage #13", 12),
					hidden("Voltage #14", 13),
					hidden("Voltage #15", 14),
				},
				Temperature: []superio.ChannelConfig{
					ch("CPU Core", 0), ch("Auxiliary", 1), ch("Motherboard", 2),
				},
				Fan: []superio.ChannelConfig{
					ch("Chassis Fan #1", 0), ch("CPU Fan", 1), ch("Chassis Fan #2", 2), ch("Chassis Fan #3", 3),
				},
				PWM: []superio.ChannelConfig{
					ch("Chassis Fan #1", 0), ch("CPU Fan", 1), ch("Chassis Fan #2", 2), ch("Chassis Fan #3", 3),
				},
			}
		},
	},
	{
		Board: Board{Manufacturer: ASUS, Model: "ROG CROSSHAIR VIII HERO"},
		Chip:  superio.ChipNCT6798D,
		Build: buildCrosshairVIII,
	},
	{
		Board: Board{Manufacturer: ASUS, Model: "ROG CROSSHAIR VIII HERO(WI - FI)"},
		Chip:  superio.ChipNCT6798D,
		Build: buildCrosshairVIII,
	},
	{
		Board: Board{Manufacturer: ASUS, Model: "ROG CROSSHAIR VIII DARK HERO"},
		Chip:  superio.ChipNCT6798D,
		Build: buildCrosshairVIII,
	},
	{
		Board: Board{Manufacturer: ASUS, Model: "ROG CROSSHAIR VIII FORMULA"},
		Chip:  superio.ChipNCT6798D,
		Build: buildCrosshairVIII,
	},
	{
		Board: Board{Manufacturer: Gigabyte, Model: "H61M-DS2 REV 1.2"},
		Chip:  superio.ChipIT8728F,
		Build: func() superio.ChannelsConfig {
			return superio.ChannelsConfig{
				Voltage: []superio.VoltageChannelConfig{
					voltage("VTT", 0),
					voltage("+12V", 2, 30.9, 10),
					voltage("Vcore", 5),
					voltage("DIMM", 6),
					voltage("3VSB", 7, 10, 10),
					voltage("VBat", 8, 10, 10),
				},
				Temperature: []superio.ChannelConfig{ch("System", 0), ch("CPU", 2)},
				Fan:         []superio.ChannelConfig{ch("CPU Fan", 0), ch("System Fan", 1)},
			}
		},
	},
	{
		Board: Board{Manufacturer: MSI, Model: "B450-A PRO (MS-7B86)"},
		Chip:  superio.ChipNCT6797D,
		Build: func() superio.ChannelsConfig {
			return superio.ChannelsConfig{
				Voltage: []superio.VoltageChannelConfig{
					voltage("Vcore", 0),
					voltage("+5V", 1, 4, 1),
					voltage("AVCC", 2, 34, 34),
					voltage("+3.3V", 3, 34, 34),
					voltage("+12V", 4, 11, 1),
					voltage("3VSB", 7, 34, 34),
					voltage("VTT", 9),
					voltage("CPU SA", 10),
					voltage("NB/SoC", 12),
					voltage("DIMM", 13, 1, 1),
				},
				Temperature: []superio.ChannelConfig{
					ch("CPU", 1), ch("System", 2), ch("VRM MOS", 3), ch("PCH", 5), ch("SMBus 0", 8),
				},
				Fan: []superio.ChannelConfig{
					ch("Pump Fan", 0), ch("CPU Fan", 1), ch("System Fan #1", 2),
					ch("System Fan #2", 3), ch("System Fan #3", 4), ch("System Fan #4", 5),
				},
				PWM: []superio.ChannelConfig{
					ch("Pump Fan", 0), ch("CPU Fan", 1), ch("System Fan #1", 2),
					ch("System Fan #2", 3), ch("System Fan #3", 4), ch("System Fan #4", 5),
				},
			}
		},
	},
}

// crosshairVIIIFanNames name the fan headers shared by the Crosshair VIII
// board family; fan and PWM channels carry the same labels.
var crosshairVIIIFanNames = []string{
	"Chassis Fan 1", "CPU Fan", "Chassis Fan 2", "Chassis Fan 3",
	"High Amp Fan", "W_PUMP+", "AIO Pump",
}

func buildCrosshairVIII() superio.ChannelsConfig {
	cfg := superio.ChannelsConfig{
		Voltage: []superio.VoltageChannelConfig{
			voltage("Vcore", 0),
			hidden("Voltage #2", 1),
			voltage("AVCC", 2, 34, 34),
			voltage("+3.3V", 3, 34, 34),
			hidden("Voltage #5", 4),
			hidden("Voltage #6", 5),
			voltage("CPU SoC", 6),
			voltage("3VSB", 7, 34, 34),
			voltage("VBat", 8, 34, 34),
			voltage("VTT", 9),
			hidden("Voltage #11", 10),
			hidden("Voltage #12", 11),
			hidden("Voltage #13", 12),
			voltage("DRAM", 13),
			hidden("Voltage #15", 14),
		},
		Temperature: []superio.ChannelConfig{
			ch("PECI 0", 0), ch("CPU", 1), ch("Motherboard", 2),
			ch("AUX 0", 3), ch("AUX 1", 4), ch("AUX 2", 5), ch("AUX 3", 6), ch("AUX 4", 7),
			ch("SMBus 0", 8), ch("SMBus 1", 9), ch("PECI 1", 10),
			ch("PCH Chip CPU Max", 11), ch("PCH Chip", 12), ch("PCH CPU", 13), ch("PCH MCH", 14),
			ch("Agent 0 DIMM 0", 15), ch("Agent 0 DIMM 1", 16),
			ch("Agent 1 DIMM 0", 17), ch("Agent 1 DIMM 1", 18),
			ch("Device 0", 19), ch("Device 1", 20),
			ch("PECI 0 Calibrated", 21), ch("PECI 1 Calibrated", 22),
			ch("Virtual", 23),
		},
	}

	for i, name := range crosshairVIIIFanNames {
		cfg.Fan = append(cfg.Fan, ch(name, i))
		cfg.PWM = append(cfg.PWM, ch(name, i))
	}

	return cfg
}

// Lookup finds a quirk entry for (board, chip); ok is false when none
// applies and the caller should fall back to Default.
func Lookup(board Board, chip superio.Chip) (superio.ChannelsConfig, bool) {
	for _, e := range Table {
		if e.Board.Manufacturer == board.Manufacturer && (e.Board.Model == "" || e.Board.Model == board.Model) && e.Chip == chip {
			return e.Build(), true
		}
	}

	return superio.ChannelsConfig{}, false
}

// Default builds generic numbered labels for every channel a chip reports,
// used for unrecognized boards.
func Default(counts map[sensors.SensorType]int) superio.ChannelsConfig {
	cfg := superio.ChannelsConfig{}

	for i := 0; i < counts[sensors.Voltage]; i++ {
		cfg.Voltage = append(cfg.Voltage, voltage(fmt.Sprintf("Voltage #%d", i+1), i))
	}

	for i := 0; i < counts[sensors.Temperature]; i++ {
		cfg.Temperature = append(cfg.Temperature, ch(fmt.Sprintf("Temperature #%d", i+1), i))
	}

	for i := 0; i < counts[sensors.Fan]; i++ {
		cfg.Fan = append(cfg.Fan, ch(fmt.Sprintf("Fan #%d", i+1), i))
	}

	for i := 0; i < counts[sensors.PWM]; i++ {
		cfg.PWM = append(cfg.PWM, ch(fmt.Sprintf("Fan Control #%d", i+1), i))
	}

	return cfg
}

// Resolve is the entry point probe.go calls: look up a quirk, or fall back
// to the generic default built from the chip's reported channel counts.
func Resolve(board Board, chip superio.Chip, counts map[sensors.SensorType]int) superio.ChannelsConfig {
	if cfg, ok := Lookup(board, chip); ok {
		return cfg
	}

	return Default(counts)
}
