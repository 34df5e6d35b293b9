// Package probe runs the dependency-ordered chip discovery that turns a
// live host into a populated sensor tree: board identity first (quirk
// resolution needs it), then Super I/O and the embedded controller (both
// depend on the board), then CPU topology, then the memory virtual chip,
// then USB-HID devices (no board dependency at all).
package probe

import (
	"fmt"
	"io"

	"github.com/openhwmon/gohwmon/boardcfg"
	"github.com/openhwmon/gohwmon/cpu"
	"github.com/openhwmon/gohwmon/cpuid"
	"github.com/openhwmon/gohwmon/dmi"
	"github.com/openhwmon/gohwmon/ec"
	"github.com/openhwmon/gohwmon/hid"
	"github.com/openhwmon/gohwmon/memory"
	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
	"github.com/openhwmon/gohwmon/superio/chips"
)

// monitorIndexOffset/monitorDataOffset are the index/data register offsets
// from a Super I/O chip's resolved hardware-monitor base address -- the
// conventional ITE/Winbond/Nuvoton/Fintek wiring, distinct from the
// 0x2E/0x2F or 0x4E/0x4F config port used only during Detect.
const (
	monitorIndexOffset  = 0x05
	monitorDataOffset   = 0x06
	monitorBankRegister = 0x4E
)

// Options configures Init. There is deliberately no configuration file;
// the only knobs are functional options.
type Options struct {
	hidOpeners []func() (sensors.SensorChip, bool, error)
}

// Option mutates Options.
type Option func(*Options)

// WithHIDOpener adds (or, for tests, replaces the defaults with) one HID
// device opener, so tests can inject a fake device without touching
// /dev/hidraw or /sys/class/hidraw.
func WithHIDOpener(opener func() (sensors.SensorChip, bool, error)) Option {
	return func(o *Options) { o.hidOpeners = append(o.hidOpeners, opener) }
}

func defaultHIDOpeners() []func() (sensors.SensorChip, bool, error) {
	return []func() (sensors.SensorChip, bool, error){
		func() (sensors.SensorChip, bool, error) { return hid.OpenKraken() },
		func() (sensors.SensorChip, bool, error) { return hid.OpenP7H1() },
		func() (sensors.SensorChip, bool, error) { return hid.OpenCorsairPSU() },
	}
}

// Init opens the privileged facade and probes every supported subsystem,
// returning the populated tree. A probe that fails to find or read its
// hardware is logged and skipped rather than aborting the whole walk; a
// missing Super I/O chip should not prevent CPU and memory sensors from
// publishing.
func Init(opts ...Option) (*sensors.TreeNode, error) {
	cfg := Options{}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.hidOpeners == nil {
		cfg.hidOpeners = defaultHIDOpeners()
	}

	facade, err := ring0.Open()
	if err != nil {
		return nil, fmt.Errorf("probe: open ring0 facade: %w", err)
	}

	tree := sensors.NewTree()

	board := probeBoard(tree)
	probeSuperIOAndEC(tree, facade, board)
	probeCPU(tree, facade)
	probeMemory(tree)
	probeHID(tree, cfg.hidOpeners)

	return tree, nil
}

// Close tears down every chip in tree (stopping HID reader goroutines and
// restoring any PWM registers written since Init), then releases the
// privileged facade Init opened. Callers must call Close exactly once per
// successful Init to balance the facade's reference count and release its
// device handles; process exit is not relied on for cleanup of
// /dev/cpu/*/msr, /dev/port, and /dev/mem.
func Close(tree *sensors.TreeNode) error {
	if tree != nil {
		var collected sensors.CollectChips
		tree.Accept(&collected)

		for _, chip := range collected.Chips {
			closer, ok := chip.(io.Closer)
			if !ok {
				continue
			}

			if err := closer.Close(); err != nil {
				sensors.Logger.Printf("probe: close %s: %v", chip.Identifier(), err)
			}
		}
	}

	facade, err := ring0.Open()
	if err != nil {
		return fmt.Errorf("probe: close: %w", err)
	}

	// The Open above re-incremented the refcount Init had already bumped;
	// two Close calls here release both, leaving the singleton's count
	// exactly where it was before Init.
	if err := facade.Close(); err != nil {
		return fmt.Errorf("probe: close: %w", err)
	}

	return facade.Close()
}

// probeBoard decodes DMI/SMBIOS for the motherboard vendor/model, used
// both to resolve board-specific quirks and as the tree's "/motherboard"
// node identity.
func probeBoard(tree *sensors.TreeNode) boardcfg.Board {
	table, err := dmi.Decode()
	if err != nil {
		sensors.Logger.Printf("probe: dmi decode failed: %v", err)

		return boardcfg.Board{}
	}

	board := boardcfg.Board{}

	if len(table.Baseboards) > 0 {
		board.Manufacturer = boardcfg.Manufacturer(table.Baseboards[0].Vendor)
		board.Model = boardcfg.Model(table.Baseboards[0].Product)
	} else if table.System != nil {
		board.Manufacturer = boardcfg.Manufacturer(table.System.Manufacturer)
		board.Model = boardcfg.Model(table.System.Product)
	}

	return board
}

// monitorPort builds the runtime index/data port for a detected chip's
// hardware-monitor block, distinct from the config port Detect used.
func monitorPort(facade *ring0.Facade, address uint16) superio.SingleBankPort {
	return superio.NewSingleBankPort(facade, superio.SingleBankAddress{
		Address: address,
		Regs:    superio.IndexDataRegisters{IndexRegOffset: monitorIndexOffset, DataRegOffset: monitorDataOffset},
	})
}

func monitorPortWithBanks(facade *ring0.Facade, address uint16) superio.PortWithBanks {
	regs := superio.IndexDataRegisters{IndexRegOffset: monitorIndexOffset, DataRegOffset: monitorDataOffset}

	return superio.NewPortWithBanks(facade, superio.AddressWithBank{
		SingleBankAddress:     superio.SingleBankAddress{Address: address, Regs: regs},
		BankSelectionPorts:    regs,
		BankSelectionRegister: monitorBankRegister,
	})
}

func probeSuperIOAndEC(tree *sensors.TreeNode, facade *ring0.Facade, board boardcfg.Board) {
	lpc := tree.Child("motherboard/lpc")

	for i, d := range superio.Detect(facade) {
		driver, counts := buildSuperIODriver(facade, d)
		if driver == nil {
			sensors.Logger.Printf("probe: unhandled super i/o family %v for chip %v, skipping", d.Family, d.Chip)
			continue
		}

		id := sensors.Identifier{
			Name: fmt.Sprintf("sio%d", i),
			Type: sensors.HardwareType(d.Chip.String()),
			Bus:  sensors.BusISA,
		}

		channels := boardcfg.Resolve(board, d.Chip, counts)

		chip := superio.NewBaseChip(d.Chip, d.Address, id, channels, driver, ring0.LockISABus)
		lpc.AddPayload(chip)
	}

	ecChip := ec.New(facade)

	if asus, ok := ec.NewAsusEC(ecChip, string(board.Model)); ok {
		lpc.AddPayload(asus)
	}
}

// buildSuperIODriver constructs the concrete family driver for a detected
// chip, and the default channel counts used when no board quirk applies.
// Channel counts are fixed per family, except in the Nuvoton NCT6xxx family,
// where the NCT6683D/NCT6687D and the other members each get their own.
func buildSuperIODriver(facade *ring0.Facade, d superio.Detected) (superio.Driver, map[sensors.SensorType]int) {
	counts := map[sensors.SensorType]int{
		sensors.Voltage:     9,
		sensors.Temperature: 3,
		sensors.Fan:         5,
		sensors.PWM:         5,
	}

	switch d.Family {
	case superio.FamilyITE:
		return chips.NewITE(monitorPort(facade, d.Address), d.Chip, d.ITEVersion), counts
	case superio.FamilyWinbondNuvoton:
		return chips.NewWinbond(monitorPort(facade, d.Address)), counts
	case superio.FamilyNuvotonNCT6xxx:
		if d.Chip == superio.ChipNCT6683D || d.Chip == superio.ChipNCT6687D {
			ecCounts := map[sensors.SensorType]int{
				sensors.Voltage:     14,
				sensors.Temperature: 7,
				sensors.Fan:         8,
				sensors.PWM:         8,
			}

			return chips.NewNuvotonEC(monitorPortWithBanks(facade, d.Address), d.Chip), ecCounts
		}

		return chips.NewNuvoton(monitorPortWithBanks(facade, d.Address)), nuvotonChannelCounts(d.Chip)
	case superio.FamilyFintek:
		return chips.NewFintek(monitorPortWithBanks(facade, d.Address)), counts
	default:
		return nil, nil
	}
}

// nuvotonChannelCounts mirrors the per-chip channel counts of the
// NCT6779D-NCT6798D group: every member publishes 15 voltage inputs,
// fan/PWM header count grew across the generations, and only the
// NCT6796D/NCT6797D/NCT6798D expose the full 24-source temperature list.
func nuvotonChannelCounts(chip superio.Chip) map[sensors.SensorType]int {
	fans := 6
	temps := 7

	switch chip {
	case superio.ChipNCT6779D:
		fans = 5
	case superio.ChipNCT6796D, superio.ChipNCT6797D, superio.ChipNCT6798D:
		fans = 7
		temps = 24
	}

	return map[sensors.SensorType]int{
		sensors.Voltage:     15,
		sensors.Temperature: temps,
		sensors.Fan:         fans,
		sensors.PWM:         fans,
	}
}

func probeCPU(tree *sensors.TreeNode, facade *ring0.Facade) {
	packages, err := cpuid.GroupTopology()
	if err != nil {
		sensors.Logger.Printf("probe: cpuid topology failed: %v", err)

		return
	}

	cpuNode := tree.Child("cpu")

	for pkgIndex, pkg := range packages {
		base := cpu.NewGenericCPU(pkgIndex, pkg, "cpu")

		if base.Cpuid0() == nil {
			continue
		}

		chip := buildCPUDriver(base, facade, pkgIndex)
		cpuNode.AddPayload(chip)
	}
}

// buildCPUDriver selects the vendor/family-specific driver from the
// package's CPUID(0) vendor string and family ID, falling back to the
// generic load-only base for unrecognized parts.
func buildCPUDriver(base *cpu.GenericCPU, facade *ring0.Facade, pkgIndex int) sensors.SensorChip {
	d0 := base.Cpuid0()

	switch d0.Vendor {
	case cpuid.VendorAMD:
		switch {
		case d0.Family == 0x0F:
			return cpu.NewAMD0F(base, facade, pkgIndex)
		case d0.Family == 0x17 || d0.Family == 0x19:
			return cpu.NewAMD17(base, facade, pkgIndex)
		default:
			return cpu.NewAMD10(base, facade, pkgIndex)
		}
	case cpuid.VendorIntel:
		return cpu.NewIntel(base, facade)
	default:
		return base
	}
}

func probeMemory(tree *sensors.TreeNode) {
	tree.Child("memory").AddPayload(memory.New())
}

func probeHID(tree *sensors.TreeNode, openers []func() (sensors.SensorChip, bool, error)) {
	hidNode := tree.Child("hid")

	for _, open := range openers {
		chip, ok, err := open()
		if err != nil {
			sensors.Logger.Printf("probe: hid open failed: %v", err)
			continue
		}

		if !ok {
			continue
		}

		hidNode.AddPayload(chip)
	}
}
