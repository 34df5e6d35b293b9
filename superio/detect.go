package superio

import (
	"time"

	"github.com/openhwmon/gohwmon/ring0"
)

// Chip identifies a detected Super I/O part.
type Chip int

const (
	ChipUnknown Chip = iota
	ChipIT8705F
	ChipIT8712F
	ChipIT8716F
	ChipIT8718F
	ChipIT8720F
	ChipIT8721F
	ChipIT8728F
	ChipIT8771E
	ChipIT8772E
	ChipIT8620E
	ChipIT8686E
	ChipW83627HF
	ChipW83627THF
	ChipW83627EHF
	ChipW83627DHG
	ChipW83667HG
	ChipNCT6771F
	ChipNCT6776F
	ChipNCT6779D
	ChipNCT6791D
	ChipNCT6792D
	ChipNCT6793D
	ChipNCT6795D
	ChipNCT6796D
	ChipNCT6797D
	ChipNCT6798D
	ChipNCT6683D
	ChipNCT6687D
	ChipF71858
	ChipF71862
	ChipF71869
	ChipF71882
	ChipF71889AD
)

func (c Chip) String() string {
	names := map[Chip]string{
		ChipIT8705F: "IT8705F", ChipIT8712F: "IT8712F", ChipIT8716F: "IT8716F",
		ChipIT8718F: "IT8718F", ChipIT8720F: "IT8720F", ChipIT8721F: "IT8721F",
		ChipIT8728F: "IT8728F", ChipIT8771E: "IT8771E", ChipIT8772E: "IT8772E",
		ChipIT8620E: "IT8620E", ChipIT8686E: "IT8686E",
		ChipW83627HF: "W83627HF", ChipW83627THF: "W83627THF", ChipW83627EHF: "W83627EHF",
		ChipW83627DHG: "W83627DHG", ChipW83667HG: "W83667HG",
		ChipNCT6771F: "NCT6771F", ChipNCT6776F: "NCT6776F", ChipNCT6779D: "NCT6779D",
		ChipNCT6791D: "NCT6791D", ChipNCT6792D: "NCT6792D", ChipNCT6793D: "NCT6793D",
		ChipNCT6795D: "NCT6795D", ChipNCT6796D: "NCT6796D", ChipNCT6797D: "NCT6797D",
		ChipNCT6798D: "NCT6798D",
		ChipNCT6683D: "NCT6683D", ChipNCT6687D: "NCT6687D",
		ChipF71858: "F71858", ChipF71862: "F71862", ChipF71869: "F71869",
		ChipF71882: "F71882", ChipF71889AD: "F71889AD",
	}

	if n, ok := names[c]; ok {
		return n
	}

	return "unknown"
}

// Family groups detected chips by the driver package that handles them.
type Family int

const (
	FamilyNone Family = iota
	FamilyITE
	FamilyWinbondNuvoton
	FamilyNuvotonNCT6xxx
	FamilyFintek
)

// Detected is one recognized Super I/O chip plus the address/port data its
// driver needs to talk to it.
type Detected struct {
	Chip        Chip
	Family      Family
	Revision    uint8
	Port        SingleBankPort
	Address     uint16
	GpioAddress uint16
	ITEVersion  uint8
}

const (
	baseAddressRegister    = 0x60
	chipIDRegister         = 0x20
	chipRevisionRegister   = 0x21
	itChipVersionRegister  = 0x22
	fintekVendorIDRegister = 0x23
	fintekVendorID         = 0x1934

	it87EnvironmentControllerLdn     = 0x04
	it8705GpioLdn                    = 0x05
	it87xxGpioLdn                    = 0x07
	winbondNuvotonHardwareMonitorLdn = 0x0B
	fintekHardwareMonitorLdn         = 0x04
	f71858HardwareMonitorLdn         = 0x02
)

// registerPortAddresses are the two index/data port pairs Super I/O chips
// are conventionally wired to.
var registerPortAddresses = []SingleBankAddress{
	{Address: 0, Regs: IndexDataRegisters{IndexRegOffset: 0x2E, DataRegOffset: 0x2F}},
	{Address: 0, Regs: IndexDataRegisters{IndexRegOffset: 0x4E, DataRegOffset: 0x4F}},
}

// Detect probes both conventional index/data port pairs under the shared
// ISA-bus lock and returns every Super I/O chip it recognizes. The Winbond
// entry sequence is harmless to ITE parts (and vice versa), so each vendor
// mode is tried in turn on the same port pair; SMSC goes last since no
// SMSC hardware monitor is currently recognized.
func Detect(facade PortIO) []Detected {
	unlock, ok := ring0.LockISABus.TryLock(10 * time.Millisecond)
	if !ok {
		return nil
	}
	defer unlock()

	var found []Detected

	for _, addr := range registerPortAddresses {
		port := NewSingleBankPort(facade, addr)

		if d, ok := detectWinbondNuvotonFintek(port); ok {
			found = append(found, d)
			continue
		}

		if d, ok := detectIT87(port); ok {
			found = append(found, d)
			continue
		}

		detectSMSC(port)
	}

	return found
}

// detectSMSC enters and immediately exits SMSC config mode. No SMSC
// hardware monitor is recognized yet, so this only restores the chip to
// run mode if an SMSC part happened to latch the 0x55 entry byte.
func detectSMSC(port SingleBankPort) {
	exit, err := EnterSMSC(port)
	if err != nil {
		return
	}

	_ = exit()
}

func detectIT87(port SingleBankPort) (Detected, bool) {
	idx := port.Regs().IndexRegOffset
	if idx != 0x2E && idx != 0x4E {
		return Detected{}, false
	}

	exit, err := EnterIT87(port)
	if err != nil {
		return Detected{}, false
	}
	defer exit()

	chipID, err := port.ReadWord(chipIDRegister)
	if err != nil {
		return Detected{}, false
	}

	chip := itChipFromID(chipID)
	if chip == ChipUnknown {
		return Detected{}, false
	}

	if err := port.Select(it87EnvironmentControllerLdn); err != nil {
		return Detected{}, false
	}

	address, _ := port.ReadWord(baseAddressRegister)
	time.Sleep(time.Millisecond)
	verify, _ := port.ReadWord(baseAddressRegister)

	versionByte, _ := port.ReadByte(itChipVersionRegister)
	version := versionByte & 0x0F

	var gpioAddress, gpioVerify uint16

	if chip == ChipIT8705F {
		_ = port.Select(it8705GpioLdn)
		gpioAddress, _ = port.ReadWord(baseAddressRegister)
		time.Sleep(time.Millisecond)
		gpioVerify, _ = port.ReadWord(baseAddressRegister)
	} else {
		_ = port.Select(it87xxGpioLdn)
		gpioAddress, _ = port.ReadWord(baseAddressRegister + 2)
		time.Sleep(time.Millisecond)
		gpioVerify, _ = port.ReadWord(baseAddressRegister + 2)
	}

	if address != verify || address < 0x100 || address&0xF007 != 0 {
		return Detected{}, false
	}

	if gpioAddress != gpioVerify || gpioAddress < 0x100 || gpioAddress&0xF007 != 0 {
		return Detected{}, false
	}

	return Detected{
		Chip: chip, Family: FamilyITE, Port: port,
		Address: address, GpioAddress: gpioAddress, ITEVersion: version,
	}, true
}

func itChipFromID(id uint16) Chip {
	switch id {
	case 0x8620:
		return ChipIT8620E
	case 0x8686:
		return ChipIT8686E
	case 0x8705:
		return ChipIT8705F
	case 0x8712:
		return ChipIT8712F
	case 0x8716:
		return ChipIT8716F
	case 0x8718:
		return ChipIT8718F
	case 0x8720:
		return ChipIT8720F
	case 0x8721:
		return ChipIT8721F
	case 0x8728:
		return ChipIT8728F
	case 0x8771:
		return ChipIT8771E
	case 0x8772:
		return ChipIT8772E
	default:
		return ChipUnknown
	}
}

// idRevision is one (id byte, revision byte) pair mapped to a detected
// chip. Covers the common Winbond/Nuvoton/Fintek parts; anything else
// reads back as ChipUnknown and is skipped.
type idRevision struct {
	id, revision uint8
	chip         Chip
	family       Family
}

var winbondNuvotonFintekTable = []idRevision{
	{0x05, 0x07, ChipF71858, FamilyFintek},
	{0x05, 0x41, ChipF71882, FamilyFintek},
	{0x06, 0x01, ChipF71862, FamilyFintek},
	{0x08, 0x14, ChipF71869, FamilyFintek},
	{0x10, 0x05, ChipF71889AD, FamilyFintek},
	{0x52, 0x17, ChipW83627HF, FamilyWinbondNuvoton},
	{0x52, 0x3A, ChipW83627HF, FamilyWinbondNuvoton},
	{0x52, 0x41, ChipW83627HF, FamilyWinbondNuvoton},
	{0x85, 0x41, ChipW83627THF, FamilyWinbondNuvoton},
	{0xB4, 0x70, ChipNCT6771F, FamilyNuvotonNCT6xxx},
	{0xC3, 0x30, ChipNCT6776F, FamilyNuvotonNCT6xxx},
	{0xC5, 0x60, ChipNCT6779D, FamilyNuvotonNCT6xxx},
	{0xC8, 0x03, ChipNCT6791D, FamilyNuvotonNCT6xxx},
	{0xC9, 0x11, ChipNCT6792D, FamilyNuvotonNCT6xxx},
	{0xD1, 0x21, ChipNCT6793D, FamilyNuvotonNCT6xxx},
	{0xD3, 0x52, ChipNCT6795D, FamilyNuvotonNCT6xxx},
	{0xD4, 0x23, ChipNCT6796D, FamilyNuvotonNCT6xxx},
	{0xD4, 0x51, ChipNCT6797D, FamilyNuvotonNCT6xxx},
	{0xD4, 0x2B, ChipNCT6798D, FamilyNuvotonNCT6xxx},
	{0xC7, 0x32, ChipNCT6683D, FamilyNuvotonNCT6xxx},
	{0xD5, 0x92, ChipNCT6687D, FamilyNuvotonNCT6xxx},
}

func winbondChipFromIDRevision(id, revision uint8) (Chip, Family) {
	// W83627DHG/EHF and W83667HG key off the high nibble of revision.
	switch id {
	case 0x82:
		if revision&0xF0 == 0x80 {
			return ChipW83627THF, FamilyWinbondNuvoton
		}
	case 0x88:
		if revision&0xF0 == 0x50 || revision&0xF0 == 0x60 {
			return ChipW83627EHF, FamilyWinbondNuvoton
		}
	case 0xA0:
		if revision&0xF0 == 0x20 {
			return ChipW83627DHG, FamilyWinbondNuvoton
		}
	case 0xA5:
		if revision&0xF0 == 0x10 {
			return ChipW83667HG, FamilyWinbondNuvoton
		}
	}

	for _, e := range winbondNuvotonFintekTable {
		if e.id == id && e.revision == revision {
			return e.chip, e.family
		}
	}

	return ChipUnknown, FamilyNone
}

// nct679xNeedsIOSpaceLockDisable lists the NCT679xD chips whose hardware
// monitor I/O space ships locked behind a bit that must be cleared before
// their registers respond.
var nct679xNeedsIOSpaceLockDisable = map[Chip]bool{
	ChipNCT6791D: true, ChipNCT6792D: true, ChipNCT6793D: true,
	ChipNCT6795D: true, ChipNCT6796D: true, ChipNCT6797D: true,
	ChipNCT6798D: true,
}

func detectWinbondNuvotonFintek(port SingleBankPort) (Detected, bool) {
	exit, err := EnterWinbondNuvotonFintek(port)
	if err != nil {
		return Detected{}, false
	}
	defer exit()

	id, err := port.ReadByte(chipIDRegister)
	if err != nil {
		return Detected{}, false
	}

	revision, err := port.ReadByte(chipRevisionRegister)
	if err != nil {
		return Detected{}, false
	}

	chip, family := winbondChipFromIDRevision(id, revision)
	if chip == ChipUnknown {
		return Detected{}, false
	}

	ldn := uint8(winbondNuvotonHardwareMonitorLdn)
	if family == FamilyFintek && chip == ChipF71858 {
		ldn = f71858HardwareMonitorLdn
	} else if family == FamilyFintek {
		ldn = fintekHardwareMonitorLdn
	}

	if err := port.Select(ldn); err != nil {
		return Detected{}, false
	}

	address, _ := port.ReadWord(baseAddressRegister)
	time.Sleep(time.Millisecond)
	verify, _ := port.ReadWord(baseAddressRegister)

	vendorID, _ := port.ReadWord(fintekVendorIDRegister)

	if address == verify && nct679xNeedsIOSpaceLockDisable[chip] {
		_ = DisableNuvotonIOSpaceLock(port)
	}

	if address != verify {
		return Detected{}, false
	}

	if address&0x07 == 0x05 {
		address &= 0xFFF8
	}

	if address < 0x100 || address&0xF007 != 0 {
		return Detected{}, false
	}

	if family == FamilyFintek && vendorID != fintekVendorID {
		return Detected{}, false
	}

	return Detected{Chip: chip, Family: family, Revision: revision, Port: port, Address: address}, true
}
