package dmi

// BIOSInfo is SMBIOS type 0.
type BIOSInfo struct {
	Vendor       string
	Version      string
	Date         string // raw MM/DD/YYYY string as read from the table
	StartSegment uint16
	ROMSizeKB    int
}

// SystemInfo is SMBIOS type 1.
type SystemInfo struct {
	Manufacturer string
	Product      string
	Version      string
	Serial       string
	UUID         string
	WakeUpType   WakeUpType
	SKUNumber    string
	Family       string
}

// WakeUpType is the system "wake-up type" enumerated value from type 1.
type WakeUpType uint8

const (
	WakeUpReserved WakeUpType = iota
	WakeUpOther
	WakeUpUnknown
	WakeUpAPMTimer
	WakeUpModemRing
	WakeUpLANRemote
	WakeUpPowerSwitch
	WakeUpPCIPME
	WakeUpACPowerRestored
)

func (w WakeUpType) String() string {
	switch w {
	case WakeUpOther:
		return "Other"
	case WakeUpAPMTimer:
		return "APM Timer"
	case WakeUpModemRing:
		return "Modem Ring"
	case WakeUpLANRemote:
		return "LAN Remote"
	case WakeUpPowerSwitch:
		return "Power Switch"
	case WakeUpPCIPME:
		return "PCI PME#"
	case WakeUpACPowerRestored:
		return "AC Power Restored"
	default:
		return "Unknown"
	}
}

// BaseboardInfo is SMBIOS type 2.
type BaseboardInfo struct {
	Vendor        string
	Product       string
	Version       string
	Serial        string
	AssetTag      string
	ChassisHandle uint16
}

// ChassisSecurityStatus is the type-3 security-status field.
type ChassisSecurityStatus uint8

const (
	ChassisSecurityOther ChassisSecurityStatus = iota + 1
	ChassisSecurityUnknown
	ChassisSecurityNone
	ChassisSecurityExternalInterfaceLockedOut
	ChassisSecurityExternalInterfaceEnabled
)

// ChassisState is the type-3 thermal/power state field shared by both
// PowerState and ThermalState.
type ChassisState uint8

const (
	ChassisStateOther ChassisState = iota + 1
	ChassisStateUnknown
	ChassisStateSafe
	ChassisStateWarning
	ChassisStateCritical
	ChassisStateNonRecoverable
)

// ChassisType is the type-3 chassis-type field (low 7 bits; bit 7 is the
// "chassis lock present" flag, split out separately as Locked).
type ChassisType uint8

const (
	ChassisTypeOther ChassisType = iota + 1
	ChassisTypeUnknown
	ChassisTypeDesktop
	ChassisTypeLowProfileDesktop
	ChassisTypePizzaBox
	ChassisTypeMiniTower
	ChassisTypeTower
	ChassisTypePortable
	ChassisTypeLaptop
	ChassisTypeNotebook
	ChassisTypeHandHeld
	ChassisTypeDockingStation
	ChassisTypeAllInOne
	ChassisTypeSubNotebook
	ChassisTypeSpaceSaving
	ChassisTypeLunchBox
	ChassisTypeMainServerChassis
	ChassisTypeExpansionChassis
	ChassisTypeSubChassis
	ChassisTypeBusExpansionChassis
	ChassisTypePeripheralChassis
	ChassisTypeRaidChassis
	ChassisTypeRackMountChassis
	ChassisTypeSealedCasePC
	ChassisTypeMultiSystemChassis
	ChassisTypeCompactPCI
	ChassisTypeAdvancedTCA
	ChassisTypeBlade
	ChassisTypeBladeEnclosure
	ChassisTypeTablet
	ChassisTypeConvertible
	ChassisTypeDetachable
	ChassisTypeIoTGateway
	ChassisTypeEmbeddedPC
	ChassisTypeMiniPC
	ChassisTypeStickPC
)

func (c ChassisType) String() string {
	names := [...]string{
		"", "Other", "Unknown", "Desktop", "Low Profile Desktop", "Pizza Box",
		"Mini Tower", "Tower", "Portable", "Laptop", "Notebook", "Hand Held",
		"Docking Station", "All In One", "Sub Notebook", "Space-saving",
		"Lunch Box", "Main Server Chassis", "Expansion Chassis", "Sub Chassis",
		"Bus Expansion Chassis", "Peripheral Chassis", "RAID Chassis",
		"Rack Mount Chassis", "Sealed-case PC", "Multi-system Chassis",
		"Compact PCI", "Advanced TCA", "Blade", "Blade Enclosure", "Tablet",
		"Convertible", "Detachable", "IoT Gateway", "Embedded PC", "Mini PC",
		"Stick PC",
	}

	if int(c) < len(names) {
		return names[c]
	}

	return "Unknown"
}

// ChassisInfo is SMBIOS type 3.
type ChassisInfo struct {
	Manufacturer   string
	Type           ChassisType
	Locked         bool
	Version        string
	Serial         string
	AssetTag       string
	BootUpState    ChassisState
	PowerState     ChassisState
	ThermalState   ChassisState
	SecurityStatus ChassisSecurityStatus
	SKUNumber      string
}

// ProcessorFamily identifies the processor family field of type 4. Only the
// families plausibly seen on modern x86 hardware are enumerated; anything
// else decodes to ProcessorFamilyOther/Unknown verbatim from the raw byte.
type ProcessorFamily uint16

const (
	ProcessorFamilyOther      ProcessorFamily = 1
	ProcessorFamilyUnknown    ProcessorFamily = 2
	ProcessorFamilyPentium    ProcessorFamily = 0x0B
	ProcessorFamilyCoreDuo    ProcessorFamily = 0xC2
	ProcessorFamilyXeon       ProcessorFamily = 0xB3
	ProcessorFamilyAMDDuron   ProcessorFamily = 0x18
	ProcessorFamilyAMDAthlon  ProcessorFamily = 0x19
	ProcessorFamilyAMDOpteron ProcessorFamily = 0x46
	ProcessorFamilyAMDTurion  ProcessorFamily = 0x50
	ProcessorFamilyAMDRyzen   ProcessorFamily = 0x6B
	// ProcessorFamily2Indicator signals the real family is in the
	// "Processor Family 2" field instead (SMBIOS 2.6+ extension).
	ProcessorFamily2Indicator ProcessorFamily = 0xFE
)

// ProcessorInfo is SMBIOS type 4.
type ProcessorInfo struct {
	SocketDesignation string
	Manufacturer      string
	Version           string
	Family            ProcessorFamily
	Family2           uint16 // valid when Family == ProcessorFamily2Indicator
	Serial            string
	AssetTag          string
	PartNumber        string
	MaxSpeedMHz       uint16
	CurrentSpeedMHz   uint16
	CoreCount         int
	CoreEnabled       int
	ThreadCount       int
}

// CacheInfo is SMBIOS type 7.
type CacheInfo struct {
	SocketDesignation string
	Level             int // 1, 2 or 3 decoded from the configuration field
	InstalledSizeKB   int
	MaxSizeKB         int
}

// MemoryDevice is SMBIOS type 17.
type MemoryDevice struct {
	DeviceLocator string
	BankLocator   string
	Manufacturer  string
	PartNumber    string
	SerialNumber  string
	SizeMB        int
	SpeedMT       int
	ConfiguredMT  int
}
