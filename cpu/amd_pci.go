package cpu

import "github.com/openhwmon/gohwmon/ring0"

// AMD PCI device/vendor verification constants.
const (
	amdVendorID            = 0x1022
	deviceVendorIDRegister = 0
	pciBaseDevice          = 0x18
	pciBus                 = 0
)

// amdMiscPCIAddress assembles the PCI config address for a package's
// miscellaneous-control function and verifies it actually answers as
// deviceID/amdVendorID before handing it back; a stale or absent device
// resolves to InvalidPCIAddress instead of garbage reads.
func amdMiscPCIAddress(facade *ring0.Facade, packageIndex int, function uint32, deviceID uint16) uint32 {
	if deviceID == 0 {
		return ring0.InvalidPCIAddress
	}

	address := ring0.PCIAddress(pciBus, uint32(pciBaseDevice+packageIndex), function)

	deviceVendor, err := facade.ReadPCIConfig(address, deviceVendorIDRegister)
	if err != nil || deviceVendor != uint32(deviceID)<<16|amdVendorID {
		return ring0.InvalidPCIAddress
	}

	return address
}
