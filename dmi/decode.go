package dmi

import "encoding/binary"

// byteAt returns formatted[off] or 0 if the record is shorter than off,
// since SMBIOS producers routinely omit trailing optional fields rather
// than zero-pad them.
func byteAt(f []byte, off int) uint8 {
	if off >= len(f) {
		return 0
	}

	return f[off]
}

func wordAt(f []byte, off int) uint16 {
	if off+2 > len(f) {
		return 0
	}

	return binary.LittleEndian.Uint16(f[off:])
}

func dwordAt(f []byte, off int) uint32 {
	if off+4 > len(f) {
		return 0
	}

	return binary.LittleEndian.Uint32(f[off:])
}

func decodeBIOS(r rawRecord) BIOSInfo {
	f := r.Formatted

	romKB := 64 * (int(byteAt(f, 0x09)) + 1)

	// 0xFF in the legacy size byte defers to the extended-size word, whose
	// top two bits select the unit (0 = MB, 1 = GB).
	if byteAt(f, 0x09) == 0xFF && len(f) >= 0x1A {
		ext := wordAt(f, 0x18)
		size := int(ext & 0x3FFF)

		switch ext >> 14 {
		case 0:
			romKB = size * 1024
		case 1:
			romKB = size * 1024 * 1024
		}
	}

	return BIOSInfo{
		Vendor:       stringRef(r, byteAt(f, 0x04)),
		Version:      stringRef(r, byteAt(f, 0x05)),
		StartSegment: wordAt(f, 0x06),
		Date:         stringRef(r, byteAt(f, 0x08)),
		ROMSizeKB:    romKB,
	}
}

func decodeSystem(r rawRecord) SystemInfo {
	f := r.Formatted

	uuid := ""
	if len(f) >= 0x18 {
		uuid = formatUUID(f[0x08:0x18])
	}

	return SystemInfo{
		Manufacturer: stringRef(r, byteAt(f, 0x04)),
		Product:      stringRef(r, byteAt(f, 0x05)),
		Version:      stringRef(r, byteAt(f, 0x06)),
		Serial:       stringRef(r, byteAt(f, 0x07)),
		UUID:         uuid,
		WakeUpType:   WakeUpType(byteAt(f, 0x18)),
		SKUNumber:    stringRef(r, byteAt(f, 0x19)),
		Family:       stringRef(r, byteAt(f, 0x1A)),
	}
}

// formatUUID renders the 16 raw SMBIOS UUID bytes. The first three fields
// are little-endian per the SMBIOS spec (unlike RFC 4122's big-endian
// encoding); the last two are byte strings either way.
func formatUUID(b []byte) string {
	const hex = "0123456789abcdef"

	order := []int{3, 2, 1, 0, -1, 5, 4, -1, 7, 6, -1, 8, 9, -1, 10, 11, 12, 13, 14, 15}

	out := make([]byte, 0, 36)

	for _, idx := range order {
		if idx == -1 {
			out = append(out, '-')
			continue
		}

		v := b[idx]
		out = append(out, hex[v>>4], hex[v&0xF])
	}

	return string(out)
}

func decodeBaseboard(r rawRecord) BaseboardInfo {
	f := r.Formatted

	return BaseboardInfo{
		Vendor:        stringRef(r, byteAt(f, 0x04)),
		Product:       stringRef(r, byteAt(f, 0x05)),
		Version:       stringRef(r, byteAt(f, 0x06)),
		Serial:        stringRef(r, byteAt(f, 0x07)),
		AssetTag:      stringRef(r, byteAt(f, 0x08)),
		ChassisHandle: wordAt(f, 0x0A),
	}
}

func decodeChassis(r rawRecord) ChassisInfo {
	f := r.Formatted

	rawType := byteAt(f, 0x05)

	return ChassisInfo{
		Manufacturer:   stringRef(r, byteAt(f, 0x04)),
		Type:           ChassisType(rawType & 0x7F),
		Locked:         rawType&0x80 != 0,
		Version:        stringRef(r, byteAt(f, 0x06)),
		Serial:         stringRef(r, byteAt(f, 0x07)),
		AssetTag:       stringRef(r, byteAt(f, 0x08)),
		BootUpState:    ChassisState(byteAt(f, 0x09)),
		PowerState:     ChassisState(byteAt(f, 0x0A)),
		ThermalState:   ChassisState(byteAt(f, 0x0B)),
		SecurityStatus: ChassisSecurityStatus(byteAt(f, 0x0C)),
		SKUNumber:      stringRef(r, byteAt(f, 0x15)),
	}
}

func decodeProcessor(r rawRecord) ProcessorInfo {
	f := r.Formatted

	status := byteAt(f, 0x18)
	enabled := status&0x40 != 0

	coreCount := int(byteAt(f, 0x23))
	coreEnabled := int(byteAt(f, 0x24))
	threadCount := int(byteAt(f, 0x25))

	// SMBIOS 3.0 widens these three fields to 16 bits when the legacy byte
	// reads 0xFF ("more than 255").
	if coreCount == 0xFF && len(f) >= 0x2C {
		coreCount = int(wordAt(f, 0x2A))
	}

	if coreEnabled == 0xFF && len(f) >= 0x2E {
		coreEnabled = int(wordAt(f, 0x2C))
	}

	if threadCount == 0xFF && len(f) >= 0x30 {
		threadCount = int(wordAt(f, 0x2E))
	}

	p := ProcessorInfo{
		SocketDesignation: stringRef(r, byteAt(f, 0x04)),
		Manufacturer:      stringRef(r, byteAt(f, 0x07)),
		Family:            ProcessorFamily(byteAt(f, 0x06)),
		Version:           stringRef(r, byteAt(f, 0x10)),
		MaxSpeedMHz:       wordAt(f, 0x14),
		CurrentSpeedMHz:   wordAt(f, 0x16),
		Serial:            stringRef(r, byteAt(f, 0x20)),
		AssetTag:          stringRef(r, byteAt(f, 0x21)),
		PartNumber:        stringRef(r, byteAt(f, 0x22)),
	}

	if !enabled {
		p.CoreCount, p.CoreEnabled, p.ThreadCount = 0, 0, 0
		return p
	}

	p.CoreCount, p.CoreEnabled, p.ThreadCount = coreCount, coreEnabled, threadCount

	if p.Family == ProcessorFamily2Indicator {
		p.Family2 = wordAt(f, 0x28)
	}

	return p
}

// cacheLevel decodes the 1-based cache level packed in bits 0-2 of the
// "configuration" word.
func cacheLevel(config uint16) int {
	return int(config&0x07) + 1
}

func decodeCache(r rawRecord) CacheInfo {
	f := r.Formatted

	config := wordAt(f, 0x05)

	installed := int(wordAt(f, 0x09))
	maxSize := int(wordAt(f, 0x07))

	// Bit 15 set marks the size in 64K granules instead of 1K (SMBIOS 3.1+
	// large-cache extension); the legacy word then reads 0x7FFF.
	if installed == 0x7FFF && len(f) >= 0x1C {
		installed = int(dwordAt(f, 0x18)) * 64
	}

	if maxSize == 0x7FFF && len(f) >= 0x18 {
		maxSize = int(dwordAt(f, 0x14)) * 64
	}

	return CacheInfo{
		SocketDesignation: stringRef(r, byteAt(f, 0x04)),
		Level:             cacheLevel(config),
		InstalledSizeKB:   installed,
		MaxSizeKB:         maxSize,
	}
}

func decodeMemDevice(r rawRecord) MemoryDevice {
	f := r.Formatted

	sizeRaw := wordAt(f, 0x0C)

	size := 0
	if sizeRaw != 0 && sizeRaw != 0xFFFF {
		if sizeRaw&0x8000 != 0 {
			size = int(sizeRaw & 0x7FFF) // KB granularity when bit 15 set
		} else {
			size = int(sizeRaw) // MB granularity otherwise
		}
	}

	if sizeRaw == 0x7FFF && len(f) >= 0x20 {
		size = int(dwordAt(f, 0x1C))
	}

	return MemoryDevice{
		DeviceLocator: stringRef(r, byteAt(f, 0x10)),
		BankLocator:   stringRef(r, byteAt(f, 0x11)),
		Manufacturer:  stringRef(r, byteAt(f, 0x17)),
		SerialNumber:  stringRef(r, byteAt(f, 0x18)),
		PartNumber:    stringRef(r, byteAt(f, 0x1A)),
		SizeMB:        size,
		SpeedMT:       int(wordAt(f, 0x15)),
		ConfiguredMT:  int(wordAt(f, 0x20)),
	}
}
