// Package dmi decodes the firmware's SMBIOS/DMI tables: BIOS, system,
// chassis, baseboard, processor, cache and memory-device records.
//
// Table retrieval uses github.com/digitalocean/go-smbios/smbios.Stream to
// locate and read the raw entry point + table, on platforms that expose one;
// record parsing (length-prefixed TLV walk, trailing string-table
// resolution, date-field quirks) is hand-written here, since the go-smbios
// package only fetches bytes -- it does not decode vendor fields.
package dmi

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/digitalocean/go-smbios/smbios"
)

// RecordType is the SMBIOS structure type byte.
type RecordType uint8

const (
	TypeBIOS       RecordType = 0
	TypeSystem     RecordType = 1
	TypeBaseboard  RecordType = 2
	TypeChassis    RecordType = 3
	TypeProcessor  RecordType = 4
	TypeCache      RecordType = 7
	TypeMemDevice  RecordType = 17
	TypeEndOfTable RecordType = 127
)

// rawRecord is one length-prefixed SMBIOS structure after its trailing
// string table has been split off.
type rawRecord struct {
	Type      RecordType
	Length    uint8
	Handle    uint16
	Formatted []byte
	Strings   []string
}

// Table is the fully decoded set of SMBIOS records this package understands.
type Table struct {
	BIOS       *BIOSInfo
	System     *SystemInfo
	Baseboards []BaseboardInfo
	Chassis    []ChassisInfo
	Processors []ProcessorInfo
	Caches     []CacheInfo
	MemDevices []MemoryDevice
}

// fetchStream returns the raw SMBIOS byte stream plus the entry point's
// major/minor version via smbios.Stream(); Decode falls back to the
// filesystem dmi/id entries on platforms without an exposed firmware table
// (most commonly inside unprivileged containers).
func fetchStream() (io.ReadCloser, int, int, error) {
	rc, ep, err := smbios.Stream()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("dmi: smbios stream: %w", err)
	}

	major, minor, _ := ep.Version()

	return rc, major, minor, nil
}

// Decode fetches and parses the SMBIOS table. When no firmware table is
// exposed it synthesizes a minimal Table from /sys/class/dmi/id/* single
// value files.
func Decode() (*Table, error) {
	rc, _, _, err := fetchStream()
	if err != nil {
		return decodeFromSysfs()
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("dmi: read smbios stream: %w", err)
	}

	records, err := splitRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("dmi: split records: %w", err)
	}

	return decodeRecords(records), nil
}

// splitRecords walks length-prefixed structures until a terminal type-127
// record, resolving each structure's trailing NUL-separated string table.
func splitRecords(buf []byte) ([]rawRecord, error) {
	var records []rawRecord

	off := 0

	for off < len(buf) {
		if off+4 > len(buf) {
			break
		}

		typ := RecordType(buf[off])
		length := buf[off+1]
		handle := uint16(buf[off+2]) | uint16(buf[off+3])<<8

		if int(length) > len(buf)-off {
			return records, fmt.Errorf("dmi: truncated record type %d at offset %d", typ, off)
		}

		formatted := buf[off : off+int(length)]
		cursor := off + int(length)

		var strs []string

		for {
			if cursor >= len(buf) {
				break
			}

			end := cursor
			for end < len(buf) && buf[end] != 0 {
				end++
			}

			if end == cursor {
				// empty string marks the end of the string table; the
				// terminator is a second NUL when at least one string was
				// present, or a lone double-NUL otherwise.
				cursor++
				if len(strs) == 0 && cursor < len(buf) && buf[cursor] == 0 {
					cursor++
				}
				break
			}

			strs = append(strs, string(buf[cursor:end]))
			cursor = end + 1
		}

		records = append(records, rawRecord{
			Type:      typ,
			Length:    length,
			Handle:    handle,
			Formatted: formatted,
			Strings:   strs,
		})

		if typ == TypeEndOfTable {
			break
		}

		off = cursor
	}

	return records, nil
}

// stringRef resolves a 1-based string reference (0 = absent) against a
// record's string table.
func stringRef(r rawRecord, ref uint8) string {
	if ref == 0 || int(ref) > len(r.Strings) {
		return ""
	}

	return r.Strings[ref-1]
}

func decodeRecords(records []rawRecord) *Table {
	t := &Table{}

	for _, r := range records {
		switch r.Type {
		case TypeBIOS:
			b := decodeBIOS(r)
			t.BIOS = &b
		case TypeSystem:
			s := decodeSystem(r)
			t.System = &s
		case TypeBaseboard:
			t.Baseboards = append(t.Baseboards, decodeBaseboard(r))
		case TypeChassis:
			t.Chassis = append(t.Chassis, decodeChassis(r))
		case TypeProcessor:
			t.Processors = append(t.Processors, decodeProcessor(r))
		case TypeCache:
			t.Caches = append(t.Caches, decodeCache(r))
		case TypeMemDevice:
			t.MemDevices = append(t.MemDevices, decodeMemDevice(r))
		}
	}

	return t
}

// decodeFromSysfs builds a minimal Table from the single-value files Linux
// exposes per record field at /sys/class/dmi/id/*, used when no raw SMBIOS
// stream is available.
func decodeFromSysfs() (*Table, error) {
	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join("/sys/class/dmi/id", name))
		if err != nil {
			return ""
		}

		s := string(b)
		for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
			s = s[:len(s)-1]
		}

		return s
	}

	bios := BIOSInfo{
		Vendor:  read("bios_vendor"),
		Version: read("bios_version"),
		Date:    read("bios_date"),
	}

	sys := SystemInfo{
		Manufacturer: read("sys_vendor"),
		Product:      read("product_name"),
		Version:      read("product_version"),
		Serial:       read("product_serial"),
	}

	board := BaseboardInfo{
		Vendor:  read("board_vendor"),
		Product: read("board_name"),
		Version: read("board_version"),
		Serial:  read("board_serial"),
	}

	return &Table{BIOS: &bios, System: &sys, Baseboards: []BaseboardInfo{board}}, nil
}
