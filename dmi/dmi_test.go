package dmi

import (
	"testing"
	"time"
)

func buildRecord(typ RecordType, formatted []byte, strs ...string) rawRecord {
	return rawRecord{Type: typ, Length: uint8(len(formatted)), Formatted: formatted, Strings: strs}
}

func TestStringRefResolvesOneBased(t *testing.T) {
	t.Parallel()

	r := buildRecord(TypeBIOS, nil, "Acme", "v1.0")

	if got := stringRef(r, 1); got != "Acme" {
		t.Errorf("stringRef(1) = %q, want Acme", got)
	}

	if got := stringRef(r, 2); got != "v1.0" {
		t.Errorf("stringRef(2) = %q, want v1.0", got)
	}

	if got := stringRef(r, 0); got != "" {
		t.Errorf("stringRef(0) = %q, want empty", got)
	}

	if got := stringRef(r, 3); got != "" {
		t.Errorf("stringRef(3) = %q, want empty (out of range)", got)
	}
}

func TestSplitRecordsWalksUntilEndOfTable(t *testing.T) {
	t.Parallel()

	buf := []byte{
		0x00, 0x04, 0x00, 0x00, // type 0, length 4, handle 0
		'V', 'e', 'n', 'd', 'o', 'r', 0x00, 0x00, // string "Vendor", then double NUL
		0x7F, 0x04, 0x01, 0x00, // end-of-table record
		0x00, 0x00,
	}

	records, err := splitRecords(buf)
	if err != nil {
		t.Fatalf("splitRecords: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	if records[0].Strings[0] != "Vendor" {
		t.Errorf("record[0].Strings[0] = %q, want Vendor", records[0].Strings[0])
	}

	if records[1].Type != TypeEndOfTable {
		t.Errorf("records[1].Type = %d, want TypeEndOfTable", records[1].Type)
	}
}

func TestDecodeBIOS(t *testing.T) {
	t.Parallel()

	formatted := make([]byte, 0x1A)
	formatted[0x04] = 1 // vendor string ref
	formatted[0x05] = 2 // version string ref
	formatted[0x08] = 3 // date string ref
	formatted[0x09] = 3 // (3+1)*64KB ROM

	r := buildRecord(TypeBIOS, formatted, "American Megatrends", "F.10", "03/14/2023")

	b := decodeBIOS(r)

	if b.Vendor != "American Megatrends" || b.Version != "F.10" || b.Date != "03/14/2023" {
		t.Fatalf("decodeBIOS = %+v", b)
	}

	if b.ROMSizeKB != 256 {
		t.Errorf("ROMSizeKB = %d, want 256", b.ROMSizeKB)
	}
}

func TestDecodeChassisSplitsLockBit(t *testing.T) {
	t.Parallel()

	formatted := make([]byte, 0x16)
	formatted[0x05] = 0x80 | byte(ChassisTypeTower)

	r := buildRecord(TypeChassis, formatted)

	c := decodeChassis(r)

	if !c.Locked {
		t.Error("expected Locked = true")
	}

	if c.Type != ChassisTypeTower {
		t.Errorf("Type = %v, want ChassisTypeTower", c.Type)
	}
}

func TestParseBIOSDateSwapsOutOfRangeMonth(t *testing.T) {
	t.Parallel()

	got, err := ParseBIOSDate("14/03/2023")
	if err != nil {
		t.Fatalf("ParseBIOSDate: %v", err)
	}

	want := time.Date(2023, time.March, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseBIOSDate = %v, want %v", got, want)
	}
}

func TestParseBIOSDateTwoDigitYear(t *testing.T) {
	t.Parallel()

	got, err := ParseBIOSDate("06/01/98")
	if err != nil {
		t.Fatalf("ParseBIOSDate: %v", err)
	}

	if got.Year() != 1998 {
		t.Errorf("Year = %d, want 1998", got.Year())
	}
}

func TestParseBIOSDateMalformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseBIOSDate("not-a-date"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestDecodeMemDeviceKBGranularity(t *testing.T) {
	t.Parallel()

	formatted := make([]byte, 0x22)
	// bit 15 set + 0x0004 => 4KB, exercising the rarely-seen KB path.
	formatted[0x0C] = 0x04
	formatted[0x0D] = 0x80

	r := buildRecord(TypeMemDevice, formatted)

	m := decodeMemDevice(r)

	if m.SizeMB != 4 {
		t.Errorf("SizeMB = %d, want 4 (raw value interpreted as KB-granularity size field)", m.SizeMB)
	}
}

func TestCacheLevelDecodesLowThreeBits(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		config uint16
		want   int
	}{
		{0x0180, 1},
		{0x0181, 2},
		{0x0182, 3},
	} {
		if got := cacheLevel(tt.config); got != tt.want {
			t.Errorf("cacheLevel(%#x) = %d, want %d", tt.config, got, tt.want)
		}
	}
}
