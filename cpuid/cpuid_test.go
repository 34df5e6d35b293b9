package cpuid

import "testing"

func TestNextLog2(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in   uint32
		want uint
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{8, 3},
		{16, 4},
		{32, 5},
		{64, 6},
	} {
		if got := nextLog2(tt.in); got != tt.want {
			t.Errorf("nextLog2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCoresPerDieMaskWidth(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		maxCoresPerDie uint32
		wantWidth      uint
		wantOK         bool
	}{
		{0x04, 4, true},  // Ryzen: nextLog2(16)
		{0x05, 5, true},  // Threadripper: nextLog2(32)
		{0x06, 6, true},  // Epyc: nextLog2(64)
		{0x07, 0, false}, // unknown -> caller keeps its own estimate
	} {
		w, ok := coresPerDieMaskWidth(tt.maxCoresPerDie)
		if ok != tt.wantOK || (ok && w != tt.wantWidth) {
			t.Errorf("coresPerDieMaskWidth(%#x) = (%d,%v), want (%d,%v)",
				tt.maxCoresPerDie, w, ok, tt.wantWidth, tt.wantOK)
		}
	}
}

func TestVendorString(t *testing.T) {
	t.Parallel()

	// "GenuineIntel" packed as CPUID(0) returns it: EBX="Genu" EDX="ineI" ECX="ntel".
	ebx := uint32('G') | uint32('e')<<8 | uint32('n')<<16 | uint32('u')<<24
	edx := uint32('i') | uint32('n')<<8 | uint32('e')<<16 | uint32('I')<<24
	ecx := uint32('n') | uint32('t')<<8 | uint32('e')<<16 | uint32('l')<<24

	if got := vendorString(ebx, ecx, edx); got != "GenuineIntel" {
		t.Fatalf("vendorString = %q, want GenuineIntel", got)
	}
}

func TestBrandStringStopsAtFirstZeroRegister(t *testing.T) {
	t.Parallel()

	leaves := make([]Leaf, 5) // every leaf zero-valued -> empty brand

	if got := brandString(leaves); got != "" {
		t.Fatalf("brandString = %q, want empty", got)
	}
}

func TestDataSafeOutOfRange(t *testing.T) {
	t.Parallel()

	d := &Data{Leaves: []Leaf{{Eax: 1}}}

	if got := d.Safe(5); got != (Leaf{}) {
		t.Fatalf("Safe(5) = %+v, want zero value", got)
	}

	if got := d.Safe(0); got.Eax != 1 {
		t.Fatalf("Safe(0).Eax = %d, want 1", got.Eax)
	}
}

func TestGetRejectsOutOfRangeThread(t *testing.T) {
	t.Parallel()

	if _, err := Get(maxThread + 1); err == nil {
		t.Fatal("expected error for thread > 63")
	}

	if _, err := Get(-1); err == nil {
		t.Fatal("expected error for negative thread")
	}
}
