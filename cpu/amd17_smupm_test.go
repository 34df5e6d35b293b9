package cpu

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestClassifySMUCodeName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		family, model uint32
		want          smuCodeName
	}{
		{family: 0x17, model: 0x71, want: smuCodeNameMatisse},
		{family: 0x19, model: 0x21, want: smuCodeNameVermeer},
		{family: 0x19, model: 0x20, want: smuCodeNameVermeer},
		{family: 0x17, model: 0x18, want: smuCodeNameUnknown},
	}

	for _, c := range cases {
		if got := classifySMUCodeName(c.family, c.model); got != c.want {
			t.Errorf("classifySMUCodeName(%#x, %#x) = %v, want %v", c.family, c.model, got, c.want)
		}
	}
}

func TestNewAMD17SMUPMTableUnrecognizedCodename(t *testing.T) {
	t.Parallel()

	if _, ok := NewAMD17SMUPMTable(nil, 0x17, 0x18); ok {
		t.Fatal("expected no PM-table parser for an unrecognized codename")
	}
}

func TestNewAMD17SMUPMTableMatisseLayout(t *testing.T) {
	t.Parallel()

	smu, ok := NewAMD17SMUPMTable(nil, 0x17, 0x71)
	if !ok {
		t.Fatal("expected Matisse to be recognized")
	}

	if len(smu.layout.frequency) == 0 {
		t.Fatal("expected at least one frequency offset")
	}

	if smu.tableLen < 0x30+4 {
		t.Errorf("tableLen = %d, too small to cover the frequency offsets", smu.tableLen)
	}
}

func TestDecodePMTableFloat(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(1600))

	got := decodePMTableFloat(buf, pmTableOffset{offset: 4, scale: 1e6})
	want := 1600.0 * 1e6

	if got != want {
		t.Errorf("decodePMTableFloat = %v, want %v", got, want)
	}
}
