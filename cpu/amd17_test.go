package cpu

import (
	"math"
	"testing"
)

func TestLookupTctlOffsetDistinguishesThreadripperFromDesktop(t *testing.T) {
	t.Parallel()

	const threadripperPackageType = 7

	if got := lookupTctlOffset(0x08, threadripperPackageType); got != -27 {
		t.Errorf("Threadripper model 0x08 offset = %v, want -27", got)
	}

	if got := lookupTctlOffset(0x08, 0); got != -20 {
		t.Errorf("desktop AM4 model 0x08 offset = %v, want -20", got)
	}

	if got := lookupTctlOffset(0xFF, 0); got != 0 {
		t.Errorf("unknown model offset = %v, want 0", got)
	}
}

func TestCCDInfoKnownFamilies(t *testing.T) {
	t.Parallel()

	if maxCount, offset, ok := ccdInfo(0x17); !ok || maxCount != 8 || offset != 0x154 {
		t.Errorf("ccdInfo(0x17) = (%d, %#x, %v), want (8, 0x154, true)", maxCount, offset, ok)
	}

	if _, _, ok := ccdInfo(0x15); ok {
		t.Error("ccdInfo(0x15) should report no known layout")
	}
}

func TestZenCCDTempAddr(t *testing.T) {
	t.Parallel()

	if got := zenCCDTempAddr(0x154, 0); got != f17hM01hThmTconCurTmp+0x154 {
		t.Errorf("zenCCDTempAddr(0x154, 0) = %#x, want %#x", got, f17hM01hThmTconCurTmp+0x154)
	}

	if got := zenCCDTempAddr(0x154, 3); got != f17hM01hThmTconCurTmp+0x154+12 {
		t.Errorf("zenCCDTempAddr(0x154, 3) = %#x, want %#x", got, f17hM01hThmTconCurTmp+0x154+12)
	}
}

func TestDecodeCCDTempInvalidBitIsNaN(t *testing.T) {
	t.Parallel()

	got, err := decodeCCDTemp(0)
	if err != nil {
		t.Fatalf("decodeCCDTemp(0) error = %v", err)
	}

	if !math.IsNaN(got) {
		t.Errorf("decodeCCDTemp(0) = %v, want NaN (valid bit clear)", got)
	}
}

func TestDecodeCCDTempValid(t *testing.T) {
	t.Parallel()

	raw := uint32(1<<zenCCDTempValidBit) | 2500

	got, err := decodeCCDTemp(raw)
	if err != nil {
		t.Fatalf("decodeCCDTemp error = %v", err)
	}

	want := (float64(2500)*125 - 305000) * 0.001

	if got != want {
		t.Errorf("decodeCCDTemp(%#x) = %v, want %v", raw, got, want)
	}
}

func TestDecodeCoreFrequency(t *testing.T) {
	t.Parallel()

	// curCpuFid=0x78 (120), curCpuDfsId=0x0A (10) -> 120/10*200MHz = 2.4GHz
	eax := uint32(0x78) | uint32(0x0A)<<8

	got := decodeCoreFrequency(eax)
	want := 120.0 / 10.0 * 200e6

	if got != want {
		t.Errorf("decodeCoreFrequency = %v, want %v", got, want)
	}
}

func TestDecodeCoreFrequencyZeroDivisorIsNaN(t *testing.T) {
	t.Parallel()

	if got := decodeCoreFrequency(0x78); !math.IsNaN(got) {
		t.Errorf("decodeCoreFrequency(dfsid=0) = %v, want NaN", got)
	}
}
