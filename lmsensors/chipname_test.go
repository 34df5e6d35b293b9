package lmsensors_test

import (
	"testing"

	"github.com/openhwmon/gohwmon/lmsensors"
	"github.com/openhwmon/gohwmon/sensors"
)

func TestParseChipNameWithoutBusNr(t *testing.T) {
	t.Parallel()

	cn, err := lmsensors.ParseChipName("nct6798-isa-0a20")
	if err != nil {
		t.Fatalf("ParseChipName: %v", err)
	}

	want := lmsensors.ChipName{Prefix: "nct6798", Bus: sensors.BusISA, BusNr: lmsensors.BusNrAny, Addr: 0x0a20}
	if cn.Prefix != want.Prefix || cn.Bus != want.Bus || cn.BusNr != want.BusNr || cn.Addr != want.Addr {
		t.Fatalf("ParseChipName() = %+v, want %+v", cn, want)
	}
}

func TestParseChipNameWithBusNr(t *testing.T) {
	t.Parallel()

	cn, err := lmsensors.ParseChipName("k10temp-i2c-1-4c")
	if err != nil {
		t.Fatalf("ParseChipName: %v", err)
	}

	if cn.Prefix != "k10temp" || cn.Bus != sensors.BusI2C || cn.BusNr != 1 || cn.Addr != 0x4c {
		t.Fatalf("ParseChipName() = %+v", cn)
	}
}

func TestParseChipNameWildcardAddr(t *testing.T) {
	t.Parallel()

	cn, err := lmsensors.ParseChipName("nct6798-isa-*")
	if err != nil {
		t.Fatalf("ParseChipName: %v", err)
	}

	if cn.Addr != lmsensors.AddrAny {
		t.Fatalf("Addr = %d, want AddrAny", cn.Addr)
	}
}

func TestParseChipNameRejectsShortName(t *testing.T) {
	t.Parallel()

	if _, err := lmsensors.ParseChipName("nct6798-isa"); err == nil {
		t.Fatal("expected an error for a name missing the address segment")
	}
}

func TestParseChipNameRejectsUnknownBus(t *testing.T) {
	t.Parallel()

	if _, err := lmsensors.ParseChipName("nct6798-usb-0a20"); err == nil {
		t.Fatal("expected an error for an unrecognized bus name")
	}
}

func TestSnprintfChipNameRoundTrip(t *testing.T) {
	t.Parallel()

	cn, err := lmsensors.ParseChipName("nct6798-isa-0a20")
	if err != nil {
		t.Fatalf("ParseChipName: %v", err)
	}

	cn.BusNr = 0

	out, err := lmsensors.SnprintfChipName(cn)
	if err != nil {
		t.Fatalf("SnprintfChipName: %v", err)
	}

	if out != "nct6798-isa-0a20" {
		t.Fatalf("SnprintfChipName() = %q, want %q", out, "nct6798-isa-0a20")
	}
}

func TestSnprintfChipNameRejectsWildcard(t *testing.T) {
	t.Parallel()

	cn := lmsensors.ChipName{Prefix: "nct6798", Bus: sensors.BusISA, Addr: lmsensors.AddrAny}

	if _, err := lmsensors.SnprintfChipName(cn); err != lmsensors.ErrWildcards {
		t.Fatalf("SnprintfChipName() err = %v, want ErrWildcards", err)
	}
}
