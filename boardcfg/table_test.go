package boardcfg

import (
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
	"github.com/openhwmon/gohwmon/superio"
)

func TestLookupMatchesManufacturerAndChip(t *testing.T) {
	t.Parallel()

	cfg, ok := Lookup(Board{Manufacturer: ASRock}, superio.ChipIT8720F)
	if !ok {
		t.Fatal("expected a match for ASRock/IT8720F")
	}

	if len(cfg.Voltage) == 0 {
		t.Fatal("expected voltage channels")
	}

	if cfg.Voltage[0].Label != "Vcore" {
		t.Errorf("Voltage[0].Label = %q, want Vcore", cfg.Voltage[0].Label)
	}
}

func TestLookupMatchesASUSCrosshairNCT6798D(t *testing.T) {
	t.Parallel()

	cfg, ok := Lookup(Board{Manufacturer: ASUS, Model: "ROG CROSSHAIR VIII HERO"}, superio.ChipNCT6798D)
	if !ok {
		t.Fatal("expected a match for ASUS ROG CROSSHAIR VIII HERO/NCT6798D")
	}

	if len(cfg.Voltage) != 15 || len(cfg.Temperature) != 24 || len(cfg.Fan) != 7 || len(cfg.PWM) != 7 {
		t.Fatalf("channel counts = %d/%d/%d/%d, want 15/24/7/7",
			len(cfg.Voltage), len(cfg.Temperature), len(cfg.Fan), len(cfg.PWM))
	}

	if cfg.Voltage[0].Label != "Vcore" {
		t.Errorf("Voltage[0].Label = %q, want Vcore", cfg.Voltage[0].Label)
	}

	if cfg.Voltage[2].Label != "AVCC" || cfg.Voltage[2].Ri != 34 || cfg.Voltage[2].Rf != 34 {
		t.Errorf("Voltage[2] = %+v, want AVCC with 34/34 divider", cfg.Voltage[2])
	}

	if !cfg.Voltage[1].Hidden {
		t.Error("Voltage[1] should be hidden")
	}

	if cfg.Temperature[1].Label != "CPU" || cfg.Temperature[1].SourceIndex != 1 {
		t.Errorf("Temperature[1] = %+v, want CPU at source 1", cfg.Temperature[1])
	}

	if cfg.Fan[6].Label != "AIO Pump" {
		t.Errorf("Fan[6].Label = %q, want AIO Pump", cfg.Fan[6].Label)
	}
}

func TestLookupMatchesGigabyteH61MIT8728F(t *testing.T) {
	t.Parallel()

	cfg, ok := Lookup(Board{Manufacturer: Gigabyte, Model: "H61M-DS2 REV 1.2"}, superio.ChipIT8728F)
	if !ok {
		t.Fatal("expected a match for Gigabyte H61M-DS2 REV 1.2/IT8728F")
	}

	if cfg.Voltage[0].Label != "VTT" || cfg.Voltage[0].SourceIndex != 0 {
		t.Errorf("Voltage[0] = %+v, want VTT at source 0", cfg.Voltage[0])
	}

	if cfg.Voltage[1].Label != "+12V" || cfg.Voltage[1].SourceIndex != 2 ||
		cfg.Voltage[1].Ri != 30.9 || cfg.Voltage[1].Rf != 10 {
		t.Errorf("Voltage[1] = %+v, want +12V at source 2 with 30.9/10 divider", cfg.Voltage[1])
	}

	if cfg.Voltage[2].Label != "Vcore" || cfg.Voltage[2].SourceIndex != 5 {
		t.Errorf("Voltage[2] = %+v, want Vcore at source 5", cfg.Voltage[2])
	}
}

func TestLookupMatchesMSIB450APro(t *testing.T) {
	t.Parallel()

	cfg, ok := Lookup(Board{Manufacturer: MSI, Model: "B450-A PRO (MS-7B86)"}, superio.ChipNCT6797D)
	if !ok {
		t.Fatal("expected a match for MSI B450-A PRO/NCT6797D")
	}

	if cfg.Voltage[4].Label != "+12V" || cfg.Voltage[4].SourceIndex != 4 ||
		cfg.Voltage[4].Ri != 11 || cfg.Voltage[4].Rf != 1 {
		t.Errorf("Voltage[4] = %+v, want +12V at source 4 with 11/1 divider", cfg.Voltage[4])
	}

	if cfg.Temperature[0].Label != "CPU" || cfg.Temperature[0].SourceIndex != 1 {
		t.Errorf("Temperature[0] = %+v, want CPU at source 1", cfg.Temperature[0])
	}
}

func TestLookupNoMatchFallsThrough(t *testing.T) {
	t.Parallel()

	if _, ok := Lookup(Board{Manufacturer: Unknown}, superio.ChipIT8720F); ok {
		t.Fatal("expected no match for unknown board")
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	t.Parallel()

	counts := map[sensors.SensorType]int{sensors.Voltage: 2, sensors.Fan: 1}

	cfg := Resolve(Board{Manufacturer: Unknown}, superio.ChipUnknown, counts)

	if len(cfg.Voltage) != 2 || len(cfg.Fan) != 1 {
		t.Fatalf("Default produced %+v", cfg)
	}

	if cfg.Voltage[0].Label != "Voltage #1" {
		t.Errorf("Voltage[0].Label = %q, want 'Voltage #1'", cfg.Voltage[0].Label)
	}
}
