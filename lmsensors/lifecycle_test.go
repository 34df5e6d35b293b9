package lmsensors

import (
	"errors"
	"strings"
	"testing"

	"github.com/openhwmon/gohwmon/sensors"
)

func TestInitRejectsConfig(t *testing.T) {
	t.Parallel()

	err := Init(strings.NewReader("chip \"nct6798-*\"\n"))
	if !errors.Is(err, sensors.ErrNotSupported) {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestCleanupWithoutInitIsSafe(t *testing.T) {
	t.Parallel()

	// Repeated Cleanup with no Init must be a no-op both times.
	Cleanup()
	Cleanup()

	if Default() != nil {
		t.Fatal("Default() should be nil before Init")
	}
}
