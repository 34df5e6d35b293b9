package sensors

import (
	"errors"
	"log"
	"os"
)

// ErrNotSupported is returned by Read/Write/IsVisible when the requested
// (type, attr, channel) tuple has no implementation on a chip. It is never
// retried and never represents a transient hardware condition.
var ErrNotSupported = errors.New("sensors: attribute not supported on this channel")

// ErrChannelOutOfRange is returned when channel is outside
// [0, len(ChannelAttributes)) for the requested SensorType.
var ErrChannelOutOfRange = errors.New("sensors: channel index out of range")

// ErrLockTimeout is returned when a shared-bus lock (ISA/PCI/SMBus/EC)
// could not be acquired within its allotted window. Callers treat it as a
// transient hardware failure: the cached value (if any) is kept, NaN
// otherwise.
var ErrLockTimeout = errors.New("sensors: bus lock timeout")

// ErrTransactionFailed marks a failed hardware transaction (EC, HID, SMU)
// that the caller should surface as NaN this cycle, retried next cycle.
var ErrTransactionFailed = errors.New("sensors: hardware transaction failed")

// Logger is the package-wide logger for non-fatal hardware anomalies
// (superio vendor-id mismatches, EC fail-fast engagement, HID parse
// failures). Never used for per-read-cycle noise.
var Logger = log.New(os.Stderr, "gohwmon: ", log.LstdFlags)
