package superio

import (
	"fmt"
	"io"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

// ChannelConfig names one exposed channel and the raw register-array index
// a driver's ReadSIO/WriteSIO should use to reach it; some boards multiplex
// or hide channels, so SourceIndex and the public channel number can differ.
type ChannelConfig struct {
	Label       string
	SourceIndex int
	Hidden      bool
}

// VoltageChannelConfig additionally carries the resistor-divider scaling a
// board applies to its raw ADC reading: value = raw + (raw-Vf)*Ri/Rf.
// Ri=0 leaves the raw reading unscaled.
type VoltageChannelConfig struct {
	ChannelConfig
	Ri, Rf, Vf float64
}

// ChannelsConfig is a board-specific channel layout for one chip instance,
// sourced from the boardcfg quirk table.
type ChannelsConfig struct {
	Voltage     []VoltageChannelConfig
	Temperature []ChannelConfig
	Fan         []ChannelConfig
	PWM         []ChannelConfig
	MutexName   string
}

// Driver is what a concrete chip package (ite/winbond/nuvoton/fintek)
// implements; BaseChip handles everything generic (tree identity, channel
// visibility, mutex-guarded reads) and calls back into Driver for the raw
// register access.
type Driver interface {
	ReadSIO(t sensors.SensorType, sourceIndex int) (float64, error)
	WriteSIO(t sensors.SensorType, sourceIndex int, value float64) error
}

// BaseChip implements sensors.SensorChip for every Super I/O family: it
// resolves board-specific channel configuration and serializes access
// through the shared ISA-bus mutex, delegating the actual register I/O to
// a Driver.
type BaseChip struct {
	chip     Chip
	address  uint16
	id       sensors.Identifier
	channels ChannelsConfig
	driver   Driver
	isaMutex *ring0.NamedMutex
}

// NewBaseChip builds the shared facade around a concrete Driver.
func NewBaseChip(chip Chip, address uint16, id sensors.Identifier, channels ChannelsConfig, driver Driver, isaMutex *ring0.NamedMutex) *BaseChip {
	return &BaseChip{chip: chip, address: address, id: id, channels: channels, driver: driver, isaMutex: isaMutex}
}

// Chip returns the detected Super I/O part this facade wraps.
func (c *BaseChip) Chip() Chip { return c.chip }

func (c *BaseChip) channelConfigs(t sensors.SensorType) []ChannelConfig {
	switch t {
	case sensors.Temperature:
		return c.channels.Temperature
	case sensors.Fan:
		return c.channels.Fan
	case sensors.PWM:
		return c.channels.PWM
	case sensors.Voltage:
		out := make([]ChannelConfig, len(c.channels.Voltage))
		for i, v := range c.channels.Voltage {
			out[i] = v.ChannelConfig
		}

		return out
	default:
		return nil
	}
}

// Config builds the ChannelConfig sensors.SensorChip exposes, one channel
// per board-config entry. Channels the board config marks Hidden are still
// listed here; IsVisible reports them as neither readable nor writable.
func (c *BaseChip) Config() sensors.ChannelConfig {
	cfg := sensors.ChannelConfig{Sensors: map[sensors.SensorType]sensors.TypeConfig{}}

	for _, t := range []sensors.SensorType{sensors.Voltage, sensors.Temperature, sensors.Fan, sensors.PWM} {
		chs := c.channelConfigs(t)
		if len(chs) == 0 {
			continue
		}

		attrs := make([]sensors.Mask, len(chs))
		for i := range chs {
			attrs[i] = sensors.InputMask(true)

			if t == sensors.PWM {
				attrs[i] = attrs[i].With(sensors.AttrEnable)
			}
		}

		cfg.Sensors[t] = sensors.TypeConfig{ChannelAttributes: attrs}
	}

	return cfg
}

// IsVisible reports whether channel is in range and not hidden by the board
// configuration; PWM channels are additionally writable.
func (c *BaseChip) IsVisible(t sensors.SensorType, attr sensors.Attr, channel int) (sensors.Visibility, error) {
	chs := c.channelConfigs(t)
	if channel < 0 || channel >= len(chs) {
		return sensors.Visibility{}, sensors.ErrChannelOutOfRange
	}

	if chs[channel].Hidden {
		return sensors.Visibility{}, nil
	}

	return sensors.Visibility{Readable: true, Writable: t == sensors.PWM}, nil
}

func (c *BaseChip) withISABus(fn func() error) error {
	if c.isaMutex == nil {
		return fn()
	}

	unlock, ok := c.isaMutex.TryLock(10 * time.Millisecond)
	if !ok {
		return sensors.ErrLockTimeout
	}
	defer unlock()

	return fn()
}

// ReadFloat reads channel through the ISA-bus mutex and, for voltage
// channels, applies the board's resistor-divider scaling to the raw value
// the driver returns.
func (c *BaseChip) ReadFloat(t sensors.SensorType, attr sensors.Attr, channel int) (float64, error) {
	chs := c.channelConfigs(t)
	if channel < 0 || channel >= len(chs) {
		return 0, sensors.ErrChannelOutOfRange
	}

	src := chs[channel].SourceIndex

	var result float64

	err := c.withISABus(func() error {
		v, err := c.driver.ReadSIO(t, src)
		if err != nil {
			return err
		}

		result = v

		return nil
	})
	if err != nil {
		return 0, err
	}

	if t == sensors.Voltage {
		vc := c.channels.Voltage[channel]
		if vc.Rf != 0 {
			result = result + (result-vc.Vf)*vc.Ri/vc.Rf
		}
	}

	return result, nil
}

// ReadString implements the AttrLabel path; Super I/O chips never expose a
// string-typed hardware register, so only the channel label is available.
func (c *BaseChip) ReadString(t sensors.SensorType, attr sensors.Attr, channel int) (string, error) {
	return c.ChannelLabel(t, channel), nil
}

// Write sets a PWM duty cycle; every other type is read-only.
func (c *BaseChip) Write(t sensors.SensorType, attr sensors.Attr, channel int, v float64) error {
	if t != sensors.PWM {
		return sensors.ErrNotSupported
	}

	chs := c.channelConfigs(t)
	if channel < 0 || channel >= len(chs) {
		return sensors.ErrChannelOutOfRange
	}

	src := chs[channel].SourceIndex

	return c.withISABus(func() error {
		return c.driver.WriteSIO(t, src, v)
	})
}

// Identifier returns the chip's tree identity.
func (c *BaseChip) Identifier() *sensors.Identifier { return &c.id }

// ChannelLabel returns the board-configured label, falling back to the
// generic "<type><index>" form.
func (c *BaseChip) ChannelLabel(t sensors.SensorType, channel int) string {
	chs := c.channelConfigs(t)
	if channel >= 0 && channel < len(chs) && chs[channel].Label != "" {
		return chs[channel].Label
	}

	return sensors.DefaultChannelLabel(t, channel)
}

// Close restores any hardware state the driver saved (PWM registers from
// the first write to each channel), holding the ISA-bus lock the way every
// other driver access does.
func (c *BaseChip) Close() error {
	closer, ok := c.driver.(io.Closer)
	if !ok {
		return nil
	}

	return c.withISABus(closer.Close)
}

// String renders a short diagnostic form, e.g. for log lines.
func (c *BaseChip) String() string {
	return fmt.Sprintf("%s@0x%04X", c.chip, c.address)
}
