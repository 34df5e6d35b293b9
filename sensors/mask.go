package sensors

// Attr is a bit position within a channel's attribute mask. Bits 0-2
// (enable, input, label) are shared by every SensorType; the bits above them
// hold the limit/alarm attributes valid for every SensorType, followed by
// blocks that carry type-specific meaning and are only valid alongside the
// SensorType they were defined for.
type Attr uint

const (
	AttrEnable Attr = iota
	AttrInput
	AttrLabel

	attrTypeSpecificBase
)

// Generic, type-independent attributes, valid for every SensorType.
const (
	AttrMin Attr = attrTypeSpecificBase + iota
	AttrMax
	AttrCrit
	AttrCritHyst
	AttrLowCrit
	AttrHyst
	AttrAlarm
	AttrMinAlarm
	AttrMaxAlarm
	AttrCritAlarm
	AttrAverage
	AttrLowest
	AttrHighest
	AttrRatedMin
	AttrRatedMax
	attrGenericEnd
)

// Temperature-specific attributes.
const (
	AttrTempType Attr = attrGenericEnd + iota
	AttrTempOffset
	AttrTempEmergency
	AttrTempEmergencyAlarm
	attrTempEnd
)

// Voltage-specific attributes.
const (
	AttrInLowest Attr = attrTempEnd + iota
	AttrInHighest
	attrInEnd
)

// Fan-specific attributes.
const (
	AttrFanDiv Attr = attrInEnd + iota
	AttrFanPulses
	AttrFanTarget
	AttrFanFault
	attrFanEnd
)

// PWM-specific attributes.
const (
	AttrPWMMode Attr = attrFanEnd + iota
	AttrPWMFreq
	AttrPWMEnable // maps to libsensors pwm_enable subfeature
	attrPWMEnd
)

// Power/current/energy-specific attributes. AttrAccuracy is bit 32, one past
// the highest bit a Mask holds, so Mask.With leaves it unset and Mask.Has
// never reports it.
const (
	AttrCapacity Attr = attrPWMEnd + iota
	AttrAccuracy
)

// Mask is the bitset published for one channel.
type Mask uint32

// Has reports whether bit b is set in m.
func (m Mask) Has(b Attr) bool { return m&(1<<b) != 0 }

// With returns m with bit b set.
func (m Mask) With(b Attr) Mask { return m | (1 << b) }

// Without returns m with bit b cleared.
func (m Mask) Without(b Attr) Mask { return m &^ (1 << b) }

// basicInputMask is the mask every readable, unlabeled channel carries at
// minimum: it is enabled and has an input value.
const basicInputMask Mask = (1 << AttrEnable) | (1 << AttrInput)

// InputMask returns the minimal mask for a readable channel of t, optionally
// carrying a label.
func InputMask(labeled bool) Mask {
	m := basicInputMask
	if labeled {
		m = m.With(AttrLabel)
	}

	return m
}
