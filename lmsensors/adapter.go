package lmsensors

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/openhwmon/gohwmon/sensors"
)

// chipEntry is one probed chip flattened into the libsensors model: its
// published name plus the Feature/Subfeature lists computed once at Build
// time, since a chip's ChannelConfig is stable for its lifetime (sensors'
// SensorChip.Config doc comment).
type chipEntry struct {
	name        ChipName
	chip        sensors.SensorChip
	features    []Feature
	subfeatures []Subfeature
}

// Adapter is the libsensors-compatible view over a probed sensor tree,
// built once and then queried through the package-level Get*/Set*
// functions -- the Go shape of libsensors' process-global chip list
// populated by sensors_init.
type Adapter struct {
	chips []chipEntry
}

var trailingDigits = regexp.MustCompile(`[0-9]+$`)

// chipAddr derives a libsensors-style address from id.Name: the trailing
// digit run if there is one ("sio0" -> 0, "cpu1" -> 1), otherwise index,
// the chip's position in probe order. Real libsensors addresses are the
// chip's hardware bus address (an I2C address, an ISA I/O port); gohwmon's
// Identifier does not carry that, so this is a readable, documented stand-in
// rather than a genuine hardware address.
func chipAddr(id sensors.Identifier, index int) int {
	if m := trailingDigits.FindString(id.Name); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}

	return index
}

// Build flattens every chip in tree into an Adapter, in the tree's
// deterministic sorted-path visit order.
func Build(tree *sensors.TreeNode) *Adapter {
	var collected sensors.CollectChips
	tree.Accept(&collected)

	a := &Adapter{chips: make([]chipEntry, 0, len(collected.Chips))}

	for i, chip := range collected.Chips {
		id := chip.Identifier()

		name := ChipName{
			Prefix: string(id.Type),
			Bus:    id.Bus,
			BusNr:  0,
			Addr:   chipAddr(*id, i),
			Path:   fmt.Sprintf("%s/%s-%d", collected.Paths[i], id.Type, chipAddr(*id, i)),
		}

		features, subfeatures := buildFeatures(chip)

		a.chips = append(a.chips, chipEntry{
			name:        name,
			chip:        chip,
			features:    features,
			subfeatures: subfeatures,
		})
	}

	return a
}

// GetDetectedChips returns every chip name matching pattern, or every chip
// if pattern is nil.
func GetDetectedChips(a *Adapter, pattern *ChipName) []ChipName {
	var out []ChipName

	for _, entry := range a.chips {
		if pattern != nil && !entry.name.matches(*pattern) {
			continue
		}

		out = append(out, entry.name)
	}

	return out
}

func (a *Adapter) find(name ChipName) (*chipEntry, error) {
	for i := range a.chips {
		if a.chips[i].name.matches(name) {
			return &a.chips[i], nil
		}
	}

	return nil, fmt.Errorf("lmsensors: %w", ErrNoEntry)
}

// GetFeatures returns every feature published by the chip identified by
// name.
func GetFeatures(a *Adapter, name ChipName) ([]Feature, error) {
	entry, err := a.find(name)
	if err != nil {
		return nil, err
	}

	return entry.features, nil
}

// GetSubfeature returns the subfeature of feature carrying attr, if one was
// published for that channel's mask.
func GetSubfeature(a *Adapter, name ChipName, feature Feature, attr sensors.Attr) (*Subfeature, error) {
	entry, err := a.find(name)
	if err != nil {
		return nil, err
	}

	for i := range entry.subfeatures {
		sf := &entry.subfeatures[i]
		if sf.Mapping == feature.Number && sf.Attr == attr {
			return sf, nil
		}
	}

	return nil, fmt.Errorf("lmsensors: %w", ErrNoEntry)
}

// GetLabel returns the channel label for feature: the chip's own
// ChannelLabel, since a label subfeature reads through the same
// ReadString path every other string attribute does.
func GetLabel(a *Adapter, name ChipName, feature Feature) (string, error) {
	entry, err := a.find(name)
	if err != nil {
		return "", err
	}

	return entry.chip.ReadString(feature.Type, sensors.AttrLabel, feature.Channel)
}

// GetValue reads the subfeature numbered subfeatNr on the named chip. On
// any failure it returns NaN and a non-nil error, mirroring
// sensors_get_value's NaN-plus-EOPNOTSUPP contract.
func GetValue(a *Adapter, name ChipName, subfeatNr int) (float64, error) {
	entry, err := a.find(name)
	if err != nil {
		return math.NaN(), err
	}

	for _, sf := range entry.subfeatures {
		if sf.Number != subfeatNr {
			continue
		}

		if !sf.Readable {
			return math.NaN(), fmt.Errorf("lmsensors: %w", ErrAccessRead)
		}

		feature := entry.features[sf.Mapping]

		v, err := entry.chip.ReadFloat(feature.Type, sf.Attr, feature.Channel)
		if err != nil {
			return math.NaN(), fmt.Errorf("lmsensors: %w", ErrAccessRead)
		}

		return v, nil
	}

	return math.NaN(), fmt.Errorf("lmsensors: %w", ErrNoEntry)
}

// SetValue writes value to the subfeature numbered subfeatNr on the named
// chip. gohwmon only exposes a handful of writable attributes (PWM duty
// cycle, PWM enable); every read-only subfeature returns ErrAccessWrite.
func SetValue(a *Adapter, name ChipName, subfeatNr int, value float64) error {
	entry, err := a.find(name)
	if err != nil {
		return err
	}

	for _, sf := range entry.subfeatures {
		if sf.Number != subfeatNr {
			continue
		}

		if !sf.Writable {
			return fmt.Errorf("lmsensors: %w", ErrAccessWrite)
		}

		feature := entry.features[sf.Mapping]

		if err := entry.chip.Write(feature.Type, sf.Attr, feature.Channel, value); err != nil {
			return fmt.Errorf("lmsensors: %w", ErrAccessWrite)
		}

		return nil
	}

	return fmt.Errorf("lmsensors: %w", ErrNoEntry)
}
