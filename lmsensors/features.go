package lmsensors

import (
	"fmt"

	"github.com/openhwmon/gohwmon/sensors"
)

// Feature is one channel of one chip, numbered within that chip the way
// sensors_feature is. Name is the libsensors-style stem ("temp1", "pwm2")
// that every Subfeature of this feature extends with a suffix.
type Feature struct {
	Number  int
	Name    string
	Type    sensors.SensorType
	Channel int
}

// LibsensorsType returns the feature type libsensors groups this feature
// under. The adapter folds PWM into the fan family, mirroring the quirk in
// the producing side's feature table (pwm and fan both map to
// FEATURE_FAN) rather than exposing a separate pwm feature category.
func (f Feature) LibsensorsType() sensors.SensorType {
	if f.Type == sensors.PWM {
		return sensors.Fan
	}

	return f.Type
}

// Subfeature is one readable or writable value within a Feature --
// libsensors' sensors_subfeature, with Mapping pointing back at its
// Feature.Number.
type Subfeature struct {
	Number   int
	Name     string
	Attr     sensors.Attr
	Mapping  int
	Readable bool
	Writable bool
}

// genericSubfeatureSuffixes names the subfeature shared by every SensorType
// for a given generic Attr bit.
var genericSubfeatureSuffixes = map[sensors.Attr]string{
	sensors.AttrInput:     "input",
	sensors.AttrLabel:     "label",
	sensors.AttrMin:       "min",
	sensors.AttrMax:       "max",
	sensors.AttrCrit:      "crit",
	sensors.AttrCritHyst:  "crit_hyst",
	sensors.AttrLowCrit:   "lcrit",
	sensors.AttrHyst:      "hyst",
	sensors.AttrAlarm:     "alarm",
	sensors.AttrMinAlarm:  "min_alarm",
	sensors.AttrMaxAlarm:  "max_alarm",
	sensors.AttrCritAlarm: "crit_alarm",
	sensors.AttrAverage:   "average",
	sensors.AttrLowest:    "lowest",
	sensors.AttrHighest:   "highest",
	sensors.AttrRatedMin:  "rated_min",
	sensors.AttrRatedMax:  "rated_max",
}

// typeSubfeatureSuffixes overrides or extends the generic table for the
// Attr bits that only make sense on one SensorType.
var typeSubfeatureSuffixes = map[sensors.SensorType]map[sensors.Attr]string{
	sensors.Temperature: {
		sensors.AttrTempType:           "type",
		sensors.AttrTempOffset:         "offset",
		sensors.AttrTempEmergency:      "emergency",
		sensors.AttrTempEmergencyAlarm: "emergency_alarm",
	},
	sensors.Voltage: {
		sensors.AttrInLowest:  "lowest",
		sensors.AttrInHighest: "highest",
	},
	sensors.Fan: {
		sensors.AttrFanDiv:    "div",
		sensors.AttrFanPulses: "pulse",
		sensors.AttrFanTarget: "target",
		sensors.AttrFanFault:  "fault",
	},
	sensors.PWM: {
		sensors.AttrPWMMode:   "mode",
		sensors.AttrPWMFreq:   "freq",
		sensors.AttrPWMEnable: "enable",
	},
	sensors.Power: {
		sensors.AttrCapacity: "cap",
		sensors.AttrAccuracy: "accuracy",
	},
	sensors.Current: {
		sensors.AttrAccuracy: "accuracy",
	},
	sensors.Energy: {
		sensors.AttrCapacity: "cap",
	},
}

// lastKnownAttr bounds the Attr scan: every defined bit through
// AttrAccuracy is a candidate, nothing past it is known to this adapter.
// AttrAccuracy itself lies outside the 32-bit Mask, so no "accuracy"
// subfeature is ever built.
const lastKnownAttr = sensors.AttrAccuracy

// subfeatureSuffix returns the libsensors-style suffix for (t, attr), and
// whether one is defined at all -- an attribute bit with no entry here
// (e.g. AttrEnable on a non-Chip type) is not a libsensors subfeature.
func subfeatureSuffix(t sensors.SensorType, attr sensors.Attr) (string, bool) {
	if byType, ok := typeSubfeatureSuffixes[t]; ok {
		if suffix, ok := byType[attr]; ok {
			return suffix, true
		}
	}

	suffix, ok := genericSubfeatureSuffixes[attr]

	return suffix, ok
}

// buildFeatures flattens chip's channel config into the Feature/Subfeature
// lists the adapter publishes for it, numbering both within the chip.
func buildFeatures(chip sensors.SensorChip) ([]Feature, []Subfeature) {
	cfg := chip.Config()

	var (
		features    []Feature
		subfeatures []Subfeature
		featureNr   int
		subfeatNr   int
	)

	for _, t := range orderedSensorTypes(cfg) {
		typeCfg := cfg.Sensors[t]

		for channel, mask := range typeCfg.ChannelAttributes {
			f := Feature{
				Number:  featureNr,
				Name:    fmt.Sprintf("%s%d", t.String(), channel+1),
				Type:    t,
				Channel: channel,
			}
			features = append(features, f)
			featureNr++

			for attr := sensors.Attr(0); attr <= lastKnownAttr; attr++ {
				if !mask.Has(attr) {
					continue
				}

				suffix, ok := subfeatureSuffix(t, attr)
				if !ok {
					continue
				}

				vis, _ := chip.IsVisible(t, attr, channel)

				subfeatures = append(subfeatures, Subfeature{
					Number:   subfeatNr,
					Name:     fmt.Sprintf("%s_%s", f.Name, suffix),
					Attr:     attr,
					Mapping:  f.Number,
					Readable: vis.Readable,
					Writable: vis.Writable,
				})
				subfeatNr++
			}
		}
	}

	return features, subfeatures
}

// orderedSensorTypes returns cfg's populated SensorTypes in a fixed,
// deterministic order so feature numbering is stable across calls.
func orderedSensorTypes(cfg sensors.ChannelConfig) []sensors.SensorType {
	all := []sensors.SensorType{
		sensors.Voltage, sensors.Temperature, sensors.Current, sensors.Power,
		sensors.Energy, sensors.Humidity, sensors.Fan, sensors.PWM,
		sensors.Intrusion, sensors.Data, sensors.DataRate, sensors.Duration,
		sensors.Frequency, sensors.Flow, sensors.Load, sensors.Raw,
		sensors.Fraction, sensors.Chip,
	}

	var present []sensors.SensorType

	for _, t := range all {
		if _, ok := cfg.Sensors[t]; ok {
			present = append(present, t)
		}
	}

	return present
}
