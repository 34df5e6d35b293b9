// Package lmsensors is a pure-Go re-implementation of the libsensors public
// surface, flattening a sensors.TreeNode into the chip/feature/subfeature
// model real libsensors clients expect: sensors_parse_chip_name,
// sensors_get_detected_chips, sensors_get_value, and friends. gohwmon is the
// provider here, not a consumer of an installed libsensors.so, so there is
// no cgo anywhere in this package.
package lmsensors

// Error is the libsensors errno-style return code. Negative values mirror
// the C library's convention of returning -SENSORS_ERR_* from functions
// that would otherwise return a count or void.
type Error int

// Error codes, fixed message table grounded on libsensors' sensors_strerror.
const (
	ErrWildcards Error = -(iota + 1)
	ErrNoEntry
	ErrAccessRead
	ErrKernel
	ErrDivZero
	ErrChipName
	ErrBusName
	ErrParse
	ErrAccessWrite
	ErrIO
	ErrRecursion
)

var errorMessages = map[Error]string{
	ErrWildcards:   "Wildcard not allowed",
	ErrNoEntry:     "No such subfeature known",
	ErrAccessRead:  "Can't read",
	ErrKernel:      "Kernel interface error",
	ErrDivZero:     "Divide by zero",
	ErrChipName:    "Can't parse chip name",
	ErrBusName:     "Can't parse bus name",
	ErrParse:       "General parse error",
	ErrAccessWrite: "Can't write",
	ErrIO:          "I/O error",
	ErrRecursion:   "Evaluation recurses too deep",
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}

	return "Unknown error"
}

// Strerror returns the fixed message for errno, "Unknown error" for any
// value outside the table -- the C-ABI-shaped counterpart to Error.Error
// for callers that only have the numeric code.
func Strerror(errno int) string {
	return Error(errno).Error()
}
