package dmi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseBIOSDate parses the BIOS release date string. Firmware vendors
// disagree on field order and century, so this is a tolerant reader
// rather than a strict time.Parse:
//
//   - expected layout is MM/DD/YYYY;
//   - if the parsed "month" exceeds 12, month and day are swapped (some
//     vendors emit DD/MM/YYYY);
//   - a two-digit year is treated as 19YY, matching BIOS dates that predate
//     Y2K-safe firmware.
func ParseBIOSDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("dmi: malformed bios date %q", s)
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("dmi: bios date %q: %w", s, err)
	}

	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("dmi: bios date %q: %w", s, err)
	}

	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("dmi: bios date %q: %w", s, err)
	}

	if month > 12 {
		month, day = day, month
	}

	if year < 100 {
		year += 1900
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("dmi: bios date %q out of range after normalization", s)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
