// Package timestamp converts between the float epoch-second timestamps carried on
// the wire and time.Time, and formats the second-precision identifiers used for
// movement records.
//
// Zero Value Semantics:
//   - An epoch value of 0 means "not set" and maps to the zero time.Time
//   - The zero time.Time maps back to 0
package timestamp

import (
	"math"
	"time"
)

// IDLayout is the DDMMYYYYhhmmss layout used for torpedo and engine identifiers.
const IDLayout = "02012006150405"

// Now returns the current time as float epoch seconds.
func Now() float64 {
	return ToEpoch(time.Now())
}

// ToEpoch converts a time.Time to float epoch seconds with microsecond precision.
func ToEpoch(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

// FromEpoch converts float epoch seconds to time.Time.
// Returns zero time for 0, negative, NaN or infinite input.
func FromEpoch(sec float64) time.Time {
	if sec <= 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}

// FormatID renders prefix followed by t in IDLayout, in loc (UTC when nil).
// Sub-second precision is discarded.
func FormatID(prefix string, t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return prefix + t.In(loc).Format(IDLayout)
}

// Between returns the duration between two epoch timestamps.
// Returns 0 if either timestamp is unset.
func Between(start, end float64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return FromEpoch(end).Sub(FromEpoch(start))
}
