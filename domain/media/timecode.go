package media

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Timecode is a media offset in whole milliseconds
type Timecode int64

// timecodeRegex matches HH:MM:SS with optional .mmm fraction
var timecodeRegex = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})(?:\.(\d{1,3}))?$`)

// TimecodeFromSeconds converts fractional seconds to a timecode, rounding to the nearest millisecond
func TimecodeFromSeconds(seconds float64) Timecode {
	return Timecode(math.Round(seconds * 1000))
}

// ParseTimecode parses either decimal seconds ("2.5") or HH:MM:SS[.mmm] ("00:00:02.500")
func ParseTimecode(s string) (Timecode, error) {
	if matches := timecodeRegex.FindStringSubmatch(s); matches != nil {
		hours, _ := strconv.ParseInt(matches[1], 10, 64)
		minutes, _ := strconv.ParseInt(matches[2], 10, 64)
		seconds, _ := strconv.ParseInt(matches[3], 10, 64)

		if minutes > 59 {
			return 0, fmt.Errorf("invalid timecode %q: minutes must be 0-59", s)
		}
		if seconds > 59 {
			return 0, fmt.Errorf("invalid timecode %q: seconds must be 0-59", s)
		}

		var millis int64
		if frac := matches[4]; frac != "" {
			// ".5" means 500ms, ".05" means 50ms
			for len(frac) < 3 {
				frac += "0"
			}
			millis, _ = strconv.ParseInt(frac, 10, 64)
		}

		return Timecode(((hours*60+minutes)*60+seconds)*1000 + millis), nil
	}

	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("invalid timecode format %q: expected seconds or HH:MM:SS[.mmm]", s)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("invalid timecode %q: must not be negative", s)
	}
	return TimecodeFromSeconds(seconds), nil
}

// String returns the timecode in HH:MM:SS.mmm format; hours do not wrap at 24
func (t Timecode) String() string {
	ms := int64(t)
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, hours, minutes, seconds, ms)
}

// Seconds returns the timecode as fractional seconds
func (t Timecode) Seconds() float64 {
	return float64(t) / 1000
}

// Before returns true if t is before other
func (t Timecode) Before(other Timecode) bool {
	return t < other
}

// After returns true if t is after other
func (t Timecode) After(other Timecode) bool {
	return t > other
}
