package media

import (
	"fmt"
	"io"
	"math"
)

// CutRequest represents a request to extract a time range from an uploaded media file
type CutRequest struct {
	Source              io.Reader
	OriginalFileName    string
	DeclaredContentType string
	SizeBytes           int64
	StartSeconds        float64
	EndSeconds          float64
}

// Range returns the validated time range of the request
func (r *CutRequest) Range() (TimeRange, error) {
	return NewTimeRange(r.StartSeconds, r.EndSeconds)
}

// TimeRange is a validated [start, end) window expressed in whole milliseconds
type TimeRange struct {
	Start    Timecode
	Duration Timecode
}

// NewTimeRange validates start/end offsets in seconds and converts them to timecodes
func NewTimeRange(startSeconds, endSeconds float64) (TimeRange, error) {
	if math.IsNaN(startSeconds) || math.IsNaN(endSeconds) ||
		math.IsInf(startSeconds, 0) || math.IsInf(endSeconds, 0) {
		return TimeRange{}, fmt.Errorf("time range must be finite")
	}
	if startSeconds < 0 {
		return TimeRange{}, fmt.Errorf("start time %.3fs must not be negative", startSeconds)
	}
	if endSeconds <= startSeconds {
		return TimeRange{}, fmt.Errorf("end time %.3fs must be after start time %.3fs", endSeconds, startSeconds)
	}

	start := TimecodeFromSeconds(startSeconds)
	end := TimecodeFromSeconds(endSeconds)
	if !end.After(start) {
		return TimeRange{}, fmt.Errorf("time range %.3fs-%.3fs is shorter than one millisecond", startSeconds, endSeconds)
	}

	return TimeRange{
		Start:    start,
		Duration: Timecode(end - start),
	}, nil
}

// End returns the end offset of the range
func (r TimeRange) End() Timecode {
	return r.Start + r.Duration
}
