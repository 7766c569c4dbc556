package media

import (
	"strings"
	"testing"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Timecode
		wantErr bool
		errMsg  string
	}{
		{name: "hh:mm:ss", input: "01:30:45", want: 5445000},
		{name: "hh:mm:ss.mmm", input: "00:00:02.500", want: 2500},
		{name: "short fraction", input: "00:00:02.5", want: 2500},
		{name: "two digit fraction", input: "00:00:02.05", want: 2050},
		{name: "all zeros", input: "00:00:00", want: 0},
		{name: "large hours value", input: "120:00:00", want: 120 * 3600 * 1000},
		{name: "decimal seconds", input: "5.5", want: 5500},
		{name: "integer seconds", input: "90", want: 90000},
		{name: "sub-millisecond rounds", input: "1.0004", want: 1000},
		{
			name:    "minutes too high",
			input:   "01:60:00",
			wantErr: true,
			errMsg:  "minutes must be 0-59",
		},
		{
			name:    "seconds too high",
			input:   "01:30:60",
			wantErr: true,
			errMsg:  "seconds must be 0-59",
		},
		{
			name:    "negative seconds",
			input:   "-1",
			wantErr: true,
			errMsg:  "must not be negative",
		},
		{
			name:    "garbage",
			input:   "abc",
			wantErr: true,
			errMsg:  "invalid timecode format",
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
			errMsg:  "invalid timecode format",
		},
		{
			name:    "wrong separator",
			input:   "01-30-45",
			wantErr: true,
			errMsg:  "invalid timecode format",
		},
		{
			name:    "not a number",
			input:   "NaN",
			wantErr: true,
			errMsg:  "invalid timecode format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimecode(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTimecode(%q) expected error, got nil", tt.input)
					return
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ParseTimecode(%q) error = %v, want error containing %q", tt.input, err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("ParseTimecode(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("ParseTimecode(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestTimecode_String(t *testing.T) {
	tests := []struct {
		timecode Timecode
		want     string
	}{
		{0, "00:00:00.000"},
		{2000, "00:00:02.000"},
		{3500, "00:00:03.500"},
		{61001, "00:01:01.001"},
		{3723004, "01:02:03.004"},
		{25 * 3600 * 1000, "25:00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.timecode.String(); got != tt.want {
				t.Errorf("Timecode.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimecodeFromSeconds(t *testing.T) {
	tests := []struct {
		seconds float64
		want    Timecode
	}{
		{0, 0},
		{2.0, 2000},
		{5.5, 5500},
		{12.3456, 12346},
	}

	for _, tt := range tests {
		if got := TimecodeFromSeconds(tt.seconds); got != tt.want {
			t.Errorf("TimecodeFromSeconds(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestTimecode_BeforeAfter(t *testing.T) {
	earlier := Timecode(1000)
	later := Timecode(2000)

	if !earlier.Before(later) {
		t.Error("expected earlier to be before later")
	}
	if later.Before(earlier) {
		t.Error("expected later to not be before earlier")
	}
	if !later.After(earlier) {
		t.Error("expected later to be after earlier")
	}
	if later.After(later) {
		t.Error("expected timecode to not be after itself")
	}
}
