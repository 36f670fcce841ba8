package timemath

import (
	"errors"
	"testing"
	"time"
)

func TestParseScheduleWindow(t *testing.T) {
	cases := []struct {
		spec       string
		start, end int
		wantErr    bool
	}{
		{"09:00-09:40", 540, 580, false},
		{"14.25-15.10 PM", 865, 910, false},
		{"08:15-09:00 am", 495, 540, false},
		{"garbage", 0, 0, true},
		{"09:00", 0, 0, true},
		{"ab:cd-ef:gh", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tc := range cases {
		w, err := ParseScheduleWindow(tc.spec)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseScheduleWindow(%q): expected error", tc.spec)
			} else if !errors.Is(err, ErrInvalidScheduleFormat) {
				t.Errorf("ParseScheduleWindow(%q): error %v is not ErrInvalidScheduleFormat", tc.spec, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseScheduleWindow(%q): %v", tc.spec, err)
			continue
		}
		if w.StartMinute != tc.start || w.EndMinute != tc.end {
			t.Errorf("ParseScheduleWindow(%q) = %+v, want start=%d end=%d", tc.spec, w, tc.start, tc.end)
		}
	}
}

func TestScheduledDurationDefaults(t *testing.T) {
	if d := ScheduledDurationMinutes("garbage"); d != DefaultDurationMinutes {
		t.Errorf("unparseable schedule: duration = %d, want %d", d, DefaultDurationMinutes)
	}
	if d := ScheduledDurationMinutes("09:00-09:40"); d != 40 {
		t.Errorf("valid schedule: duration = %d, want 40", d)
	}
	// End before start would feed a negative denominator into efficiency.
	if d := ScheduledDurationMinutes("23:50-00:10"); d != DefaultDurationMinutes {
		t.Errorf("inverted window: duration = %d, want %d", d, DefaultDurationMinutes)
	}
}

func TestLatenessBoundary(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	scheduled := 9 * 60 // 09:00

	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, time.UTC)
	}

	if d := Lateness(at(9, 5), scheduled); d != 5 {
		t.Errorf("delay = %d, want 5", d)
	}
	if IsLate(5) {
		t.Error("5 minute delay must not count as late")
	}
	if !IsLate(6) {
		t.Error("6 minute delay must count as late")
	}
	if d := Lateness(at(8, 55), scheduled); d != -5 {
		t.Errorf("early start delay = %d, want -5", d)
	}
}

func TestFormatDelay(t *testing.T) {
	cases := map[int]string{
		5:   "5min",
		59:  "59min",
		60:  "1h",
		75:  "1h 15min",
		120: "2h",
		150: "2h 30min",
	}
	for minutes, want := range cases {
		if got := FormatDelay(minutes); got != want {
			t.Errorf("FormatDelay(%d) = %q, want %q", minutes, got, want)
		}
	}
}

func TestEfficiency(t *testing.T) {
	if e := Efficiency(45, 40); e != 113 {
		t.Errorf("Efficiency(45, 40) = %d, want 113", e)
	}
	if e := Efficiency(18, 40); e != 45 {
		t.Errorf("Efficiency(18, 40) = %d, want 45", e)
	}
	if e := Efficiency(10, 0); e != 0 {
		t.Errorf("Efficiency with zero schedule = %d, want 0", e)
	}
}
