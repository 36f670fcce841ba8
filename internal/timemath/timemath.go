// Package timemath holds the pure schedule arithmetic: parsing "HH:MM-HH:MM"
// windows, lateness and duration math, and delay formatting.
package timemath

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDurationMinutes is assumed whenever a schedule string cannot be
// parsed, so malformed timetable data never blocks a class from starting.
const DefaultDurationMinutes = 40

// LateThresholdMinutes is the grace period before a start counts as late and
// a shortfall counts as a short class.
const LateThresholdMinutes = 5

// ErrInvalidScheduleFormat reports a schedule string that lacks a "-"
// separator or whose halves are not HH:MM pairs.
var ErrInvalidScheduleFormat = errors.New("invalid schedule format")

// Window is a same-day schedule window in minutes of day.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Duration returns the scheduled length of the window in minutes.
func (w Window) Duration() int {
	return w.EndMinute - w.StartMinute
}

var suffixRe = regexp.MustCompile(`(?i)\s*(AM|PM)\s*$`)

// normalize maps timetable variants like "14.25-15.10 PM" onto the canonical
// "14:25-15:10" form. The AM/PM suffix is stripped, not interpreted; all
// times are treated as a same-day 24-hour clock.
func normalize(spec string) string {
	spec = strings.ReplaceAll(spec, ".", ":")
	return suffixRe.ReplaceAllString(spec, "")
}

// ParseScheduleWindow parses a "HH:MM-HH:MM" schedule string.
func ParseScheduleWindow(spec string) (Window, error) {
	normalized := normalize(spec)
	start, end, ok := strings.Cut(normalized, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidScheduleFormat, spec)
	}
	startMin, err := minuteOfDay(start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidScheduleFormat, spec)
	}
	endMin, err := minuteOfDay(end)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidScheduleFormat, spec)
	}
	return Window{StartMinute: startMin, EndMinute: endMin}, nil
}

func minuteOfDay(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 {
		return 0, errors.New("missing minute component")
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, err
	}
	return hours*60 + minutes, nil
}

// ScheduledDurationMinutes returns the scheduled length of the window, or the
// 40-minute default when the string does not parse or the window is not
// positive (an end-before-start window would otherwise push a negative
// denominator into the efficiency math).
func ScheduledDurationMinutes(spec string) int {
	w, err := ParseScheduleWindow(spec)
	if err != nil || w.Duration() <= 0 {
		return DefaultDurationMinutes
	}
	return w.Duration()
}

// Lateness returns whole minutes between now and the scheduled start
// interpreted as occurring today, negative when the class starts early.
func Lateness(now time.Time, scheduledStartMinute int) int {
	scheduled := time.Date(now.Year(), now.Month(), now.Day(),
		scheduledStartMinute/60, scheduledStartMinute%60, 0, 0, now.Location())
	return int(math.Round(now.Sub(scheduled).Minutes()))
}

// IsLate reports whether a delay exceeds the grace period.
func IsLate(delayMinutes int) bool {
	return delayMinutes > LateThresholdMinutes
}

// ElapsedMinutes returns whole minutes between two instants, rounded.
func ElapsedMinutes(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Minutes()))
}

// Efficiency returns actual/scheduled as a rounded percentage, 0 when the
// scheduled duration is not positive.
func Efficiency(actual, scheduled int) int {
	if scheduled <= 0 {
		return 0
	}
	return int(math.Round(float64(actual) / float64(scheduled) * 100))
}

// FormatDelay renders a delay in minutes as "Nmin", "Hh" or "Hh Mmin".
func FormatDelay(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	hours := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dmin", hours, rem)
}
