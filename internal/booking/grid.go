package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError marks malformed input: doctor hours that cannot be parsed,
// bad dates, unknown statuses. The API layer maps it to a 4xx response.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// GridSlot is one interval produced by BuildDayGrid, before persistence.
type GridSlot struct {
	Start string
	End   string
}

// ParseClock parses a "HH:MM" 24-hour string into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, validationError("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, validationError("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, validationError("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, validationError("time %q out of range", s)
	}
	return hour, minute, nil
}

func formatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// addMinutes advances an hour/minute pair, carrying minute overflow into
// hours. The result is not wrapped at 24; callers compare against closing
// time before using it.
func addMinutes(hour, minute, delta int) (int, int) {
	minute += delta
	hour += minute / 60
	minute %= 60
	return hour, minute
}

// clockBefore reports whether a is strictly earlier than b.
func clockBefore(aHour, aMin, bHour, bMin int) bool {
	return aHour < bHour || (aHour == bHour && aMin < bMin)
}

// BuildDayGrid derives the fixed-width slot intervals for a single day from a
// doctor's opening and closing times. A trailing interval that would end past
// closing time is discarded rather than shortened. A non-positive duration or
// a closing time at or before opening yields an empty grid, not an error.
func BuildDayGrid(opening, closing string, slotMinutes int) ([]GridSlot, error) {
	openH, openM, err := ParseClock(opening)
	if err != nil {
		return nil, err
	}
	closeH, closeM, err := ParseClock(closing)
	if err != nil {
		return nil, err
	}

	if slotMinutes <= 0 {
		return nil, nil
	}

	var grid []GridSlot
	curH, curM := openH, openM
	for clockBefore(curH, curM, closeH, closeM) {
		endH, endM := addMinutes(curH, curM, slotMinutes)
		if clockBefore(closeH, closeM, endH, endM) {
			break
		}
		grid = append(grid, GridSlot{
			Start: formatClock(curH, curM),
			End:   formatClock(endH, endM),
		})
		curH, curM = endH, endM
	}

	return grid, nil
}

// NormalizeClock turns free-text time input ("9:30 AM", "09:30", "9:5") into
// a canonical "HH:MM" string. It strips letters and whitespace and zero-pads;
// it reports false when no sane time remains.
func NormalizeClock(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ':' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return "", false
	}

	parts := strings.SplitN(cleaned, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	minute := 0
	if len(parts) == 2 && parts[1] != "" {
		minute, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", false
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return formatClock(hour, minute), true
}

// DayStart strips the time of day, leaving midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the half-open [midnight, next midnight) window around t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := DayStart(t)
	return start, start.AddDate(0, 0, 1)
}
