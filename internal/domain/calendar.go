package domain

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// CalendarDay is a date with no time component, always in UTC, formatted as YYYY-MM-DD.
// The layout sorts lexicographically in chronological order.
type CalendarDay string

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) CalendarDay {
	return CalendarDay(t.UTC().Format(DayLayout))
}

// ParseCalendarDay validates s as a YYYY-MM-DD date.
func ParseCalendarDay(s string) (CalendarDay, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid calendar day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Time returns midnight UTC of the day. The zero time is returned for malformed values.
func (d CalendarDay) Time() time.Time {
	t, err := time.ParseInLocation(DayLayout, string(d), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts the day by n calendar days.
func (d CalendarDay) AddDays(n int) CalendarDay {
	return DayOf(d.Time().AddDate(0, 0, n))
}

func (d CalendarDay) Before(o CalendarDay) bool { return d < o }

func (d CalendarDay) String() string { return string(d) }

// Enumerate returns every calendar day from start to end, both inclusive, in ascending order.
// An inverted or unparseable range yields an empty slice.
func Enumerate(start, end CalendarDay) []CalendarDay {
	from, err := ParseCalendarDay(string(start))
	if err != nil {
		return []CalendarDay{}
	}
	to, err := ParseCalendarDay(string(end))
	if err != nil {
		return []CalendarDay{}
	}
	if to.Before(from) {
		return []CalendarDay{}
	}

	first, last := from.Time(), to.Time()
	days := make([]CalendarDay, 0, int(last.Sub(first).Hours()/24)+1)

	// UTC has no DST, so AddDate always lands on the next midnight
	for t := first; !t.After(last); t = t.AddDate(0, 0, 1) {
		days = append(days, DayOf(t))
	}

	return days
}
