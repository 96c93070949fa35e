package clock

import (
	"fmt"
	"time"
)

const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// Weekday is a Monday-first weekday index (Mon=0 .. Sun=6).
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// String returns the short label ("Mon", "Tue", ...).
func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayLabels[w]
}

// MarshalText encodes the weekday by label.
func (w Weekday) MarshalText() ([]byte, error) {
	if w < Monday || w > Sunday {
		return nil, fmt.Errorf("invalid weekday %d", int(w))
	}
	return []byte(weekdayLabels[w]), nil
}

// UnmarshalText decodes a weekday label.
func (w *Weekday) UnmarshalText(text []byte) error {
	for i, label := range weekdayLabels {
		if label == string(text) {
			*w = Weekday(i)
			return nil
		}
	}
	return fmt.Errorf("unknown weekday %q", text)
}

// Calendar derives day, week and month partitions in a fixed location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil location means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// In converts t into the calendar's location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

// DayKey returns the locale-independent calendar-day identifier.
func (c Calendar) DayKey(t time.Time) string {
	return c.In(t).Format(dayKeyLayout)
}

// ParseDayKey parses a key produced by DayKey back into midnight of that day.
func (c Calendar) ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, c.Location())
}

// MonthKey returns the calendar-month identifier.
func (c Calendar) MonthKey(t time.Time) string {
	return c.In(t).Format(monthKeyLayout)
}

// WeekdayLabel returns the Monday-first weekday of t.
func (c Calendar) WeekdayLabel(t time.Time) Weekday {
	return mondayFirst(c.In(t).Weekday())
}

// StartOfDay returns local midnight of t's day.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = c.In(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Location())
}

// WeekOfMonth returns the 1-based Monday-first week row of t within its month.
func (c Calendar) WeekOfMonth(t time.Time) int {
	t = c.In(t)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.Location())
	offset := int(mondayFirst(first.Weekday()))
	return (t.Day()-1+offset)/7 + 1
}

// WeeksInMonth returns the number of week-of-month partitions of t's month.
func (c Calendar) WeeksInMonth(t time.Time) int {
	t = c.In(t)
	last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, c.Location())
	return c.WeekOfMonth(last)
}

// DaysBetween returns the number of calendar days from a's day to b's day.
// The result is negative when b is before a. DST transitions do not affect it.
func (c Calendar) DaysBetween(a, b time.Time) int {
	a, b = c.In(a), c.In(b)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// NextMidnight returns the start of the day after t.
func (c Calendar) NextMidnight(t time.Time) time.Time {
	start := c.StartOfDay(t)
	return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, c.Location())
}

func mondayFirst(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}
