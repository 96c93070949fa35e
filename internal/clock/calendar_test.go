package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestCalendarKeys(t *testing.T) {
	cal := NewCalendar(time.UTC)
	now := date(2026, time.October, 12, 15)

	assert.Equal(t, "2026-10-12", cal.DayKey(now))
	assert.Equal(t, "2026-10", cal.MonthKey(now))
	assert.Equal(t, Monday, cal.WeekdayLabel(now))
	assert.Equal(t, Sunday, cal.WeekdayLabel(date(2026, time.October, 18, 0)))
	assert.Equal(t, "Mon", Monday.String())

	parsed, err := cal.ParseDayKey("2026-10-12")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(cal.StartOfDay(now)))
}

func TestWeekOfMonth(t *testing.T) {
	cal := NewCalendar(time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want int
	}{
		// October 2026 starts on a Thursday.
		{"first day", date(2026, time.October, 1, 12), 1},
		{"first sunday", date(2026, time.October, 4, 12), 1},
		{"first monday", date(2026, time.October, 5, 12), 2},
		{"last day", date(2026, time.October, 31, 12), 5},
		// June 2026 starts on a Monday.
		{"june first", date(2026, time.June, 1, 12), 1},
		{"june seventh", date(2026, time.June, 7, 12), 1},
		{"june eighth", date(2026, time.June, 8, 12), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.WeekOfMonth(tt.t))
		})
	}
}

func TestWeeksInMonth(t *testing.T) {
	cal := NewCalendar(time.UTC)

	assert.Equal(t, 5, cal.WeeksInMonth(date(2026, time.October, 10, 0)))
	assert.Equal(t, 5, cal.WeeksInMonth(date(2026, time.June, 10, 0)))
	// February 2027 starts on a Monday and has exactly four rows.
	assert.Equal(t, 4, cal.WeeksInMonth(date(2027, time.February, 10, 0)))
	// August 2026 starts on a Saturday and spans six rows.
	assert.Equal(t, 6, cal.WeeksInMonth(date(2026, time.August, 10, 0)))
}

func TestDaysBetween(t *testing.T) {
	cal := NewCalendar(time.UTC)
	start := date(2026, time.October, 12, 23)

	assert.Equal(t, 0, cal.DaysBetween(start, date(2026, time.October, 12, 1)))
	assert.Equal(t, 1, cal.DaysBetween(start, date(2026, time.October, 13, 0)))
	assert.Equal(t, 6, cal.DaysBetween(start, date(2026, time.October, 18, 8)))
	assert.Equal(t, -2, cal.DaysBetween(start, date(2026, time.October, 10, 8)))
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	cal := NewCalendar(loc)

	before := time.Date(2026, time.October, 24, 12, 0, 0, 0, loc)
	after := time.Date(2026, time.October, 26, 0, 30, 0, 0, loc)
	assert.Equal(t, 2, cal.DaysBetween(before, after))
	assert.Equal(t, time.Date(2026, time.October, 26, 0, 0, 0, 0, loc), cal.NextMidnight(time.Date(2026, time.October, 25, 9, 0, 0, 0, loc)))
}

func TestTestClockAdvance(t *testing.T) {
	c := NewTestClock(date(2026, time.October, 12, 9))
	c.Advance(time.Hour)
	assert.Equal(t, 10, c.Now().Hour())
	c.AdvanceDays(2)
	assert.Equal(t, 14, c.Now().Day())
}
