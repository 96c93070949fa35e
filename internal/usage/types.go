package usage

import (
	"fmt"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
)

// DayBucket is one calendar day's accumulated usage
type DayBucket struct {
	Date    string                  `json:"date"`
	Weekday clock.Weekday           `json:"weekday"`
	Seconds catalog.CategorySeconds `json:"seconds"`
}

// Total returns the day's seconds across all categories
func (b DayBucket) Total() int64 {
	return b.Seconds.Total()
}

// Formatted renders the day's total for display
func (b DayBucket) Formatted() string {
	return FormattedTime(b.Total())
}

// MonthBucket is one week-of-month's accumulated usage
type MonthBucket struct {
	Week    int                     `json:"week"`
	Seconds catalog.CategorySeconds `json:"seconds"`
}

// Total returns the week's seconds across all categories
func (b MonthBucket) Total() int64 {
	return b.Seconds.Total()
}

// FormattedTime renders seconds as "45s", "12m" or "1h 0m"
func FormattedTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

// percentChange returns (current-previous)/previous*100, or 0 when previous is 0
func percentChange(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
