package storage

import (
	"time"
)

// Snapshot is the flat record exported to widgets.
type Snapshot struct {
	ID               string    `json:"id"`
	GeneratedAt      time.Time `json:"generated_at"`
	TodaySeconds     int64     `json:"today_seconds"`
	YesterdaySeconds int64     `json:"yesterday_seconds"`
	WeeklySeconds    int64     `json:"weekly_total_seconds"`
	PercentChange    float64   `json:"percentage_change"`
	BestStreakDays   int       `json:"best_streak_days"`
	BestStreakFilter string    `json:"best_streak_filter"`
	BestStreakRecord int       `json:"best_streak_record"`
}

// SameContent reports whether two snapshots carry the same widget-visible data,
// ignoring ID and GeneratedAt.
func (s Snapshot) SameContent(other Snapshot) bool {
	return s.TodaySeconds == other.TodaySeconds &&
		s.YesterdaySeconds == other.YesterdaySeconds &&
		s.WeeklySeconds == other.WeeklySeconds &&
		s.PercentChange == other.PercentChange &&
		s.BestStreakDays == other.BestStreakDays &&
		s.BestStreakFilter == other.BestStreakFilter &&
		s.BestStreakRecord == other.BestStreakRecord
}
