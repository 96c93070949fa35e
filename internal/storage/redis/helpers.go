package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/kfocus/internal/storage"
)

// parseSnapshot converts a Redis hash to Snapshot
func parseSnapshot(data map[string]string) (*storage.Snapshot, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	generatedAt, err := time.Parse(time.RFC3339Nano, data["generated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated_at: %w", err)
	}

	todaySeconds, err := strconv.ParseInt(data["today_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse today_seconds: %w", err)
	}

	yesterdaySeconds, err := strconv.ParseInt(data["yesterday_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse yesterday_seconds: %w", err)
	}

	weeklySeconds, err := strconv.ParseInt(data["weekly_total_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weekly_total_seconds: %w", err)
	}

	percentChange, err := strconv.ParseFloat(data["percentage_change"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse percentage_change: %w", err)
	}

	bestDays, err := strconv.Atoi(data["best_streak_days"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse best_streak_days: %w", err)
	}

	bestRecord, err := strconv.Atoi(data["best_streak_record"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse best_streak_record: %w", err)
	}

	return &storage.Snapshot{
		ID:               data["id"],
		GeneratedAt:      generatedAt,
		TodaySeconds:     todaySeconds,
		YesterdaySeconds: yesterdaySeconds,
		WeeklySeconds:    weeklySeconds,
		PercentChange:    percentChange,
		BestStreakDays:   bestDays,
		BestStreakFilter: data["best_streak_filter"],
		BestStreakRecord: bestRecord,
	}, nil
}
