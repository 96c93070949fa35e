package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
)

// UsageViews serves the usage ledger.
type UsageViews struct {
	ledger *usage.Ledger
	logger zerolog.Logger
}

// NewUsageViews creates a new usage views instance.
func NewUsageViews(ledger *usage.Ledger, logger zerolog.Logger) *UsageViews {
	return &UsageViews{
		ledger: ledger,
		logger: logger.With().Str("handler", "usage").Logger(),
	}
}

// DayResponse is one day bucket with its rendered total.
type DayResponse struct {
	usage.DayBucket
	TotalSeconds int64  `json:"total_seconds"`
	Formatted    string `json:"formatted"`
}

// WeekResponse is the trailing week, Monday first.
type WeekResponse struct {
	Days         []DayResponse `json:"days"`
	TotalSeconds int64         `json:"total_seconds"`
	Formatted    string        `json:"formatted"`
}

// MonthWeek is one week-of-month bucket with its total.
type MonthWeek struct {
	usage.MonthBucket
	TotalSeconds int64 `json:"total_seconds"`
}

// ComparisonResponse holds the zero-guarded percentage changes.
type ComparisonResponse struct {
	TodaySeconds     int64   `json:"today_seconds"`
	YesterdaySeconds int64   `json:"yesterday_seconds"`
	VsYesterday      float64 `json:"vs_yesterday_percent"`
	VsLastWeek       float64 `json:"vs_last_week_percent"`
}

func newDayResponse(b usage.DayBucket) DayResponse {
	return DayResponse{
		DayBucket:    b,
		TotalSeconds: b.Total(),
		Formatted:    b.Formatted(),
	}
}

// Today returns today's bucket.
func (v *UsageViews) Today(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, newDayResponse(v.ledger.Today()))
}

// Yesterday returns yesterday's bucket.
func (v *UsageViews) Yesterday(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, newDayResponse(v.ledger.Yesterday()))
}

// Day returns a retained day by its YYYY-MM-DD key.
func (v *UsageViews) Day(ctx *gin.Context) {
	key := ctx.Param("date")
	if _, err := v.ledger.Calendar().ParseDayKey(key); err != nil {
		errorJSON(ctx, http.StatusBadRequest, "invalid_date", "Date must be formatted as YYYY-MM-DD")
		return
	}

	bucket, ok := v.ledger.Day(key)
	if !ok {
		errorJSON(ctx, http.StatusNotFound, "not_found", "No usage recorded for "+key)
		return
	}
	ctx.JSON(http.StatusOK, newDayResponse(bucket))
}

// Week returns the seven weekday buckets and their total.
func (v *UsageViews) Week(ctx *gin.Context) {
	week := v.ledger.WeekView()

	resp := WeekResponse{Days: make([]DayResponse, 0, len(week))}
	for _, day := range week {
		resp.Days = append(resp.Days, newDayResponse(day))
		resp.TotalSeconds += day.Total()
	}
	resp.Formatted = usage.FormattedTime(resp.TotalSeconds)

	ctx.JSON(http.StatusOK, resp)
}

// Month returns the current month's week buckets.
func (v *UsageViews) Month(ctx *gin.Context) {
	buckets := v.ledger.MonthBuckets()

	weeks := make([]MonthWeek, 0, len(buckets))
	for _, b := range buckets {
		weeks = append(weeks, MonthWeek{MonthBucket: b, TotalSeconds: b.Total()})
	}

	ctx.JSON(http.StatusOK, gin.H{"weeks": weeks})
}

// Comparison returns the day-over-day and week-over-week changes.
func (v *UsageViews) Comparison(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, ComparisonResponse{
		TodaySeconds:     v.ledger.Today().Total(),
		YesterdaySeconds: v.ledger.Yesterday().Total(),
		VsYesterday:      v.ledger.ComparisonToYesterday(),
		VsLastWeek:       v.ledger.ComparisonToLastWeek(),
	})
}
