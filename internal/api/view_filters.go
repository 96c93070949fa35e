package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/rs/zerolog"
)

// FilterViews handles filter toggles and streak queries.
type FilterViews struct {
	filters *filters.Service
	streaks *streak.Ledger
	logger  zerolog.Logger
}

// NewFilterViews creates a new filter views instance.
func NewFilterViews(service *filters.Service, streaks *streak.Ledger, logger zerolog.Logger) *FilterViews {
	return &FilterViews{
		filters: service,
		streaks: streaks,
		logger:  logger.With().Str("handler", "filters").Logger(),
	}
}

// UpdateFilterRequest is the body of PUT /api/filters/:id.
type UpdateFilterRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// UpdateFilterResponse reports the new toggle state.
type UpdateFilterResponse struct {
	Filter         catalog.FilterID `json:"filter"`
	Enabled        bool             `json:"enabled"`
	LostStreakDays int              `json:"lost_streak_days"`
	Streak         streak.Streak    `json:"streak"`
}

// BestStreakResponse is the longest active streak, if any.
type BestStreakResponse struct {
	Active bool              `json:"active"`
	Filter *catalog.FilterID `json:"filter,omitempty"`
	Name   string            `json:"name,omitempty"`
	Days   int               `json:"days"`
}

// List returns every filter with its toggle state and streak.
func (v *FilterViews) List(ctx *gin.Context) {
	statuses, err := v.filters.List(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to list filters")
		errorJSON(ctx, http.StatusInternalServerError, "server_error", "Failed to list filters")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"filters": statuses})
}

// Update turns a filter on or off.
func (v *FilterViews) Update(ctx *gin.Context) {
	id, ok := catalog.ParseFilterID(ctx.Param("id"))
	if !ok {
		errorJSON(ctx, http.StatusNotFound, "not_found", "Unknown filter: "+ctx.Param("id"))
		return
	}

	var req UpdateFilterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorJSON(ctx, http.StatusBadRequest, "invalid_request", "Body must be {\"enabled\": true|false}")
		return
	}

	lost, err := v.filters.SetEnabled(ctx.Request.Context(), id, *req.Enabled)
	if err != nil {
		v.logger.Error().Err(err).Str("filter", id.String()).Msg("Failed to toggle filter")
		errorJSON(ctx, http.StatusInternalServerError, "server_error", "Failed to update filter")
		return
	}

	ctx.JSON(http.StatusOK, UpdateFilterResponse{
		Filter:         id,
		Enabled:        *req.Enabled,
		LostStreakDays: lost,
		Streak:         v.streaks.Streak(id),
	})
}

// Streaks returns every filter's streak and the active ranking.
func (v *FilterViews) Streaks(ctx *gin.Context) {
	v.filters.Sync(ctx.Request.Context())

	ranking := v.streaks.AllActiveStreaks()
	if ranking == nil {
		ranking = []streak.Ranked{}
	}
	ctx.JSON(http.StatusOK, gin.H{
		"streaks": v.streaks.Streaks(),
		"active":  ranking,
	})
}

// BestStreak returns the longest active streak.
func (v *FilterViews) BestStreak(ctx *gin.Context) {
	v.filters.Sync(ctx.Request.Context())

	best, ok := v.streaks.BestActiveStreak()
	if !ok {
		ctx.JSON(http.StatusOK, BestStreakResponse{})
		return
	}
	ctx.JSON(http.StatusOK, BestStreakResponse{
		Active: true,
		Filter: &best.Filter,
		Name:   best.Filter.Name(),
		Days:   best.Days,
	})
}
