package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/stats"
	"github.com/rs/zerolog"
)

// StatsViews serves the minutes-saved statistics.
type StatsViews struct {
	projector *stats.Projector
	logger    zerolog.Logger
}

// NewStatsViews creates a new statistics views instance.
func NewStatsViews(projector *stats.Projector, logger zerolog.Logger) *StatsViews {
	return &StatsViews{
		projector: projector,
		logger:    logger.With().Str("handler", "stats").Logger(),
	}
}

// Summary returns every statistic computed from a single evaluation.
func (v *StatsViews) Summary(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, v.projector.Summary(ctx.Request.Context()))
}

// Chart returns the seven-day chart and whether it should be shown.
func (v *StatsViews) Chart(ctx *gin.Context) {
	summary := v.projector.Summary(ctx.Request.Context())
	ctx.JSON(http.StatusOK, gin.H{
		"simulated":  summary.Simulated,
		"points":     summary.Chart,
		"show_chart": summary.ShowChart,
	})
}

// ToggleSimulation flips simulation mode. Leaving simulation is refused
// while no filter is enabled.
func (v *StatsViews) ToggleSimulation(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	before := v.projector.IsSimulationMode(reqCtx)
	after := v.projector.ToggleSimulationMode(reqCtx)

	ctx.JSON(http.StatusOK, gin.H{
		"simulated": after,
		"changed":   before != after,
	})
}
