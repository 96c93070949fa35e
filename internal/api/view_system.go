package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/rs/zerolog"
)

// SystemViews handles health and classifier control requests.
type SystemViews struct {
	classifier *classify.Engine
	startTime  time.Time
	logger     zerolog.Logger
}

// NewSystemViews creates a new system views instance.
func NewSystemViews(classifier *classify.Engine, logger zerolog.Logger) *SystemViews {
	return &SystemViews{
		classifier: classifier,
		startTime:  time.Now(),
		logger:     logger.With().Str("handler", "system").Logger(),
	}
}

// Health returns process uptime and classifier state.
func (v *SystemViews) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"uptime_seconds":  int64(time.Since(v.startTime).Seconds()),
		"policy_files":    v.classifier.PolicyFiles(),
		"classifier_size": v.classifier.CacheLen(),
	})
}

// ReloadPolicy reloads the category policy from disk.
func (v *SystemViews) ReloadPolicy(ctx *gin.Context) {
	v.logger.Info().Msg("Manual policy reload requested")

	if err := v.classifier.Reload(); err != nil {
		v.logger.Error().Err(err).Msg("Failed to reload category policy")
		errorJSON(ctx, http.StatusInternalServerError, "server_error", "Failed to reload policy: "+err.Error())
		return
	}

	v.logger.Info().Msg("Category policy reloaded")
	ctx.JSON(http.StatusOK, gin.H{
		"message":   "Policy reloaded successfully",
		"timestamp": time.Now(),
	})
}
