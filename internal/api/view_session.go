package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/snapshot"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
)

// SessionViews handles what the user is looking at and whether the app is
// in the foreground.
type SessionViews struct {
	location  *classify.Location
	tracker   *usage.Tracker
	snapshots *snapshot.Publisher
	filters   *filters.Service
	logger    zerolog.Logger
}

// NewSessionViews creates a new session views instance.
func NewSessionViews(location *classify.Location, tracker *usage.Tracker, snapshots *snapshot.Publisher, service *filters.Service, logger zerolog.Logger) *SessionViews {
	return &SessionViews{
		location:  location,
		tracker:   tracker,
		snapshots: snapshots,
		filters:   service,
		logger:    logger.With().Str("handler", "session").Logger(),
	}
}

// SetLocationRequest is the body of POST /api/location.
type SetLocationRequest struct {
	URL string `json:"url" binding:"required"`
}

// GetLocation returns the current page and its category.
func (v *SessionViews) GetLocation(ctx *gin.Context) {
	category, ok := v.location.Current()
	if !ok {
		ctx.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"active":   true,
		"url":      v.location.URL(),
		"category": category,
	})
}

// SetLocation records the page the user navigated to.
func (v *SessionViews) SetLocation(ctx *gin.Context) {
	var req SetLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorJSON(ctx, http.StatusBadRequest, "invalid_request", "Body must be {\"url\": \"...\"}")
		return
	}

	category, err := v.location.Set(ctx.Request.Context(), req.URL)
	if err != nil {
		v.logger.Debug().Err(err).Str("url", req.URL).Msg("Rejected location")
		errorJSON(ctx, http.StatusBadRequest, "invalid_url", err.Error())
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"url":      req.URL,
		"category": category,
	})
}

// ClearLocation stops attributing time to any page.
func (v *SessionViews) ClearLocation(ctx *gin.Context) {
	v.location.Clear()
	ctx.Status(http.StatusNoContent)
}

// Lifecycle handles foreground and background transitions.
func (v *SessionViews) Lifecycle(ctx *gin.Context) {
	switch ctx.Param("state") {
	case "foreground":
		v.tracker.Resume()
	case "background":
		v.tracker.Pause(ctx.Request.Context())
	default:
		errorJSON(ctx, http.StatusNotFound, "not_found", "Unknown lifecycle state: "+ctx.Param("state"))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"paused": v.tracker.Paused()})
}

// SequenceResponse is the body of GET /api/snapshot/sequence.
type SequenceResponse struct {
	Sequence uint64 `json:"sequence"`
}

// RefreshSequence returns the refresh request counter so pollers can tell
// when a new snapshot was published.
func (v *SessionViews) RefreshSequence(ctx *gin.Context) {
	seq, err := v.snapshots.RefreshSequence(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to read refresh sequence")
		errorJSON(ctx, http.StatusInternalServerError, "server_error", "Failed to read refresh sequence")
		return
	}
	ctx.JSON(http.StatusOK, SequenceResponse{Sequence: seq})
}

// Snapshot returns the last published widget snapshot. With ?fresh=true
// it is rebuilt from the ledgers without being written.
func (v *SessionViews) Snapshot(ctx *gin.Context) {
	if ctx.Query("fresh") == "true" {
		v.filters.Sync(ctx.Request.Context())
		ctx.JSON(http.StatusOK, v.snapshots.Build())
		return
	}

	snap, err := v.snapshots.Latest(ctx.Request.Context())
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(ctx, http.StatusNotFound, "not_found", "No snapshot has been published")
		return
	}
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to read snapshot")
		errorJSON(ctx, http.StatusInternalServerError, "server_error", "Failed to read snapshot")
		return
	}
	ctx.JSON(http.StatusOK, snap)
}
