// Package api exposes the usage, streak and statistics core to
// presentation layers over a local JSON HTTP API.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/snapshot"
	"github.com/goodtune/kfocus/internal/stats"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
)

// Deps holds the components served by the API
type Deps struct {
	Usage      *usage.Ledger
	Tracker    *usage.Tracker
	Streaks    *streak.Ledger
	Stats      *stats.Projector
	Filters    *filters.Service
	Classifier *classify.Engine
	Location   *classify.Location
	Snapshots  *snapshot.Publisher
}

// Server is the API HTTP server.
type Server struct {
	server   *http.Server
	router   *gin.Engine
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates an API server listening on addr.
func NewServer(addr string, deps Deps, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	if logger.GetLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(MetricsMiddleware())
	router.Use(LoggingMiddleware(logger))

	setupRoutes(router, deps, logger)

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
		logger: logger,
	}
}

func setupRoutes(router *gin.Engine, deps Deps, logger zerolog.Logger) {
	usageViews := NewUsageViews(deps.Usage, logger)
	filterViews := NewFilterViews(deps.Filters, deps.Streaks, logger)
	statsViews := NewStatsViews(deps.Stats, logger)
	sessionViews := NewSessionViews(deps.Location, deps.Tracker, deps.Snapshots, deps.Filters, logger)
	systemViews := NewSystemViews(deps.Classifier, logger)

	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Route not found",
		})
	})

	api := router.Group("/api")

	usageGroup := api.Group("/usage")
	usageGroup.GET("/today", usageViews.Today)
	usageGroup.GET("/yesterday", usageViews.Yesterday)
	usageGroup.GET("/day/:date", usageViews.Day)
	usageGroup.GET("/week", usageViews.Week)
	usageGroup.GET("/month", usageViews.Month)
	usageGroup.GET("/comparison", usageViews.Comparison)

	api.GET("/filters", filterViews.List)
	api.PUT("/filters/:id", filterViews.Update)
	api.GET("/streaks", filterViews.Streaks)
	api.GET("/streaks/best", filterViews.BestStreak)

	api.GET("/stats", statsViews.Summary)
	api.GET("/stats/chart", statsViews.Chart)
	api.POST("/stats/simulation", statsViews.ToggleSimulation)

	api.GET("/location", sessionViews.GetLocation)
	api.POST("/location", sessionViews.SetLocation)
	api.DELETE("/location", sessionViews.ClearLocation)
	api.POST("/lifecycle/:state", sessionViews.Lifecycle)
	api.GET("/snapshot", sessionViews.Snapshot)
	api.GET("/snapshot/sequence", sessionViews.RefreshSequence)

	api.GET("/system/health", systemViews.Health)
	api.POST("/system/reload-policy", systemViews.ReloadPolicy)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}

func errorJSON(ctx *gin.Context, status int, code, message string) {
	ctx.JSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}
