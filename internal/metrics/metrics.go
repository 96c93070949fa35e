package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Usage metrics
	UsageSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kfocus_usage_seconds_total",
			Help: "Total seconds accumulated per content category",
		},
		[]string{"category"},
	)

	UsageTodaySeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kfocus_usage_today_seconds",
			Help: "Seconds accumulated today across all categories",
		},
	)

	DayRollovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kfocus_day_rollovers_total",
			Help: "Total calendar day rollovers observed by the usage ledger",
		},
	)

	MonthRollovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kfocus_month_rollovers_total",
			Help: "Total calendar month rollovers observed by the usage ledger",
		},
	)

	// Persistence metrics
	PersistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kfocus_persist_errors_total",
			Help: "Ledger persistence failures",
		},
		[]string{"ledger", "op"},
	)

	// Streak metrics
	FilterActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kfocus_filter_active",
			Help: "Whether a content filter is currently active (1) or not (0)",
		},
		[]string{"filter"},
	)

	StreakDays = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kfocus_streak_days",
			Help: "Current streak length in days per filter",
		},
		[]string{"filter"},
	)

	// Snapshot metrics
	SnapshotPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kfocus_snapshot_publishes_total",
			Help: "Snapshot publish attempts by result",
		},
		[]string{"result"},
	)

	// Classifier metrics
	ClassifierCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kfocus_classifier_cache_hits_total",
			Help: "Category classifier cache hits",
		},
	)

	ClassifierCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kfocus_classifier_cache_misses_total",
			Help: "Category classifier cache misses",
		},
	)

	ClassifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kfocus_classifier_duration_seconds",
			Help:    "Policy evaluation duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kfocus_api_requests_total",
			Help: "Total API requests processed",
		},
		[]string{"route", "method", "status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		UsageSecondsTotal,
		UsageTodaySeconds,
		DayRollovers,
		MonthRollovers,
		PersistErrors,
		FilterActive,
		StreakDays,
		SnapshotPublishes,
		ClassifierCacheHits,
		ClassifierCacheMisses,
		ClassifierDuration,
		APIRequestsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the mux serving /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
