package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/kfocus/internal/api"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/metrics"
	"github.com/goodtune/kfocus/internal/storage/redis"
	"github.com/goodtune/kfocus/internal/systemd"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kfocus service",
	Long:  `Start usage tracking, the daily rollover scheduler, the local API and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting kfocus")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := openCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("timezone", app.calendar.Location().String()).
		Msg("Storage initialized and ledgers loaded")

	// Toggles may have changed while we were down
	app.filters.Reconcile(ctx)

	classifier, err := classify.NewEngine(cfg.Classifier, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	location := classify.NewLocation(classifier, logger)

	interval, err := cfg.Tracking.Interval()
	if err != nil {
		return err
	}

	// Publishing through the filter service resyncs drifted toggles first
	tracker := usage.NewTracker(app.usage, location, app.filters, usage.Config{
		TickInterval:    interval,
		CheckpointTicks: cfg.Tracking.CheckpointTicks,
	}, logger)
	tracker.Start()

	scheduler := usage.NewRolloverScheduler(app.usage, app.filters, app.clock, logger)
	scheduler.Start()

	if rs, ok := app.store.(*redis.Store); ok {
		go followToggles(ctx, rs, app.filters, logger)
	}

	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(apiAddr, api.Deps{
		Usage:      app.usage,
		Tracker:    tracker,
		Streaks:    app.streaks,
		Stats:      app.stats,
		Filters:    app.filters,
		Classifier: classifier,
		Location:   location,
		Snapshots:  app.publisher,
	}, logger)
	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := app.publisher.Force(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish initial snapshot")
	}

	go systemd.RunWatchdog(ctx, logger)

	logger.Info().Msg("kfocus startup complete")
	logger.Info().Msgf("API: http://%s", apiAddr)
	if metricsServer != nil {
		logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		logger.Info().Msg("SIGHUP received, reloading category policy...")
		if err := classifier.Reload(); err != nil {
			logger.Error().Err(err).Msg("Failed to reload category policy")
		} else {
			logger.Info().Msg("Category policy reloaded")
		}
	}

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop background followers before the store goes away
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	// Stop flushes the usage ledger and the snapshot
	tracker.Stop()
	scheduler.Stop()

	if err := app.streaks.Persist(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to persist streak ledger")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("kfocus stopped")
	return nil
}

// followToggles resyncs streaks whenever another process changes a filter
// toggle in the shared redis store.
func followToggles(ctx context.Context, rs *redis.Store, service *filters.Service, logger zerolog.Logger) {
	sub := rs.SubscribeToggles(ctx)
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			logger.Debug().Str("filter", msg.Payload).Msg("Filter toggle changed in shared store")
			if err := service.Publish(ctx); err != nil {
				logger.Error().Err(err).Msg("Failed to publish snapshot after toggle change")
			}
		}
	}
}
