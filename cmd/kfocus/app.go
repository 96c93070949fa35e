package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/snapshot"
	"github.com/goodtune/kfocus/internal/stats"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/storage/bolt"
	"github.com/goodtune/kfocus/internal/storage/redis"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
)

// core holds the ledgers and the components built on them. serve and the
// read-only subcommands share it.
type core struct {
	store     storage.Store
	clock     clock.Clock
	calendar  clock.Calendar
	usage     *usage.Ledger
	streaks   *streak.Ledger
	publisher *snapshot.Publisher
	stats     *stats.Projector
	filters   *filters.Service
}

func openCore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*core, error) {
	loc, err := cfg.Tracking.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	clk := clock.RealClock{}
	cal := clock.NewCalendar(loc)

	c := &core{
		store:    store,
		clock:    clk,
		calendar: cal,
		usage:    usage.NewLedger(store.KV(), clk, cal, cfg.Tracking.HistoryRetentionDays, logger),
		streaks:  streak.NewLedger(store.KV(), clk, cal, logger),
	}
	c.usage.Load(ctx)
	c.streaks.Load(ctx)

	c.publisher = snapshot.NewPublisher(c.usage, c.streaks, store.Snapshots(), clk, logger)
	c.stats = stats.NewProjector(c.streaks, store.Toggles(), c.publisher, clk, cal, cfg.Stats.StartInSimulation, logger)
	c.filters = filters.NewService(store.Toggles(), c.streaks, c.publisher, logger)

	return c, nil
}

func (c *core) Close() error {
	return c.store.Close()
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger is used by the one-shot subcommands
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}
