package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/metrics"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UsageSource is the usage ledger as seen by the publisher
type UsageSource interface {
	Today() usage.DayBucket
	Yesterday() usage.DayBucket
	WeeklyTotal() int64
	ComparisonToYesterday() float64
}

// StreakSource is the streak ledger as seen by the publisher
type StreakSource interface {
	BestActiveStreak() (streak.Ranked, bool)
	Streak(id catalog.FilterID) streak.Streak
}

// Publisher builds widget snapshots from both ledgers and writes them to
// the shared snapshot store when they change.
type Publisher struct {
	usage   UsageSource
	streaks StreakSource
	store   storage.SnapshotStore
	clock   clock.Clock
	logger  zerolog.Logger

	mu     sync.Mutex
	last   *storage.Snapshot
	primed bool
}

// NewPublisher creates a snapshot publisher
func NewPublisher(usageLedger UsageSource, streakLedger StreakSource, store storage.SnapshotStore, clk clock.Clock, logger zerolog.Logger) *Publisher {
	return &Publisher{
		usage:   usageLedger,
		streaks: streakLedger,
		store:   store,
		clock:   clk,
		logger:  logger.With().Str("component", "snapshot").Logger(),
	}
}

// Build computes the current snapshot without writing it
func (p *Publisher) Build() storage.Snapshot {
	today := p.usage.Today()
	yesterday := p.usage.Yesterday()

	snap := storage.Snapshot{
		ID:               uuid.NewString(),
		GeneratedAt:      p.clock.Now().UTC(),
		TodaySeconds:     today.Total(),
		YesterdaySeconds: yesterday.Total(),
		WeeklySeconds:    p.usage.WeeklyTotal(),
		PercentChange:    p.usage.ComparisonToYesterday(),
	}

	if best, ok := p.streaks.BestActiveStreak(); ok {
		view := p.streaks.Streak(best.Filter)
		snap.BestStreakDays = best.Days
		snap.BestStreakFilter = view.Name
		snap.BestStreakRecord = view.RecordDays()
	}

	return snap
}

// Publish writes the current snapshot if it differs from the last one
// written. Unchanged snapshots are skipped.
func (p *Publisher) Publish(ctx context.Context) error {
	return p.publish(ctx, false)
}

// Force writes the current snapshot unconditionally
func (p *Publisher) Force(ctx context.Context) error {
	return p.publish(ctx, true)
}

func (p *Publisher) publish(ctx context.Context, force bool) error {
	snap := p.Build()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.primeLocked(ctx)

	if !force && p.last != nil && p.last.SameContent(snap) {
		metrics.SnapshotPublishes.WithLabelValues("unchanged").Inc()
		return nil
	}

	if err := p.store.Put(ctx, snap); err != nil {
		metrics.SnapshotPublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	p.last = &snap
	metrics.SnapshotPublishes.WithLabelValues("written").Inc()

	p.logger.Debug().
		Str("snapshot_id", snap.ID).
		Int64("today_seconds", snap.TodaySeconds).
		Int("best_streak_days", snap.BestStreakDays).
		Bool("forced", force).
		Msg("Snapshot published")

	return nil
}

// primeLocked seeds the change detector from the store once
func (p *Publisher) primeLocked(ctx context.Context) {
	if p.primed {
		return
	}
	p.primed = true

	latest, err := p.store.Latest(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn().Err(err).Msg("Failed to read previous snapshot")
		}
		return
	}
	p.last = latest
}

// Latest returns the snapshot currently held by the store
func (p *Publisher) Latest(ctx context.Context) (*storage.Snapshot, error) {
	return p.store.Latest(ctx)
}

// RefreshSequence returns how many refresh requests the store has raised
func (p *Publisher) RefreshSequence(ctx context.Context) (uint64, error) {
	return p.store.RefreshSequence(ctx)
}
