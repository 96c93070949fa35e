package filters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/snapshot"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/storage/bolt"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, time.October, 12, 8, 0, 0, 0, time.UTC)

type countingPublisher struct {
	calls int
}

func (p *countingPublisher) Publish(ctx context.Context) error {
	p.calls++
	return nil
}

type fixture struct {
	store     *bolt.Store
	clock     *clock.TestClock
	streaks   *streak.Ledger
	publisher *countingPublisher
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "kfocus.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.NewTestClock(start)
	streaks := streak.NewLedger(store.KV(), clk, clock.NewCalendar(time.UTC), zerolog.Nop())
	publisher := &countingPublisher{}

	return &fixture{
		store:     store,
		clock:     clk,
		streaks:   streaks,
		publisher: publisher,
		service:   NewService(store.Toggles(), streaks, publisher, zerolog.Nop()),
	}
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lost, err := f.service.SetEnabled(ctx, catalog.FilterReels, true)
	require.NoError(t, err)
	assert.Equal(t, 0, lost)
	assert.True(t, f.streaks.IsActive(catalog.FilterReels))

	enabled, err := f.store.Toggles().IsEnabled(ctx, "reels")
	require.NoError(t, err)
	assert.True(t, enabled)

	f.clock.AdvanceDays(3)
	lost, err = f.service.SetEnabled(ctx, catalog.FilterReels, false)
	require.NoError(t, err)
	assert.Equal(t, 4, lost)
	assert.False(t, f.streaks.IsActive(catalog.FilterReels))
	assert.Equal(t, 4, f.streaks.LongestStreak(catalog.FilterReels))
	assert.Equal(t, 2, f.publisher.calls)

	// The streak ledger was persisted on every change
	reloaded := streak.NewLedger(f.store.KV(), f.clock, clock.NewCalendar(time.UTC), zerolog.Nop())
	reloaded.Load(ctx)
	assert.Equal(t, 4, reloaded.LongestStreak(catalog.FilterReels))
}

func TestSetEnabled_UnknownFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SetEnabled(context.Background(), catalog.FilterID(42), true)
	assert.Error(t, err)
	assert.Equal(t, 0, f.publisher.calls)
}

type failingToggles struct {
	storage.ToggleStore
}

func (failingToggles) SetEnabled(ctx context.Context, filter string, enabled bool) error {
	return errors.New("read-only")
}

func TestSetEnabled_StoreFailureLeavesStreakUntouched(t *testing.T) {
	f := newFixture(t)
	service := NewService(failingToggles{f.store.Toggles()}, f.streaks, nil, zerolog.Nop())

	_, err := service.SetEnabled(context.Background(), catalog.FilterStories, true)
	assert.Error(t, err)
	assert.False(t, f.streaks.IsActive(catalog.FilterStories))
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Explore has a streak the toggle store no longer agrees with
	f.streaks.Activate(catalog.FilterExplore)
	require.NoError(t, f.store.Toggles().SetEnabled(ctx, "stories", true))

	f.service.Reconcile(ctx)

	assert.True(t, f.streaks.IsActive(catalog.FilterStories))
	assert.False(t, f.streaks.IsActive(catalog.FilterExplore))
	assert.Equal(t, 1, f.publisher.calls)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.SetEnabled(ctx, catalog.FilterSponsored, true)
	require.NoError(t, err)

	statuses, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, catalog.NumFilters)

	for i, status := range statuses {
		assert.Equal(t, catalog.Filters()[i], status.Filter)
		assert.Equal(t, status.Filter == catalog.FilterSponsored, status.Enabled, status.Name)
	}
	assert.Equal(t, 1, statuses[catalog.FilterSponsored].Streak.CurrentDays)
}

func TestPublish_DropsStreakOfFilterDisabledElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cal := clock.NewCalendar(time.UTC)
	ledger := usage.NewLedger(nil, f.clock, cal, 0, zerolog.Nop())
	publisher := snapshot.NewPublisher(ledger, f.streaks, f.store.Snapshots(), f.clock, zerolog.Nop())
	service := NewService(f.store.Toggles(), f.streaks, publisher, zerolog.Nop())

	_, err := service.SetEnabled(ctx, catalog.FilterReels, true)
	require.NoError(t, err)
	f.clock.AdvanceDays(3)

	// Another client turns reels off straight in the toggle store
	require.NoError(t, f.store.Toggles().SetEnabled(ctx, "reels", false))

	require.NoError(t, service.Publish(ctx))

	latest, err := f.store.Snapshots().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, latest.BestStreakDays)
	assert.Empty(t, latest.BestStreakFilter)

	assert.False(t, f.streaks.IsActive(catalog.FilterReels))
	assert.Equal(t, 4, f.streaks.LongestStreak(catalog.FilterReels))

	// The resynced ledger was persisted
	reloaded := streak.NewLedger(f.store.KV(), f.clock, cal, zerolog.Nop())
	reloaded.Load(ctx)
	assert.False(t, reloaded.IsActive(catalog.FilterReels))
	assert.Equal(t, 4, reloaded.LongestStreak(catalog.FilterReels))
}

func TestSync_KeepsStreakPersistedByOtherWriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cal := clock.NewCalendar(time.UTC)

	// A second process shares the store and starts a streak first
	otherStreaks := streak.NewLedger(f.store.KV(), f.clock, cal, zerolog.Nop())
	other := NewService(f.store.Toggles(), otherStreaks, nil, zerolog.Nop())
	_, err := other.SetEnabled(ctx, catalog.FilterStories, true)
	require.NoError(t, err)

	f.clock.AdvanceDays(2)

	assert.True(t, f.service.Sync(ctx))
	assert.Equal(t, 3, f.streaks.CurrentStreakDays(catalog.FilterStories))
	assert.False(t, f.service.Sync(ctx))

	// Persisting afterwards no longer clobbers the other writer's start date
	require.NoError(t, f.streaks.Persist(ctx))
	otherStreaks.Load(ctx)
	assert.Equal(t, 3, otherStreaks.CurrentStreakDays(catalog.FilterStories))
}

func TestPublish_WithoutDriftOnlyPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.SetEnabled(ctx, catalog.FilterExplore, true)
	require.NoError(t, err)
	require.Equal(t, 1, f.publisher.calls)

	require.NoError(t, f.service.Publish(ctx))
	assert.Equal(t, 2, f.publisher.calls)
	assert.True(t, f.streaks.IsActive(catalog.FilterExplore))
	assert.Equal(t, 1, f.streaks.CurrentStreakDays(catalog.FilterExplore))
}
