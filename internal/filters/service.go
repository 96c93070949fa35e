// Package filters applies content filter toggles to the external toggle
// store and keeps the streak ledger in step with them.
package filters

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/rs/zerolog"
)

// Publisher republishes the widget snapshot after a toggle change
type Publisher interface {
	Publish(ctx context.Context) error
}

// Status is one filter's toggle state together with its streak
type Status struct {
	Filter  catalog.FilterID `json:"filter"`
	Name    string           `json:"name"`
	Enabled bool             `json:"enabled"`
	Streak  streak.Streak    `json:"streak"`
}

// Service is the single entry point for turning filters on and off.
type Service struct {
	toggles   storage.ToggleStore
	streaks   *streak.Ledger
	publisher Publisher
	logger    zerolog.Logger

	// mu serializes toggle writes with drift resyncs
	mu sync.Mutex
}

// NewService creates a filter service. publisher may be nil.
func NewService(toggles storage.ToggleStore, streaks *streak.Ledger, publisher Publisher, logger zerolog.Logger) *Service {
	return &Service{
		toggles:   toggles,
		streaks:   streaks,
		publisher: publisher,
		logger:    logger.With().Str("component", "filters").Logger(),
	}
}

// SetEnabled writes the toggle and updates the filter's streak. When a
// filter is turned off it returns the streak days that were lost.
func (s *Service) SetEnabled(ctx context.Context, id catalog.FilterID, enabled bool) (int, error) {
	if !id.Valid() {
		return 0, fmt.Errorf("unknown filter: %d", int(id))
	}

	s.mu.Lock()
	if err := s.toggles.SetEnabled(ctx, id.String(), enabled); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("failed to write toggle for %s: %w", id, err)
	}

	lost := 0
	if enabled {
		s.streaks.Activate(id)
	} else {
		lost = s.streaks.Deactivate(id)
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("filter", id.String()).
		Bool("enabled", enabled).
		Int("lost_streak_days", lost).
		Msg("Filter toggled")

	s.flush(ctx)
	return lost, nil
}

// Reconcile aligns every streak with the toggle store, then persists and
// republishes unconditionally. Run it at startup so toggles changed while
// the process was down are picked up.
func (s *Service) Reconcile(ctx context.Context) {
	s.Sync(ctx)
	s.flush(ctx)
}

// Sync brings the streak ledger back in line with toggles that were changed
// outside this service. The stored ledger is reloaded first so that streak
// state persisted by the other writer is kept. It reports whether anything
// had drifted; drifted state is persisted before returning.
func (s *Service) Sync(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streaks.Diverged(ctx, s.toggles) {
		return false
	}

	s.streaks.Load(ctx)
	changed := s.streaks.SyncAll(ctx, s.toggles)

	s.logger.Info().Int("changed", changed).Msg("Filter toggles changed externally, streaks resynced")

	if err := s.streaks.Persist(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist streak ledger")
	}
	return true
}

// Publish resyncs drifted toggles and then publishes the snapshot, so a
// filter turned off elsewhere never shows up as the best streak.
func (s *Service) Publish(ctx context.Context) error {
	s.Sync(ctx)
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx)
}

// List returns every filter in definition order
func (s *Service) List(ctx context.Context) ([]Status, error) {
	s.Sync(ctx)

	toggles, err := s.toggles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list toggles: %w", err)
	}

	statuses := make([]Status, 0, catalog.NumFilters)
	for _, id := range catalog.Filters() {
		statuses = append(statuses, Status{
			Filter:  id,
			Name:    id.Name(),
			Enabled: toggles[id.String()],
			Streak:  s.streaks.Streak(id),
		})
	}
	return statuses, nil
}

func (s *Service) flush(ctx context.Context) {
	if err := s.streaks.Persist(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist streak ledger")
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish snapshot")
	}
}
