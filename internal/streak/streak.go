package streak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/metrics"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/rs/zerolog"
)

// StorageKey is the KV key holding the serialized streak ledger
const StorageKey = "streaks"

const stateVersion = 1

// ToggleReader reads the externally owned filter toggle state
type ToggleReader interface {
	IsEnabled(ctx context.Context, filter string) (bool, error)
}

// Streak is a point-in-time view of one filter's streak
type Streak struct {
	Filter      catalog.FilterID `json:"filter"`
	Name        string           `json:"name"`
	Active      bool             `json:"active"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	CurrentDays int              `json:"current_days"`
	LongestDays int              `json:"longest_days"`
}

// RecordDays is the personal record including the streak in progress
func (s Streak) RecordDays() int {
	if s.CurrentDays > s.LongestDays {
		return s.CurrentDays
	}
	return s.LongestDays
}

// Ranked pairs a filter with its current streak length
type Ranked struct {
	Filter catalog.FilterID `json:"filter"`
	Days   int              `json:"days"`
}

type filterStreak struct {
	StartDate     *time.Time `json:"start_date,omitempty"`
	LongestStreak int        `json:"longest_streak"`
}

type ledgerState struct {
	Version int                     `json:"version"`
	Filters map[string]filterStreak `json:"filters"`
}

// Ledger tracks continuous activation streaks per filter. A filter is
// active exactly when it has a start date; streak length is derived from
// the start date on every read.
type Ledger struct {
	kv     storage.KVStore
	clock  clock.Clock
	cal    clock.Calendar
	logger zerolog.Logger

	mu      sync.Mutex
	streaks [catalog.NumFilters]filterStreak
}

// NewLedger creates a ledger with every filter inactive.
// kv may be nil, in which case Persist and Load do nothing.
func NewLedger(kv storage.KVStore, clk clock.Clock, cal clock.Calendar, logger zerolog.Logger) *Ledger {
	return &Ledger{
		kv:     kv,
		clock:  clk,
		cal:    cal,
		logger: logger.With().Str("component", "streak-ledger").Logger(),
	}
}

// Activate starts a streak for id. It reports whether the state changed.
func (l *Ledger) Activate(id catalog.FilterID) bool {
	if !id.Valid() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := &l.streaks[id]
	if s.StartDate != nil {
		return false
	}

	now := l.clock.Now()
	s.StartDate = &now

	l.logger.Info().Str("filter", id.String()).Time("start_date", now).Msg("Streak started")
	l.updateMetricsLocked(id, now)
	return true
}

// Deactivate ends id's streak, folds it into the personal record and
// returns the number of streak days lost. Inactive or unknown filters
// return 0.
func (l *Ledger) Deactivate(id catalog.FilterID) int {
	if !id.Valid() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := &l.streaks[id]
	if s.StartDate == nil {
		return 0
	}

	now := l.clock.Now()
	lost := l.currentDaysLocked(id, now)
	if lost > s.LongestStreak {
		s.LongestStreak = lost
	}
	s.StartDate = nil

	l.logger.Info().
		Str("filter", id.String()).
		Int("lost_days", lost).
		Int("longest_streak", s.LongestStreak).
		Msg("Streak ended")
	l.updateMetricsLocked(id, now)
	return lost
}

// SyncWithExternalState aligns id's streak with the external toggle state.
// It reports whether the streak was started or ended.
func (l *Ledger) SyncWithExternalState(id catalog.FilterID, enabled bool) bool {
	if !id.Valid() {
		return false
	}

	l.mu.Lock()
	active := l.streaks[id].StartDate != nil
	l.mu.Unlock()

	switch {
	case enabled && !active:
		return l.Activate(id)
	case !enabled && active:
		l.Deactivate(id)
		return true
	}
	return false
}

// SyncAll reconciles every filter against toggles and returns how many
// streaks changed. A filter whose toggle cannot be read keeps its state.
func (l *Ledger) SyncAll(ctx context.Context, toggles ToggleReader) int {
	changed := 0
	for _, id := range catalog.Filters() {
		enabled, err := toggles.IsEnabled(ctx, id.String())
		if err != nil {
			l.logger.Warn().Err(err).Str("filter", id.String()).Msg("Failed to read filter toggle, keeping streak state")
			continue
		}
		if l.SyncWithExternalState(id, enabled) {
			changed++
		}
	}
	return changed
}

// Diverged reports whether any readable toggle disagrees with the streak
// state. It changes nothing.
func (l *Ledger) Diverged(ctx context.Context, toggles ToggleReader) bool {
	for _, id := range catalog.Filters() {
		enabled, err := toggles.IsEnabled(ctx, id.String())
		if err != nil {
			continue
		}
		if enabled != l.IsActive(id) {
			return true
		}
	}
	return false
}

// IsActive reports whether id has a streak in progress
func (l *Ledger) IsActive(id catalog.FilterID) bool {
	if !id.Valid() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streaks[id].StartDate != nil
}

// StartDate returns when id's current streak began
func (l *Ledger) StartDate(id catalog.FilterID) (time.Time, bool) {
	if !id.Valid() {
		return time.Time{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if start := l.streaks[id].StartDate; start != nil {
		return *start, true
	}
	return time.Time{}, false
}

// CurrentStreakDays returns id's streak length; the start day counts as day 1
func (l *Ledger) CurrentStreakDays(id catalog.FilterID) int {
	if !id.Valid() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentDaysLocked(id, l.clock.Now())
}

// LongestStreak returns id's personal record from completed streaks
func (l *Ledger) LongestStreak(id catalog.FilterID) int {
	if !id.Valid() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streaks[id].LongestStreak
}

// Streak returns a view of id's streak
func (l *Ledger) Streak(id catalog.FilterID) Streak {
	if !id.Valid() {
		return Streak{Filter: id}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked(id, l.clock.Now())
}

// Streaks returns a view of every filter in definition order
func (l *Ledger) Streaks() []Streak {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	out := make([]Streak, 0, catalog.NumFilters)
	for _, id := range catalog.Filters() {
		out = append(out, l.viewLocked(id, now))
	}
	return out
}

// BestActiveStreak returns the filter with the longest current streak.
// Ties go to the filter defined first. ok is false when nothing is active.
func (l *Ledger) BestActiveStreak() (best Ranked, ok bool) {
	ranked := l.AllActiveStreaks()
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	return ranked[0], true
}

// AllActiveStreaks returns every active filter sorted by descending streak
// length, ties kept in definition order.
func (l *Ledger) AllActiveStreaks() []Ranked {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var ranked []Ranked
	for _, id := range catalog.Filters() {
		days := l.currentDaysLocked(id, now)
		metrics.StreakDays.WithLabelValues(id.String()).Set(float64(days))
		if days > 0 {
			ranked = append(ranked, Ranked{Filter: id, Days: days})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Days > ranked[j].Days
	})
	return ranked
}

func (l *Ledger) currentDaysLocked(id catalog.FilterID, now time.Time) int {
	start := l.streaks[id].StartDate
	if start == nil {
		return 0
	}
	days := l.cal.DaysBetween(*start, now)
	if days < 0 {
		// Clock moved behind the start date; the streak is still in its first day
		days = 0
	}
	return days + 1
}

func (l *Ledger) viewLocked(id catalog.FilterID, now time.Time) Streak {
	s := l.streaks[id]
	view := Streak{
		Filter:      id,
		Name:        id.Name(),
		Active:      s.StartDate != nil,
		CurrentDays: l.currentDaysLocked(id, now),
		LongestDays: s.LongestStreak,
	}
	if s.StartDate != nil {
		start := *s.StartDate
		view.StartDate = &start
	}
	return view
}

func (l *Ledger) updateMetricsLocked(id catalog.FilterID, now time.Time) {
	active := 0.0
	if l.streaks[id].StartDate != nil {
		active = 1
	}
	metrics.FilterActive.WithLabelValues(id.String()).Set(active)
	metrics.StreakDays.WithLabelValues(id.String()).Set(float64(l.currentDaysLocked(id, now)))
}

// Persist writes the ledger to the KV store
func (l *Ledger) Persist(ctx context.Context) error {
	if l.kv == nil {
		return nil
	}

	l.mu.Lock()
	state := ledgerState{Version: stateVersion, Filters: make(map[string]filterStreak, catalog.NumFilters)}
	for _, id := range catalog.Filters() {
		state.Filters[id.String()] = l.streaks[id]
	}
	l.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		metrics.PersistErrors.WithLabelValues("streak", "marshal").Inc()
		return fmt.Errorf("failed to marshal streak ledger: %w", err)
	}

	if err := l.kv.Set(ctx, StorageKey, data); err != nil {
		metrics.PersistErrors.WithLabelValues("streak", "write").Inc()
		return fmt.Errorf("failed to write streak ledger: %w", err)
	}
	return nil
}

// Load restores the ledger from the KV store. A missing or unreadable
// record leaves every filter inactive; errors are logged, never returned.
func (l *Ledger) Load(ctx context.Context) {
	if l.kv == nil {
		return
	}

	var streaks [catalog.NumFilters]filterStreak
	state, err := l.readState(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		l.logger.Info().Msg("No stored streak ledger, starting with all filters inactive")
	case err != nil:
		metrics.PersistErrors.WithLabelValues("streak", "read").Inc()
		l.logger.Error().Err(err).Msg("Failed to load streak ledger, starting with all filters inactive")
	default:
		for key, s := range state.Filters {
			id, ok := catalog.ParseFilterID(key)
			if !ok {
				l.logger.Warn().Str("filter", key).Msg("Dropping streak for unknown filter")
				continue
			}
			if s.LongestStreak < 0 {
				s.LongestStreak = 0
			}
			streaks[id] = s
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.streaks = streaks
	now := l.clock.Now()
	for _, id := range catalog.Filters() {
		l.updateMetricsLocked(id, now)
	}
}

func (l *Ledger) readState(ctx context.Context) (*ledgerState, error) {
	data, err := l.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, err
	}

	var state ledgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal streak ledger: %w", err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("unsupported streak ledger version %d", state.Version)
	}
	return &state, nil
}
