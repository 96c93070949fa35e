package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/metrics"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// StorageKey is the KV key holding the serialized ledger
	StorageKey = "usage"

	// DefaultRetentionDays is how many days of history are kept
	DefaultRetentionDays = 62

	stateVersion = 1
)

// ledgerState is the persisted form of the ledger
type ledgerState struct {
	Version   int                                `json:"version"`
	LastDay   string                             `json:"last_day"`
	LastMonth string                             `json:"last_month"`
	Days      map[string]catalog.CategorySeconds `json:"days"`
	Month     []catalog.CategorySeconds          `json:"month"`
}

// Ledger accumulates seconds per category into dated day buckets and
// projects them onto week-of-month buckets. All methods are safe for
// concurrent use; the mutex is the single mutation gate.
type Ledger struct {
	kv            storage.KVStore
	clock         clock.Clock
	cal           clock.Calendar
	retentionDays int
	logger        zerolog.Logger

	mu        sync.Mutex
	lastDay   string
	lastMonth string
	days      map[string]*catalog.CategorySeconds
	month     []catalog.CategorySeconds
}

// NewLedger creates an empty ledger anchored at the clock's current day.
// kv may be nil, in which case Persist and Load do nothing.
func NewLedger(kv storage.KVStore, clk clock.Clock, cal clock.Calendar, retentionDays int, logger zerolog.Logger) *Ledger {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	l := &Ledger{
		kv:            kv,
		clock:         clk,
		cal:           cal,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "usage-ledger").Logger(),
	}
	l.resetLocked(clk.Now())
	return l
}

// Calendar returns the calendar the ledger partitions time with
func (l *Ledger) Calendar() clock.Calendar {
	return l.cal
}

// resetLocked zeroes the ledger and anchors it at now
func (l *Ledger) resetLocked(now time.Time) {
	l.lastDay = l.cal.DayKey(now)
	l.lastMonth = l.cal.MonthKey(now)
	l.days = map[string]*catalog.CategorySeconds{l.lastDay: {}}
	l.month = make([]catalog.CategorySeconds, l.cal.WeeksInMonth(now))
}

// Tick adds one second of usage in category to today's bucket
func (l *Ledger) Tick(category catalog.Category) {
	if !category.Valid() {
		category = catalog.CategoryOther
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)

	today := l.days[l.lastDay]
	today[category]++

	metrics.UsageSecondsTotal.WithLabelValues(category.String()).Inc()
	metrics.UsageTodaySeconds.Set(float64(today.Total()))
}

// RolloverIfNeeded moves the ledger onto the current day and month.
// It reports whether the day changed.
func (l *Ledger) RolloverIfNeeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	dayChanged, _ := l.rolloverLocked(l.clock.Now())
	return dayChanged
}

// rolloverLocked compares the day and month markers against now
func (l *Ledger) rolloverLocked(now time.Time) (dayChanged, monthChanged bool) {
	dayKey := l.cal.DayKey(now)
	if dayKey != l.lastDay {
		l.logger.Info().
			Str("previous_day", l.lastDay).
			Str("day", dayKey).
			Msg("Day rollover")

		l.lastDay = dayKey
		if _, ok := l.days[dayKey]; !ok {
			l.days[dayKey] = &catalog.CategorySeconds{}
		}
		l.pruneLocked(now)
		metrics.DayRollovers.Inc()
		metrics.UsageTodaySeconds.Set(float64(l.days[dayKey].Total()))
		dayChanged = true
	}

	monthKey := l.cal.MonthKey(now)
	if monthKey != l.lastMonth {
		l.logger.Info().
			Str("previous_month", l.lastMonth).
			Str("month", monthKey).
			Msg("Month rollover")

		l.lastMonth = monthKey
		l.month = make([]catalog.CategorySeconds, l.cal.WeeksInMonth(now))
		metrics.MonthRollovers.Inc()
		monthChanged = true
	}

	return dayChanged, monthChanged
}

// pruneLocked drops day buckets older than the retention window
func (l *Ledger) pruneLocked(now time.Time) {
	for key := range l.days {
		date, err := l.cal.ParseDayKey(key)
		if err != nil {
			delete(l.days, key)
			continue
		}
		if l.cal.DaysBetween(date, now) >= l.retentionDays {
			delete(l.days, key)
		}
	}
}

// SyncWeekToMonth rebuilds the week-of-month buckets from the dated day
// buckets of the current calendar month. Calling it repeatedly without an
// intervening Tick yields identical buckets.
func (l *Ledger) SyncWeekToMonth() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	l.syncLocked(now)
}

func (l *Ledger) syncLocked(now time.Time) {
	month := make([]catalog.CategorySeconds, l.cal.WeeksInMonth(now))
	for key, seconds := range l.days {
		date, err := l.cal.ParseDayKey(key)
		if err != nil || l.cal.MonthKey(date) != l.lastMonth {
			continue
		}
		week := l.cal.WeekOfMonth(date)
		if week < 1 || week > len(month) {
			continue
		}
		month[week-1].Add(*seconds)
	}
	l.month = month
}

// Today returns the current day's bucket
func (l *Ledger) Today() DayBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	return l.bucketLocked(now)
}

// Yesterday returns the bucket for the day before today
func (l *Ledger) Yesterday() DayBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	return l.bucketLocked(l.cal.StartOfDay(now).AddDate(0, 0, -1))
}

// Day returns the bucket for a day key, if it is still held
func (l *Ledger) Day(dayKey string) (DayBucket, bool) {
	date, err := l.cal.ParseDayKey(dayKey)
	if err != nil {
		return DayBucket{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked(l.clock.Now())
	if _, ok := l.days[dayKey]; !ok {
		return DayBucket{}, false
	}
	return l.bucketLocked(date), true
}

// WeekView returns seven buckets indexed by Monday-first weekday. Each slot
// holds the most recent occurrence of that weekday within the trailing week
// ending today.
func (l *Ledger) WeekView() [7]DayBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	return l.weekLocked(now)
}

func (l *Ledger) weekLocked(now time.Time) [7]DayBucket {
	var view [7]DayBucket
	start := l.cal.StartOfDay(now)
	for i := 0; i < 7; i++ {
		bucket := l.bucketLocked(start.AddDate(0, 0, -i))
		view[bucket.Weekday] = bucket
	}
	return view
}

// WeeklyTotal returns the seconds accumulated over the trailing week
func (l *Ledger) WeeklyTotal() int64 {
	view := l.WeekView()
	var total int64
	for _, b := range view {
		total += b.Total()
	}
	return total
}

// MonthBuckets returns the current month's week-of-month buckets, freshly
// reprojected from the day buckets.
func (l *Ledger) MonthBuckets() []MonthBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	l.syncLocked(now)

	out := make([]MonthBucket, len(l.month))
	for i, seconds := range l.month {
		out[i] = MonthBucket{Week: i + 1, Seconds: seconds}
	}
	return out
}

// ComparisonToYesterday returns the percentage change of today's total
// against yesterday's. It is 0 when yesterday has no usage.
func (l *Ledger) ComparisonToYesterday() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	today := l.bucketLocked(now).Total()
	yesterday := l.bucketLocked(l.cal.StartOfDay(now).AddDate(0, 0, -1)).Total()
	return percentChange(today, yesterday)
}

// ComparisonToLastWeek returns the percentage change of the current
// week-of-month against the preceding week of the same month. It is 0 in
// week 1 or when the preceding week has no usage.
func (l *Ledger) ComparisonToLastWeek() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rolloverLocked(now)
	l.syncLocked(now)

	week := l.cal.WeekOfMonth(now)
	if week < 2 || week > len(l.month) {
		return 0
	}
	return percentChange(l.month[week-1].Total(), l.month[week-2].Total())
}

// bucketLocked builds a read-only view of date's bucket
func (l *Ledger) bucketLocked(date time.Time) DayBucket {
	key := l.cal.DayKey(date)
	bucket := DayBucket{Date: key, Weekday: l.cal.WeekdayLabel(date)}
	if seconds, ok := l.days[key]; ok {
		bucket.Seconds = *seconds
	}
	return bucket
}

// Persist writes the ledger to the KV store
func (l *Ledger) Persist(ctx context.Context) error {
	if l.kv == nil {
		return nil
	}

	l.mu.Lock()
	state := ledgerState{
		Version:   stateVersion,
		LastDay:   l.lastDay,
		LastMonth: l.lastMonth,
		Days:      make(map[string]catalog.CategorySeconds, len(l.days)),
		Month:     append([]catalog.CategorySeconds(nil), l.month...),
	}
	for key, seconds := range l.days {
		state.Days[key] = *seconds
	}
	l.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		metrics.PersistErrors.WithLabelValues("usage", "marshal").Inc()
		return fmt.Errorf("failed to marshal usage ledger: %w", err)
	}

	if err := l.kv.Set(ctx, StorageKey, data); err != nil {
		metrics.PersistErrors.WithLabelValues("usage", "write").Inc()
		return fmt.Errorf("failed to write usage ledger: %w", err)
	}

	l.logger.Debug().Int("days", len(state.Days)).Msg("Usage ledger persisted")
	return nil
}

// Load restores the ledger from the KV store. A missing or unreadable
// record leaves the ledger zeroed; errors are logged, never returned.
func (l *Ledger) Load(ctx context.Context) {
	if l.kv == nil {
		return
	}

	state, err := l.readState(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			l.logger.Info().Msg("No stored usage ledger, starting empty")
		} else {
			metrics.PersistErrors.WithLabelValues("usage", "read").Inc()
			l.logger.Error().Err(err).Msg("Failed to load usage ledger, starting empty")
		}
		l.resetLocked(now)
		return
	}

	l.days = make(map[string]*catalog.CategorySeconds, len(state.Days))
	for key, seconds := range state.Days {
		if _, err := l.cal.ParseDayKey(key); err != nil {
			l.logger.Warn().Str("day", key).Msg("Dropping usage bucket with invalid day key")
			continue
		}
		seconds := seconds
		l.days[key] = &seconds
	}
	l.lastDay = state.LastDay
	l.lastMonth = state.LastMonth
	l.month = state.Month
	if _, ok := l.days[l.lastDay]; !ok {
		l.days[l.lastDay] = &catalog.CategorySeconds{}
	}

	l.rolloverLocked(now)
	l.syncLocked(now)

	l.logger.Info().
		Int("days", len(l.days)).
		Str("last_day", l.lastDay).
		Msg("Usage ledger loaded")
}

func (l *Ledger) readState(ctx context.Context) (*ledgerState, error) {
	data, err := l.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, err
	}

	var state ledgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage ledger: %w", err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("unsupported usage ledger version %d", state.Version)
	}
	if _, err := l.cal.ParseDayKey(state.LastDay); err != nil {
		return nil, fmt.Errorf("invalid last_day %q: %w", state.LastDay, err)
	}
	return &state, nil
}
