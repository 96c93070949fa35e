package usage

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/kfocus/internal/clock"
	"github.com/rs/zerolog"
)

// rolloverSlack delays the wake-up past midnight so the clock is
// unambiguously on the new day.
const rolloverSlack = time.Second

// RolloverScheduler rolls the ledger over at each local midnight so that
// persisted state and widgets move to the new day even when nothing ticks.
type RolloverScheduler struct {
	ledger    *Ledger
	publisher Publisher
	clock     clock.Clock
	logger    zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewRolloverScheduler creates a new rollover scheduler. publisher may be nil.
func NewRolloverScheduler(ledger *Ledger, publisher Publisher, clk clock.Clock, logger zerolog.Logger) *RolloverScheduler {
	return &RolloverScheduler{
		ledger:    ledger,
		publisher: publisher,
		clock:     clk,
		logger:    logger.With().Str("component", "rollover-scheduler").Logger(),
	}
}

// Start begins the rollover scheduler. Starting a running scheduler does nothing.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.running {
		return
	}
	rs.running = true
	rs.stopChan = make(chan struct{})
	rs.done = make(chan struct{})

	go rs.run(rs.stopChan, rs.done)
	rs.logger.Info().Msg("Daily rollover scheduler started")
}

// Stop stops the rollover scheduler and waits for its loop to exit.
// Stopping a stopped scheduler does nothing.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	close(rs.stopChan)
	done := rs.done
	rs.mu.Unlock()

	<-done
	rs.logger.Info().Msg("Daily rollover scheduler stopped")
}

// Running reports whether the scheduler loop is active
func (rs *RolloverScheduler) Running() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.running
}

// run is the main scheduler loop
func (rs *RolloverScheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		nextRollover := rs.nextRollover()
		waitDuration := nextRollover.Sub(rs.clock.Now())

		rs.logger.Debug().
			Time("next_rollover", nextRollover).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next daily rollover")

		// Wait until rollover time or stop signal
		select {
		case <-time.After(waitDuration):
			rs.performRollover(context.Background())
		case <-stop:
			return
		}
	}
}

// nextRollover returns the next local midnight plus slack
func (rs *RolloverScheduler) nextRollover() time.Time {
	return rs.ledger.Calendar().NextMidnight(rs.clock.Now()).Add(rolloverSlack)
}

// performRollover moves the ledger onto the new day and exports the result
func (rs *RolloverScheduler) performRollover(ctx context.Context) {
	changed := rs.ledger.RolloverIfNeeded()
	rs.ledger.SyncWeekToMonth()

	if err := rs.ledger.Persist(ctx); err != nil {
		rs.logger.Error().Err(err).Msg("Failed to persist usage ledger after rollover")
	}

	if rs.publisher != nil {
		if err := rs.publisher.Publish(ctx); err != nil {
			rs.logger.Error().Err(err).Msg("Failed to publish snapshot after rollover")
		}
	}

	rs.logger.Info().
		Bool("day_changed", changed).
		Str("day", rs.ledger.Today().Date).
		Msg("Daily rollover complete")
}
