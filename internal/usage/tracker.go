package usage

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/rs/zerolog"
)

const (
	// DefaultTickInterval is how often the tracker samples the current category
	DefaultTickInterval = time.Second

	// DefaultCheckpointTicks is how many ticks pass between persistence checkpoints
	DefaultCheckpointTicks = 30
)

// CategorySource reports what the user is currently viewing. ok is false
// when nothing should be counted (no page loaded, session idle).
type CategorySource interface {
	Current() (category catalog.Category, ok bool)
}

// Publisher exports the latest computed snapshot
type Publisher interface {
	Publish(ctx context.Context) error
}

// Config holds tracker configuration
type Config struct {
	TickInterval    time.Duration
	CheckpointTicks int
}

// Tracker drives the ledger from a periodic tick
type Tracker struct {
	ledger          *Ledger
	source          CategorySource
	publisher       Publisher
	tickInterval    time.Duration
	checkpointTicks int
	logger          zerolog.Logger

	mu       sync.Mutex
	ticks    int
	paused   bool
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewTracker creates a new usage tracker. publisher may be nil.
func NewTracker(ledger *Ledger, source CategorySource, publisher Publisher, config Config, logger zerolog.Logger) *Tracker {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.CheckpointTicks <= 0 {
		config.CheckpointTicks = DefaultCheckpointTicks
	}

	return &Tracker{
		ledger:          ledger,
		source:          source,
		publisher:       publisher,
		tickInterval:    config.TickInterval,
		checkpointTicks: config.CheckpointTicks,
		logger:          logger.With().Str("component", "usage-tracker").Logger(),
	}
}

// Step performs one tick: sample the category, count it, and checkpoint
// every CheckpointTicks counted ticks. It reports whether a second was counted.
func (t *Tracker) Step(ctx context.Context) bool {
	t.mu.Lock()
	if t.paused {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	category, ok := t.source.Current()
	if !ok {
		return false
	}
	t.ledger.Tick(category)

	t.mu.Lock()
	t.ticks++
	checkpoint := t.ticks%t.checkpointTicks == 0
	t.mu.Unlock()

	if checkpoint {
		t.Flush(ctx)
	}
	return true
}

// Flush persists the ledger and publishes a snapshot. Failures are logged.
func (t *Tracker) Flush(ctx context.Context) {
	if err := t.ledger.Persist(ctx); err != nil {
		t.logger.Error().Err(err).Msg("Failed to persist usage ledger")
	}
	if t.publisher != nil {
		if err := t.publisher.Publish(ctx); err != nil {
			t.logger.Error().Err(err).Msg("Failed to publish snapshot")
		}
	}
}

// Start begins ticking in the background
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(t.stopChan, t.done)

	t.logger.Info().
		Dur("tick_interval", t.tickInterval).
		Int("checkpoint_ticks", t.checkpointTicks).
		Msg("Usage tracker started")
}

// Stop halts ticking and flushes the ledger
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopChan)
	done := t.done
	t.mu.Unlock()

	<-done
	t.Flush(context.Background())
	t.logger.Info().Msg("Usage tracker stopped")
}

// Pause stops counting without stopping the loop, then flushes
func (t *Tracker) Pause(ctx context.Context) {
	t.mu.Lock()
	wasPaused := t.paused
	t.paused = true
	t.mu.Unlock()

	if !wasPaused {
		t.logger.Debug().Msg("Usage tracking paused")
		t.Flush(ctx)
	}
}

// Resume restarts counting
func (t *Tracker) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()

	t.ledger.RolloverIfNeeded()
	t.logger.Debug().Msg("Usage tracking resumed")
}

// Paused reports whether counting is paused
func (t *Tracker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// run is the main tick loop
func (t *Tracker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Step(context.Background())
		case <-stop:
			return
		}
	}
}
