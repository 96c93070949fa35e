package classify

import (
	"context"
	"sync"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/rs/zerolog"
)

// Location holds the page the user is currently viewing and reports its
// category to the usage tracker.
type Location struct {
	engine *Engine
	logger zerolog.Logger

	mu       sync.RWMutex
	url      string
	category catalog.Category
	set      bool
}

// NewLocation creates an empty location source
func NewLocation(engine *Engine, logger zerolog.Logger) *Location {
	return &Location{
		engine: engine,
		logger: logger.With().Str("component", "location").Logger(),
	}
}

// Set records a new page URL and classifies it
func (l *Location) Set(ctx context.Context, rawURL string) (catalog.Category, error) {
	category, err := l.engine.Classify(ctx, rawURL)
	if err != nil {
		return catalog.CategoryOther, err
	}

	l.mu.Lock()
	l.url = rawURL
	l.category = category
	l.set = true
	l.mu.Unlock()

	l.logger.Debug().Str("url", rawURL).Str("category", category.String()).Msg("Location updated")
	return category, nil
}

// Clear forgets the current page; nothing is counted until the next Set
func (l *Location) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.url = ""
	l.category = catalog.CategoryOther
	l.set = false
}

// Current implements usage.CategorySource
func (l *Location) Current() (catalog.Category, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.category, l.set
}

// URL returns the current page URL, or "" when none is set
func (l *Location) URL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.url
}
