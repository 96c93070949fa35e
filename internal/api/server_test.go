package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/snapshot"
	"github.com/goodtune/kfocus/internal/stats"
	"github.com/goodtune/kfocus/internal/storage/bolt"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-14 is a Wednesday.
var now = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *bolt.Store
	clock   *clock.TestClock
	usage   *usage.Ledger
	streaks *streak.Ledger
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "kfocus.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zerolog.Nop()
	clk := clock.NewTestClock(now)
	cal := clock.NewCalendar(time.UTC)

	usageLedger := usage.NewLedger(store.KV(), clk, cal, 0, logger)
	streakLedger := streak.NewLedger(store.KV(), clk, cal, logger)
	publisher := snapshot.NewPublisher(usageLedger, streakLedger, store.Snapshots(), clk, logger)

	engine, err := classify.NewEngine(config.ClassifierConfig{CacheSize: 16}, logger)
	require.NoError(t, err)
	location := classify.NewLocation(engine, logger)

	filterService := filters.NewService(store.Toggles(), streakLedger, publisher, logger)

	deps := Deps{
		Usage:      usageLedger,
		Tracker:    usage.NewTracker(usageLedger, location, filterService, usage.Config{}, logger),
		Streaks:    streakLedger,
		Stats:      stats.NewProjector(streakLedger, store.Toggles(), publisher, clk, cal, true, logger),
		Filters:    filterService,
		Classifier: engine,
		Location:   location,
		Snapshots:  publisher,
	}

	return &fixture{
		store:   store,
		clock:   clk,
		usage:   usageLedger,
		streaks: streakLedger,
		handler: NewServer("127.0.0.1:0", deps, logger).Handler(),
	}
}

// enable turns a filter on the way the filters service does
func (f *fixture) enable(t *testing.T, id catalog.FilterID) {
	t.Helper()
	require.NoError(t, f.store.Toggles().SetEnabled(context.Background(), id.String(), true))
	f.streaks.Activate(id)
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUsageEndpoints(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 90; i++ {
		f.usage.Tick(catalog.CategoryReels)
	}

	rec := f.do(t, http.MethodGet, "/api/usage/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decode(t, rec)
	assert.Equal(t, "2026-10-14", today["date"])
	assert.Equal(t, "Wed", today["weekday"])
	assert.Equal(t, float64(90), today["total_seconds"])
	assert.Equal(t, "1m", today["formatted"])

	rec = f.do(t, http.MethodGet, "/api/usage/yesterday", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["total_seconds"])

	rec = f.do(t, http.MethodGet, "/api/usage/week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decode(t, rec)
	assert.Len(t, week["days"], 7)
	assert.Equal(t, float64(90), week["total_seconds"])

	rec = f.do(t, http.MethodGet, "/api/usage/month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	weeks := decode(t, rec)["weeks"].([]any)
	assert.Len(t, weeks, 5)
	assert.Equal(t, float64(90), weeks[2].(map[string]any)["total_seconds"])

	rec = f.do(t, http.MethodGet, "/api/usage/comparison", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comparison := decode(t, rec)
	assert.Equal(t, float64(0), comparison["vs_yesterday_percent"])
	assert.Equal(t, float64(90), comparison["today_seconds"])
}

func TestUsageDayEndpoint(t *testing.T) {
	f := newFixture(t)
	f.usage.Tick(catalog.CategoryFeed)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/usage/day/2026-10-14", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/usage/day/2026-01-01", nil).Code)

	rec := f.do(t, http.MethodGet, "/api/usage/day/yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decode(t, rec)["error"])
}

func TestFilterToggle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/filters/reels", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["lost_streak_days"])

	f.clock.AdvanceDays(2)

	rec = f.do(t, http.MethodPut, "/api/filters/reels", map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["lost_streak_days"])
	assert.Equal(t, false, body["enabled"])

	rec = f.do(t, http.MethodGet, "/api/filters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["filters"].([]any)
	require.Len(t, list, catalog.NumFilters)
	first := list[0].(map[string]any)
	assert.Equal(t, "reels", first["filter"])
	assert.Equal(t, false, first["enabled"])
	assert.Equal(t, float64(3), first["streak"].(map[string]any)["longest_days"])
}

func TestFilterToggleErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/filters/shorts", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPut, "/api/filters/reels", map[string]string{"state": "on"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode(t, rec)["error"])
}

func TestStreakEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/streaks/best", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	best := decode(t, rec)
	assert.Equal(t, false, best["active"])
	assert.NotContains(t, best, "filter")

	f.enable(t, catalog.FilterExplore)
	f.clock.AdvanceDays(1)
	f.enable(t, catalog.FilterStories)

	rec = f.do(t, http.MethodGet, "/api/streaks/best", nil)
	best = decode(t, rec)
	assert.Equal(t, true, best["active"])
	assert.Equal(t, "explore", best["filter"])
	assert.Equal(t, float64(2), best["days"])

	rec = f.do(t, http.MethodGet, "/api/streaks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["streaks"], catalog.NumFilters)
	assert.Len(t, body["active"], 2)
}

func TestStreaksFollowTogglesChangedElsewhere(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/filters/reels", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	f.clock.AdvanceDays(3)

	require.NoError(t, f.store.Toggles().SetEnabled(context.Background(), "reels", false))

	rec = f.do(t, http.MethodGet, "/api/streaks/best", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["active"])

	rec = f.do(t, http.MethodGet, "/api/snapshot?fresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode(t, rec)
	assert.Equal(t, float64(0), snap["best_streak_days"])
	assert.Equal(t, "", snap["best_streak_filter"])

	assert.Equal(t, 4, f.streaks.LongestStreak(catalog.FilterReels))
}

func TestStatsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.Equal(t, true, summary["simulated"])
	assert.Len(t, summary["filters"], catalog.NumFilters)

	// No filter is enabled, so simulation cannot be left
	rec = f.do(t, http.MethodPost, "/api/stats/simulation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decode(t, rec)
	assert.Equal(t, true, toggled["simulated"])
	assert.Equal(t, false, toggled["changed"])

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/filters/stories", map[string]bool{"enabled": true}).Code)

	rec = f.do(t, http.MethodPost, "/api/stats/simulation", nil)
	toggled = decode(t, rec)
	assert.Equal(t, false, toggled["simulated"])
	assert.Equal(t, true, toggled["changed"])

	rec = f.do(t, http.MethodGet, "/api/stats/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chart := decode(t, rec)
	assert.Len(t, chart["points"], 7)
	assert.Equal(t, false, chart["show_chart"])
}

func TestLocationAndLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/location", nil)
	assert.Equal(t, false, decode(t, rec)["active"])

	rec = f.do(t, http.MethodPost, "/api/location", map[string]string{"url": "https://www.instagram.com/reels/"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reels", decode(t, rec)["category"])

	rec = f.do(t, http.MethodGet, "/api/location", nil)
	location := decode(t, rec)
	assert.Equal(t, true, location["active"])
	assert.Equal(t, "reels", location["category"])

	rec = f.do(t, http.MethodPost, "/api/location", map[string]string{"url": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/lifecycle/background", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["paused"])

	rec = f.do(t, http.MethodPost, "/api/lifecycle/foreground", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["paused"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/lifecycle/sleeping", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/location", nil).Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/snapshot?fresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["id"])

	// Enabling a filter publishes a snapshot
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/filters/explore", map[string]bool{"enabled": true}).Code)

	rec = f.do(t, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode(t, rec)
	assert.Equal(t, "Explore", snap["best_streak_filter"])
	assert.Equal(t, float64(1), snap["best_streak_days"])
}

func TestSystemEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/system/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = f.do(t, http.MethodPost, "/api/system/reload-policy", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])
}

func TestServerStartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", Deps{}, zerolog.Nop())
	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Stop(context.Background()))
}
