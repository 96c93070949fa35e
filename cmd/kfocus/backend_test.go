package main

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/goodtune/kfocus/internal/api"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "kfocus.bolt")
	cfg.Tracking.Timezone = "UTC"
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.APIPort = freePort(t)
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// startDaemon opens the store the way serve does and serves its API
func startDaemon(t *testing.T, cfg *config.Config) *core {
	t.Helper()
	logger := zerolog.Nop()

	app, err := openCore(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open core: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	classifier, err := classify.NewEngine(config.ClassifierConfig{CacheSize: 16}, logger)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	location := classify.NewLocation(classifier, logger)

	handler := api.NewServer("127.0.0.1:0", api.Deps{
		Usage:      app.usage,
		Tracker:    usage.NewTracker(app.usage, location, app.filters, usage.Config{}, logger),
		Streaks:    app.streaks,
		Stats:      app.stats,
		Filters:    app.filters,
		Classifier: classifier,
		Location:   location,
		Snapshots:  app.publisher,
	}, logger).Handler()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	cfg.Server.APIPort = port
	return app
}

func TestDaemonURL(t *testing.T) {
	tests := []struct {
		bind string
		want string
	}{
		{"127.0.0.1", "http://127.0.0.1:8470"},
		{"", "http://127.0.0.1:8470"},
		{"0.0.0.0", "http://127.0.0.1:8470"},
		{"::", "http://127.0.0.1:8470"},
		{"::1", "http://[::1]:8470"},
		{"192.168.1.20", "http://192.168.1.20:8470"},
	}

	for _, tt := range tests {
		got := daemonURL(config.ServerConfig{BindAddress: tt.bind, APIPort: 8470})
		if got != tt.want {
			t.Errorf("daemonURL(%q) = %q, want %q", tt.bind, got, tt.want)
		}
	}
}

func TestOpenBackend_LocalWithoutDaemon(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	b, err := openBackend(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer func() { _ = b.Close() }()

	if _, ok := b.(*localBackend); !ok {
		t.Fatalf("expected local backend, got %T", b)
	}

	change, err := b.SetFilter(ctx, catalog.FilterReels, true)
	if err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if !change.Streak.Active || change.Streak.CurrentDays != 1 {
		t.Fatalf("unexpected streak after enabling: %+v", change.Streak)
	}

	best, ok, err := b.BestStreak(ctx)
	if err != nil || !ok || best.Filter != catalog.FilterReels {
		t.Fatalf("best streak = %+v, %v, %v", best, ok, err)
	}
}

func TestOpenBackend_UsesDaemonHoldingTheStore(t *testing.T) {
	cfg := testConfig(t)
	daemon := startDaemon(t, cfg)
	ctx := context.Background()

	b, err := openBackend(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openBackend while daemon runs: %v", err)
	}
	defer func() { _ = b.Close() }()

	if _, ok := b.(*remoteBackend); !ok {
		t.Fatalf("expected remote backend, got %T", b)
	}

	before, err := b.RefreshSequence(ctx)
	if err != nil {
		t.Fatalf("refresh sequence: %v", err)
	}

	change, err := b.SetFilter(ctx, catalog.FilterStories, true)
	if err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if !change.Streak.Active {
		t.Fatalf("expected active streak, got %+v", change.Streak)
	}
	if !daemon.streaks.IsActive(catalog.FilterStories) {
		t.Fatal("daemon ledger did not record the streak")
	}

	statuses, err := b.Filters(ctx)
	if err != nil {
		t.Fatalf("filters: %v", err)
	}
	if len(statuses) != catalog.NumFilters {
		t.Fatalf("expected %d filters, got %d", catalog.NumFilters, len(statuses))
	}

	best, ok, err := b.BestStreak(ctx)
	if err != nil || !ok || best.Filter != catalog.FilterStories || best.Days != 1 {
		t.Fatalf("best streak = %+v, %v, %v", best, ok, err)
	}

	r, err := b.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.Today.Date != daemon.usage.Today().Date {
		t.Fatalf("report today = %q, daemon today = %q", r.Today.Date, daemon.usage.Today().Date)
	}
	if len(r.Week) != 7 {
		t.Fatalf("expected 7 week days, got %d", len(r.Week))
	}

	after, err := b.RefreshSequence(ctx)
	if err != nil {
		t.Fatalf("refresh sequence: %v", err)
	}
	if after <= before {
		t.Fatalf("refresh sequence did not advance: %d -> %d", before, after)
	}

	snap, err := b.Latest(ctx)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.BestStreakFilter != "Stories" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestOpenBackend_LockedWithoutAPI(t *testing.T) {
	cfg := testConfig(t)

	holder, err := openCore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open core: %v", err)
	}
	defer func() { _ = holder.Close() }()

	b, err := openBackend(context.Background(), cfg, zerolog.Nop())
	if !errors.Is(err, storage.ErrLocked) {
		if b != nil {
			_ = b.Close()
		}
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
