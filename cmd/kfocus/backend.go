package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/goodtune/kfocus/internal/api"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/stats"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/rs/zerolog"
)

const (
	daemonCheckTimeout   = 500 * time.Millisecond
	daemonRequestTimeout = 5 * time.Second
)

// backend is what the one-shot subcommands read from and write to. With
// redis every process opens the store directly. A bolt file can only be
// held by one process, so while the daemon runs the subcommands go
// through its API instead.
type backend interface {
	Report(ctx context.Context) (report, error)
	Filters(ctx context.Context) ([]filters.Status, error)
	BestStreak(ctx context.Context) (streak.Ranked, bool, error)
	SetFilter(ctx context.Context, id catalog.FilterID, enabled bool) (filterChange, error)
	Latest(ctx context.Context) (storage.Snapshot, error)
	RefreshSequence(ctx context.Context) (uint64, error)
	Close() error
}

// report is everything `kfocus stats` prints
type report struct {
	Today        usage.DayBucket     `json:"today"`
	Yesterday    usage.DayBucket     `json:"yesterday"`
	Week         []usage.DayBucket   `json:"week"`
	Month        []usage.MonthBucket `json:"month"`
	VsYesterday  float64             `json:"vs_yesterday"`
	VsLastWeek   float64             `json:"vs_last_week"`
	MinutesSaved stats.Summary       `json:"minutes_saved"`
}

// filterChange is the outcome of turning a filter on or off
type filterChange struct {
	LostDays int
	Streak   streak.Streak
}

// openBackend picks the local store or a running daemon's API
func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (backend, error) {
	if cfg.Storage.Type == "redis" {
		return openLocal(ctx, cfg, logger)
	}

	client := api.NewClient(daemonURL(cfg.Server), daemonRequestTimeout)
	checkCtx, cancel := context.WithTimeout(ctx, daemonCheckTimeout)
	defer cancel()
	if _, err := client.Health(checkCtx); err == nil {
		logger.Debug().Str("url", daemonURL(cfg.Server)).Msg("Using running daemon")
		return &remoteBackend{client: client}, nil
	}

	b, err := openLocal(ctx, cfg, logger)
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("%w: the daemon holds %s but its API is not reachable at %s",
			err, cfg.Storage.Path, daemonURL(cfg.Server))
	}
	return b, err
}

func openLocal(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (backend, error) {
	app, err := openCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &localBackend{app: app}, nil
}

// daemonURL is the API address the daemon listens on, as seen from this host
func daemonURL(cfg config.ServerConfig) string {
	host := cfg.BindAddress
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.APIPort))
}

type localBackend struct {
	app *core
}

func (b *localBackend) Report(ctx context.Context) (report, error) {
	l := b.app.usage
	week := l.WeekView()
	return report{
		Today:        l.Today(),
		Yesterday:    l.Yesterday(),
		Week:         week[:],
		Month:        l.MonthBuckets(),
		VsYesterday:  l.ComparisonToYesterday(),
		VsLastWeek:   l.ComparisonToLastWeek(),
		MinutesSaved: b.app.stats.Summary(ctx),
	}, nil
}

func (b *localBackend) Filters(ctx context.Context) ([]filters.Status, error) {
	return b.app.filters.List(ctx)
}

func (b *localBackend) BestStreak(ctx context.Context) (streak.Ranked, bool, error) {
	best, ok := b.app.streaks.BestActiveStreak()
	return best, ok, nil
}

func (b *localBackend) SetFilter(ctx context.Context, id catalog.FilterID, enabled bool) (filterChange, error) {
	lost, err := b.app.filters.SetEnabled(ctx, id, enabled)
	if err != nil {
		return filterChange{}, err
	}
	return filterChange{LostDays: lost, Streak: b.app.streaks.Streak(id)}, nil
}

func (b *localBackend) Latest(ctx context.Context) (storage.Snapshot, error) {
	snap, err := b.app.publisher.Latest(ctx)
	if err != nil {
		return storage.Snapshot{}, err
	}
	return *snap, nil
}

func (b *localBackend) RefreshSequence(ctx context.Context) (uint64, error) {
	return b.app.publisher.RefreshSequence(ctx)
}

func (b *localBackend) Close() error {
	return b.app.Close()
}

type remoteBackend struct {
	client *api.Client
}

func (b *remoteBackend) Report(ctx context.Context) (report, error) {
	var r report

	today, err := b.client.Day(ctx, "today")
	if err != nil {
		return r, err
	}
	yesterday, err := b.client.Day(ctx, "yesterday")
	if err != nil {
		return r, err
	}
	week, err := b.client.Week(ctx)
	if err != nil {
		return r, err
	}
	month, err := b.client.Month(ctx)
	if err != nil {
		return r, err
	}
	cmp, err := b.client.Comparison(ctx)
	if err != nil {
		return r, err
	}
	summary, err := b.client.Stats(ctx)
	if err != nil {
		return r, err
	}

	r.Today = today.DayBucket
	r.Yesterday = yesterday.DayBucket
	for _, day := range week.Days {
		r.Week = append(r.Week, day.DayBucket)
	}
	for _, w := range month.Weeks {
		r.Month = append(r.Month, w.MonthBucket)
	}
	r.VsYesterday = cmp.VsYesterday
	r.VsLastWeek = cmp.VsLastWeek
	r.MinutesSaved = summary
	return r, nil
}

func (b *remoteBackend) Filters(ctx context.Context) ([]filters.Status, error) {
	return b.client.Filters(ctx)
}

func (b *remoteBackend) BestStreak(ctx context.Context) (streak.Ranked, bool, error) {
	best, err := b.client.BestStreak(ctx)
	if err != nil || !best.Active || best.Filter == nil {
		return streak.Ranked{}, false, err
	}
	return streak.Ranked{Filter: *best.Filter, Days: best.Days}, true, nil
}

func (b *remoteBackend) SetFilter(ctx context.Context, id catalog.FilterID, enabled bool) (filterChange, error) {
	resp, err := b.client.SetFilter(ctx, id, enabled)
	if err != nil {
		return filterChange{}, err
	}
	return filterChange{LostDays: resp.LostStreakDays, Streak: resp.Streak}, nil
}

func (b *remoteBackend) Latest(ctx context.Context) (storage.Snapshot, error) {
	return b.client.Snapshot(ctx)
}

func (b *remoteBackend) RefreshSequence(ctx context.Context) (uint64, error) {
	return b.client.RefreshSequence(ctx)
}

func (b *remoteBackend) Close() error {
	return nil
}
