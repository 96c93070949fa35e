package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/goodtune/kfocus/internal/storage/redis"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the widget snapshot whenever a refresh is requested",
	Long: `Follow the shared snapshot store the way a home-screen widget does. With the
redis backend refresh requests arrive over pub/sub. With bolt the running
daemon's refresh sequence is polled over its API; without a daemon nothing
can publish, so the latest snapshot is printed once.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Poll interval for the bolt backend")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.Type == "redis" {
		store, err := redis.Open(cfg.Storage.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		snapshots := store.Snapshots()
		seq, _ := snapshots.RefreshSequence(ctx)
		printLatest(ctx, latestFromStore(snapshots), seq)
		return watchPubSub(ctx, store, snapshots)
	}

	b, err := openBackend(ctx, cfg, quietLogger())
	if err != nil {
		return err
	}
	defer b.Close()

	seq, err := b.RefreshSequence(ctx)
	if err != nil {
		return fmt.Errorf("failed to read refresh sequence: %w", err)
	}
	printLatest(ctx, b.Latest, seq)

	if _, ok := b.(*remoteBackend); !ok {
		color.New(color.Faint).Println("daemon not running, nothing will publish")
		return nil
	}
	return watchPoll(ctx, b, seq)
}

func latestFromStore(snapshots storage.SnapshotStore) func(context.Context) (storage.Snapshot, error) {
	return func(ctx context.Context) (storage.Snapshot, error) {
		snap, err := snapshots.Latest(ctx)
		if err != nil {
			return storage.Snapshot{}, err
		}
		return *snap, nil
	}
}

func watchPubSub(ctx context.Context, rs *redis.Store, snapshots storage.SnapshotStore) error {
	sub := rs.SubscribeRefresh(ctx)
	defer sub.Close()

	latest := latestFromStore(snapshots)
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			seq, _ := strconv.ParseUint(msg.Payload, 10, 64)
			printLatest(ctx, latest, seq)
		}
	}
}

// watchPoll prints the snapshot each time the refresh sequence moves
func watchPoll(ctx context.Context, b backend, last uint64) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			seq, err := b.RefreshSequence(ctx)
			if err != nil {
				color.Red("failed to read refresh sequence: %v", err)
				continue
			}
			if seq != last {
				last = seq
				printLatest(ctx, b.Latest, seq)
			}
		}
	}
}

func printLatest(ctx context.Context, latest func(context.Context) (storage.Snapshot, error), seq uint64) {
	snap, err := latest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		color.New(color.Faint).Println("no snapshot published yet")
		return
	}
	if err != nil {
		color.Red("failed to read snapshot: %v", err)
		return
	}

	streak := "no active streak"
	if snap.BestStreakFilter != "" {
		streak = fmt.Sprintf("%s %dd (record %dd)", snap.BestStreakFilter, snap.BestStreakDays, snap.BestStreakRecord)
	}

	fmt.Printf("%s #%d  today %s  yesterday %s  week %s  %s  %s\n",
		snap.GeneratedAt.Local().Format("15:04:05"),
		seq,
		color.New(color.Bold).Sprint(usage.FormattedTime(snap.TodaySeconds)),
		usage.FormattedTime(snap.YesterdaySeconds),
		usage.FormattedTime(snap.WeeklySeconds),
		formatChange(snap.PercentChange),
		streak,
	)
}
