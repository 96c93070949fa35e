package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/spf13/cobra"
)

var streaksCmd = &cobra.Command{
	Use:   "streaks",
	Short: "Show filter streaks",
	Long:  `Show every content filter with its toggle state, current streak and personal record.`,
	Args:  cobra.NoArgs,
	RunE:  runStreaks,
}

var filterCmd = &cobra.Command{
	Use:   "filter FILTER on|off",
	Short: "Turn a content filter on or off",
	Long: `Turn a content filter on or off. The toggle store is updated first, then
the filter's streak is started or ended and a new snapshot is published.`,
	Example: `  kfocus filter reels on
  kfocus -c config.yaml filter stories off`,
	Args: cobra.ExactArgs(2),
	RunE: runFilter,
}

func init() {
	rootCmd.AddCommand(streaksCmd)
	rootCmd.AddCommand(filterCmd)
}

func runStreaks(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loc, err := cfg.Tracking.Location()
	if err != nil {
		return err
	}
	cal := clock.NewCalendar(loc)

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, quietLogger())
	if err != nil {
		return err
	}
	defer b.Close()

	statuses, err := b.Filters(ctx)
	if err != nil {
		return err
	}
	best, ok, err := b.BestStreak(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.Faint)

	_, _ = cyan.Printf("\n%-10s %-8s %8s %8s  %s\n", "FILTER", "STATE", "CURRENT", "RECORD", "SINCE")
	for _, status := range statuses {
		state := dim.Sprintf("%-8s", "off")
		if status.Enabled {
			state = green.Sprintf("%-8s", "on")
		}
		since := "-"
		if status.Streak.StartDate != nil {
			since = cal.DayKey(*status.Streak.StartDate)
		}
		fmt.Printf("%-10s %s %8d %8d  %s\n",
			status.Name, state, status.Streak.CurrentDays, status.Streak.RecordDays(), since)
	}

	if ok {
		fmt.Printf("\nBest active streak: %s, %s\n", best.Filter.Name(), green.Sprintf("%d days", best.Days))
	} else {
		_, _ = dim.Println("\nNo active streaks")
	}
	fmt.Println()

	return nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	id, ok := catalog.ParseFilterID(args[0])
	if !ok {
		keys := make([]string, 0, catalog.NumFilters)
		for _, f := range catalog.Filters() {
			keys = append(keys, f.String())
		}
		return fmt.Errorf("unknown filter %q (expected one of: %s)", args[0], strings.Join(keys, ", "))
	}

	var enabled bool
	switch strings.ToLower(args[1]) {
	case "on", "enable", "true":
		enabled = true
	case "off", "disable", "false":
		enabled = false
	default:
		return fmt.Errorf("invalid state %q (expected on or off)", args[1])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, quietLogger())
	if err != nil {
		return err
	}
	defer b.Close()

	change, err := b.SetFilter(ctx, id, enabled)
	if err != nil {
		return err
	}

	if enabled {
		color.Green("✓ %s filter enabled, streak at %d day(s)", id.Name(), change.Streak.CurrentDays)
		return nil
	}
	if change.LostDays > 0 {
		color.Yellow("✗ %s filter disabled, %d day streak lost (record %d)", id.Name(), change.LostDays, change.Streak.LongestDays)
		return nil
	}
	color.Yellow("✗ %s filter disabled", id.Name())
	return nil
}
