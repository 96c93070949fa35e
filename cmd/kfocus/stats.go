package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/usage"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage and minutes-saved statistics",
	Long:  `Show today's usage by category, the trailing week, the month's week buckets and the minutes saved by enabled filters.`,
	Example: `  kfocus stats
  kfocus -c config.yaml stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print machine-readable JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	r, err := b.Report(ctx)
	if err != nil {
		return fmt.Errorf("failed to read statistics: %w", err)
	}
	summary := r.MinutesSaved

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	today := r.Today
	_, _ = cyan.Println("\nToday")
	fmt.Printf("  Total:        %s\n", bold.Sprint(today.Formatted()))
	for _, category := range catalog.Categories() {
		seconds := today.Seconds[category]
		if seconds == 0 {
			continue
		}
		fmt.Printf("  %-13s %s\n", category.String()+":", usage.FormattedTime(seconds))
	}
	fmt.Printf("  vs yesterday: %s\n", formatChange(r.VsYesterday))

	_, _ = cyan.Println("\nThis week")
	var weekTotal int64
	for _, day := range r.Week {
		weekTotal += day.Total()
		label := day.Date
		if label == "" {
			label = "-"
		}
		fmt.Printf("  %s %-10s %8s %s\n", day.Weekday, label, day.Formatted(), bar(day.Total(), 3600))
	}
	fmt.Printf("  Total: %s\n", bold.Sprint(usage.FormattedTime(weekTotal)))

	_, _ = cyan.Println("\nThis month")
	for _, w := range r.Month {
		fmt.Printf("  Week %d  %8s\n", w.Week, usage.FormattedTime(w.Total()))
	}
	fmt.Printf("  vs last week: %s\n", formatChange(r.VsLastWeek))

	title := "\nMinutes saved"
	if summary.Simulated {
		title += " (simulated)"
	}
	_, _ = cyan.Println(title)
	for _, stat := range summary.Filters {
		fmt.Printf("  %-10s %3d days x %2d min = %s\n",
			stat.Name, stat.DaysActive, stat.DailyMinutesSaved,
			bold.Sprintf("%d min", stat.TotalMinutesSaved))
	}
	fmt.Printf("  Total: %s  (weekly %d, monthly %d)\n",
		bold.Sprintf("%d min", summary.TotalMinutesSaved),
		summary.WeeklyMinutesSaved, summary.MonthlyMinutesSaved)

	if summary.ShowChart {
		fmt.Println()
		for _, point := range summary.Chart {
			fmt.Printf("  %s %5d %s\n", point.Weekday, point.Minutes, bar(int64(point.Minutes), 60))
		}
	} else {
		_, _ = dim.Println("  Chart appears once filters have been on for a full day")
	}
	fmt.Println()

	return nil
}

// formatChange colors a usage change: less usage is good
func formatChange(percent float64) string {
	text := fmt.Sprintf("%+.1f%%", percent)
	switch {
	case percent < 0:
		return color.GreenString(text)
	case percent > 0:
		return color.RedString(text)
	default:
		return text
	}
}

// bar draws one block per unit, capped for terminal width
func bar(value, unit int64) string {
	n := int(value / unit)
	if n > 40 {
		n = 40
	}
	return strings.Repeat("█", n)
}
