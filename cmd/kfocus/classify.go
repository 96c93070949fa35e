package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/classify"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify URL...",
	Short: "Check which usage category a page belongs to",
	Long:  `Evaluate the category policy for one or more page URLs and show the category time on that page is counted under.`,
	Example: `  kfocus classify https://www.instagram.com/reels/
  kfocus -c config.yaml classify instagram.com/direct/inbox/ instagram.com/explore/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	engine, err := classify.NewEngine(cfg.Classifier, quietLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	_, _ = cyan.Println("\n=== Category Check ===")
	fmt.Printf("Policy:     %s\n", strings.Join(engine.PolicyFiles(), ", "))
	fmt.Println()

	ctx := context.Background()
	failed := 0
	for _, rawURL := range args {
		category, err := engine.Classify(ctx, rawURL)
		if err != nil {
			failed++
			_, _ = red.Printf("%-50s ERROR: %v\n", rawURL, err)
			continue
		}
		fmt.Printf("%-50s %s\n", rawURL, categoryColor(category).Sprint(category))
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d of %d URLs could not be classified", failed, len(args))
	}
	return nil
}

func categoryColor(c catalog.Category) *color.Color {
	switch c {
	case catalog.CategoryReels, catalog.CategoryExplore:
		return color.New(color.FgRed, color.Bold)
	case catalog.CategoryStories:
		return color.New(color.FgYellow, color.Bold)
	case catalog.CategoryMessages, catalog.CategoryFeed:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.Faint)
	}
}
