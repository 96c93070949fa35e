package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kfocus",
	Short: "kfocus - usage and streak accounting for a distraction-free Instagram",
	Long: `kfocus records time spent per Instagram content category, tracks how long
each content filter has stayed enabled, and publishes a compact snapshot for
home-screen widgets. Category rules are Open Policy Agent (OPA) policies.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/kfocus/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
