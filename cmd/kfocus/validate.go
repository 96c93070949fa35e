package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the kfocus configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	known := config.KnownKeys()
	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[server]")
	dumpField("  api_port", cfg.Server.APIPort, defaultCfg.Server.APIPort, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)

	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	_, _ = cyan.Println("\n[tracking]")
	dumpField("  tick_interval", cfg.Tracking.TickInterval, defaultCfg.Tracking.TickInterval, yellow, green)
	dumpField("  checkpoint_ticks", cfg.Tracking.CheckpointTicks, defaultCfg.Tracking.CheckpointTicks, yellow, green)
	dumpField("  history_retention_days", cfg.Tracking.HistoryRetentionDays, defaultCfg.Tracking.HistoryRetentionDays, yellow, green)
	dumpField("  timezone", cfg.Tracking.Timezone, defaultCfg.Tracking.Timezone, yellow, green)

	_, _ = cyan.Println("\n[classifier]")
	dumpField("  policy_dir", cfg.Classifier.PolicyDir, defaultCfg.Classifier.PolicyDir, yellow, green)
	dumpField("  cache_size", cfg.Classifier.CacheSize, defaultCfg.Classifier.CacheSize, yellow, green)

	_, _ = cyan.Println("\n[stats]")
	dumpField("  start_in_simulation", cfg.Stats.StartInSimulation, defaultCfg.Stats.StartInSimulation, yellow, green)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	valueStr := fmt.Sprintf("%v", value)

	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
