package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracking   TrackingConfig   `mapstructure:"tracking"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Stats      StatsConfig      `mapstructure:"stats"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines usage tracking settings
type TrackingConfig struct {
	TickInterval         string `mapstructure:"tick_interval"`
	CheckpointTicks      int    `mapstructure:"checkpoint_ticks"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`
	Timezone             string `mapstructure:"timezone"` // IANA name, "Local" or empty for the host zone
}

// ClassifierConfig defines category classifier settings
type ClassifierConfig struct {
	PolicyDir string `mapstructure:"policy_dir"` // empty uses the built-in policy
	CacheSize int    `mapstructure:"cache_size"`
}

// StatsConfig defines statistics projector settings
type StatsConfig struct {
	StartInSimulation bool `mapstructure:"start_in_simulation"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("KFOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when no file or environment
// overrides are present. It is not validated.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns every recognised configuration key
func KnownKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 8470)
	v.SetDefault("server.metrics_port", 9470)
	v.SetDefault("server.bind_address", "127.0.0.1")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/kfocus/kfocus.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "1s")
	v.SetDefault("tracking.checkpoint_ticks", 30)
	v.SetDefault("tracking.history_retention_days", 62)
	v.SetDefault("tracking.timezone", "Local")

	// Classifier defaults
	v.SetDefault("classifier.policy_dir", "")
	v.SetDefault("classifier.cache_size", 512)

	// Stats defaults
	v.SetDefault("stats.start_in_simulation", true)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if _, err := cfg.Tracking.Interval(); err != nil {
		return err
	}
	if cfg.Tracking.CheckpointTicks <= 0 {
		return fmt.Errorf("checkpoint_ticks must be positive, got %d", cfg.Tracking.CheckpointTicks)
	}
	// Two weeks is the least history that still answers yesterday and last week
	if cfg.Tracking.HistoryRetentionDays < 14 {
		return fmt.Errorf("history_retention_days must be at least 14, got %d", cfg.Tracking.HistoryRetentionDays)
	}
	if _, err := cfg.Tracking.Location(); err != nil {
		return err
	}

	if cfg.Classifier.CacheSize <= 0 {
		return fmt.Errorf("classifier cache_size must be positive, got %d", cfg.Classifier.CacheSize)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}

	switch cfg.Storage.Type {
	case "bolt":
		// Validate storage path
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}

		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type %q (expected bolt or redis)", cfg.Storage.Type)
	}

	return nil
}

// Interval parses the tick interval
func (t TrackingConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(t.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid tick_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick_interval must be positive, got %s", d)
	}
	return d, nil
}

// Location resolves the configured timezone
func (t TrackingConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}
