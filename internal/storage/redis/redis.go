package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix          = "kfocus:kv:"
	keyToggles         = "kfocus:filters"
	keySnapshot        = "kfocus:snapshot"
	keySnapshotSeq     = "kfocus:snapshot:seq"
	channelSnapshotRef = "kfocus:snapshot:refresh"
	channelToggles     = "kfocus:filters:changed"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	kvStore       *kvStore
	toggleStore   *toggleStore
	snapshotStore *snapshotStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:        client,
		kvStore:       &kvStore{client: client},
		toggleStore:   &toggleStore{client: client},
		snapshotStore: &snapshotStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// KV returns the KVStore implementation
func (s *Store) KV() storage.KVStore {
	return s.kvStore
}

// Toggles returns the ToggleStore implementation
func (s *Store) Toggles() storage.ToggleStore {
	return s.toggleStore
}

// Snapshots returns the SnapshotStore implementation
func (s *Store) Snapshots() storage.SnapshotStore {
	return s.snapshotStore
}

// SubscribeRefresh returns a subscription to snapshot refresh requests.
// Each message payload is the new refresh sequence number.
func (s *Store) SubscribeRefresh(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, channelSnapshotRef)
}

// SubscribeToggles returns a subscription to filter toggle changes made by
// any process. Each message payload is the filter key that changed.
func (s *Store) SubscribeToggles(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, channelToggles)
}
