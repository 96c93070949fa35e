package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/kfocus/internal/storage"
	"github.com/redis/go-redis/v9"
)

type kvStore struct {
	client *redis.Client
}

// Get retrieves a raw value by key
func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set stores a raw value without expiry
func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, keyPrefix+key, value, 0).Err()
}

type toggleStore struct {
	client *redis.Client
}

// IsEnabled reads a filter toggle; missing toggles read as disabled
func (s *toggleStore) IsEnabled(ctx context.Context, filter string) (bool, error) {
	value, err := s.client.HGet(ctx, keyToggles, filter).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return value == "1", nil
}

// SetEnabled writes a filter toggle and announces it when the value changed
func (s *toggleStore) SetEnabled(ctx context.Context, filter string, enabled bool) error {
	script := redis.NewScript(setToggleScript)

	value := "0"
	if enabled {
		value = "1"
	}

	keys := []string{keyToggles}
	args := []interface{}{channelToggles, filter, value}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// List returns every stored toggle
func (s *toggleStore) List(ctx context.Context) (map[string]bool, error) {
	data, err := s.client.HGetAll(ctx, keyToggles).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(data))
	for filter, value := range data {
		out[filter] = value == "1"
	}
	return out, nil
}

type snapshotStore struct {
	client *redis.Client
}

// Put replaces the snapshot hash and publishes a refresh request
func (s *snapshotStore) Put(ctx context.Context, snapshot storage.Snapshot) error {
	script := redis.NewScript(putSnapshotScript)

	keys := []string{keySnapshot, keySnapshotSeq}
	args := []interface{}{
		channelSnapshotRef,
		snapshot.ID,
		snapshot.GeneratedAt.Format(time.RFC3339Nano),
		snapshot.TodaySeconds,
		snapshot.YesterdaySeconds,
		snapshot.WeeklySeconds,
		strconv.FormatFloat(snapshot.PercentChange, 'f', -1, 64),
		snapshot.BestStreakDays,
		snapshot.BestStreakFilter,
		snapshot.BestStreakRecord,
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Latest reads the current snapshot hash
func (s *snapshotStore) Latest(ctx context.Context) (*storage.Snapshot, error) {
	data, err := s.client.HGetAll(ctx, keySnapshot).Result()
	if err != nil {
		return nil, err
	}
	return parseSnapshot(data)
}

// RefreshSequence returns how many refresh requests have been raised
func (s *snapshotStore) RefreshSequence(ctx context.Context) (uint64, error) {
	seq, err := s.client.Get(ctx, keySnapshotSeq).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read refresh sequence: %w", err)
	}
	return seq, nil
}
