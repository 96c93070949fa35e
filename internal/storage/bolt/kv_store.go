package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/goodtune/kfocus/internal/storage"
	"go.etcd.io/bbolt"
)

type kvStore struct {
	db *bbolt.DB
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	return getRaw(ctx, s.db, bucketLedger, key)
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	return putRaw(ctx, s.db, bucketLedger, key, value)
}

type toggleStore struct {
	db *bbolt.DB
}

func (s *toggleStore) IsEnabled(ctx context.Context, filter string) (bool, error) {
	data, err := getRaw(ctx, s.db, bucketToggles, filter)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	enabled, err := strconv.ParseBool(string(data))
	if err != nil {
		return false, fmt.Errorf("parse toggle %s: %w", filter, err)
	}
	return enabled, nil
}

func (s *toggleStore) SetEnabled(ctx context.Context, filter string, enabled bool) error {
	return putRaw(ctx, s.db, bucketToggles, filter, []byte(strconv.FormatBool(enabled)))
}

func (s *toggleStore) List(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	return out, s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketToggles))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			enabled, err := strconv.ParseBool(string(v))
			if err != nil {
				return fmt.Errorf("parse toggle %s: %w", k, err)
			}
			out[string(k)] = enabled
			return nil
		})
	})
}

type snapshotStore struct {
	db *bbolt.DB
}

// Put stores the snapshot and bumps the refresh sequence in one transaction.
func (s *snapshotStore) Put(ctx context.Context, snapshot storage.Snapshot) error {
	data, err := marshal(snapshot)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil {
			return fmt.Errorf("snapshots bucket missing")
		}
		if err := b.Put([]byte(keyLatestSnapshot), data); err != nil {
			return err
		}
		seq := decodeSequence(b.Get([]byte(keyRefreshSequence))) + 1
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		return b.Put([]byte(keyRefreshSequence), buf)
	})
}

func (s *snapshotStore) Latest(ctx context.Context) (*storage.Snapshot, error) {
	return getBucketValue[storage.Snapshot](ctx, s.db, bucketSnapshots, keyLatestSnapshot)
}

func (s *snapshotStore) RefreshSequence(ctx context.Context) (uint64, error) {
	data, err := getRaw(ctx, s.db, bucketSnapshots, keyRefreshSequence)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return decodeSequence(data), nil
}

func decodeSequence(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}
