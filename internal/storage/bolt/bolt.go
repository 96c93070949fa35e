package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/kfocus/internal/storage"
	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

const (
	bucketLedger    = "ledger"
	bucketToggles   = "filter_toggles"
	bucketSnapshots = "snapshots"

	keyLatestSnapshot  = "latest"
	keyRefreshSequence = "refresh_seq"

	openTimeout = 2 * time.Second
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if errors.Is(err, berrors.ErrTimeout) {
		return nil, fmt.Errorf("open bolt db %s: %w", path, storage.ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			[]byte(bucketLedger),
			[]byte(bucketToggles),
			[]byte(bucketSnapshots),
		}

		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// KV returns the ledger key-value store.
func (s *Store) KV() storage.KVStore { return &kvStore{db: s.db} }

// Toggles returns the filter toggle store.
func (s *Store) Toggles() storage.ToggleStore { return &toggleStore{db: s.db} }

// Snapshots returns the widget snapshot store.
func (s *Store) Snapshots() storage.SnapshotStore { return &snapshotStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

func getRaw(ctx context.Context, db *bbolt.DB, bucket, key string) ([]byte, error) {
	var out []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func putRaw(ctx context.Context, db *bbolt.DB, bucket, key string, value []byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucket)
		}
		return b.Put([]byte(key), value)
	})
}

func getBucketValue[T any](ctx context.Context, db *bbolt.DB, bucket string, key string) (*T, error) {
	data, err := getRaw(ctx, db, bucket, key)
	if err != nil {
		return nil, err
	}
	var result T
	if err := unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
