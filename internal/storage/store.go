package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrLocked is returned when another process holds the store open.
var ErrLocked = errors.New("storage: locked by another process")

// Store represents the root storage interface.
type Store interface {
	Close() error
	KV() KVStore
	Toggles() ToggleStore
	Snapshots() SnapshotStore
}

// KVStore is the durable key-value store used for ledger persistence.
// Values are opaque to the store.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ToggleStore is the source of truth for whether a content filter is on.
// Filters are addressed by their stable key ("reels", "stories", ...).
type ToggleStore interface {
	IsEnabled(ctx context.Context, filter string) (bool, error)
	SetEnabled(ctx context.Context, filter string, enabled bool) error
	List(ctx context.Context) (map[string]bool, error)
}

// SnapshotStore is the shared store read by widgets.
// Put replaces the current snapshot and raises a refresh request.
type SnapshotStore interface {
	Put(ctx context.Context, snapshot Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
	RefreshSequence(ctx context.Context) (uint64, error)
}
