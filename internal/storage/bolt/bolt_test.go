package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/kfocus/internal/storage"
)

func TestKVStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	kv := store.KV()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "usage"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := kv.Set(ctx, "usage", []byte(`{"days":{}}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, err := kv.Get(ctx, "usage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `{"days":{}}` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := kv.Set(ctx, "usage", []byte(`{"days":{"2026-10-12":{}}}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err = kv.Get(ctx, "usage")
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if string(value) != `{"days":{"2026-10-12":{}}}` {
		t.Fatalf("unexpected value after overwrite %q", value)
	}
}

func TestToggleStore(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	toggles := store.Toggles()
	ctx := context.Background()

	enabled, err := toggles.IsEnabled(ctx, "reels")
	if err != nil {
		t.Fatalf("is enabled: %v", err)
	}
	if enabled {
		t.Fatal("expected unknown toggle to read as disabled")
	}

	if err := toggles.SetEnabled(ctx, "reels", true); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if err := toggles.SetEnabled(ctx, "stories", false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}

	all, err := toggles.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || !all["reels"] || all["stories"] {
		t.Fatalf("unexpected toggles: %v", all)
	}
}

func TestSnapshotStoreBumpsRefreshSequence(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	snapshots := store.Snapshots()
	ctx := context.Background()

	if _, err := snapshots.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first put, got %v", err)
	}

	for i := 1; i <= 2; i++ {
		snap := storage.Snapshot{
			ID:             "snap",
			GeneratedAt:    time.Now().UTC(),
			TodaySeconds:   int64(i * 60),
			BestStreakDays: i,
		}
		if err := snapshots.Put(ctx, snap); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	latest, err := snapshots.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.TodaySeconds != 120 || latest.BestStreakDays != 2 {
		t.Fatalf("unexpected latest snapshot: %+v", latest)
	}

	seq, err := snapshots.RefreshSequence(ctx)
	if err != nil {
		t.Fatalf("refresh sequence: %v", err)
	}
	if seq != 2 {
		t.Fatalf("expected refresh sequence 2, got %d", seq)
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kfocus.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.KV().Set(context.Background(), "streaks", []byte("{}")); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := store.KV().Get(context.Background(), "streaks"); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kfocus.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestOpenWhileHeldReturnsErrLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kfocus.bolt")

	held, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = held.Close() }()

	second, err := Open(path)
	if !errors.Is(err, storage.ErrLocked) {
		if second != nil {
			_ = second.Close()
		}
		t.Fatalf("expected ErrLocked while the file is held, got %v", err)
	}
}
