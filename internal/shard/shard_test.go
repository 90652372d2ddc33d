package shard

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("pebblestore.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}

func TestEnsureFirstShardIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	first, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 1000)
	if err != nil {
		t.Fatalf("EnsureFirstShard: %v", err)
	}
	if first.ShardID != 0 {
		t.Fatalf("ShardID = %d, want 0", first.ShardID)
	}
	if first.Pivot.Compare(timeid.Zero) != 0 {
		t.Fatalf("expected zero pivot for shard 0")
	}

	again, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 2000)
	if err != nil {
		t.Fatalf("EnsureFirstShard (second call): %v", err)
	}
	if again.CreatedAtMs != first.CreatedAtMs {
		t.Fatalf("second call re-created shard 0: got createdAtMs=%d, want %d", again.CreatedAtMs, first.CreatedAtMs)
	}
}

func TestLatestReturnsHighestShardID(t *testing.T) {
	s := openTestStore(t)
	if _, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 1000); err != nil {
		t.Fatalf("EnsureFirstShard: %v", err)
	}
	if err := Create(s, Shard{Queue: "orders", Region: "us-east", Type: store.Default, ShardID: 1, Pivot: timeid.FromTime(time.UnixMilli(5000))}, 5000); err != nil {
		t.Fatalf("Create shard 1: %v", err)
	}

	latest, ok, err := Latest(s, "orders", "us-east", store.Default)
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if latest.ShardID != 1 {
		t.Fatalf("ShardID = %d, want 1", latest.ShardID)
	}
}

func TestGetUnknownShardIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := Get(s, "orders", "us-east", store.Default, 7)
	if !qerrors.Is(err, qerrors.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestAllocatorAllocatesPastThreshold(t *testing.T) {
	s := openTestStore(t)
	if _, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 1000); err != nil {
		t.Fatalf("EnsureFirstShard: %v", err)
	}

	a := New(s, Config{MaxShardSize: 100, AdvanceWindow: time.Minute}, nil, nil)
	fixedNow := time.UnixMilli(10_000)
	a.now = func() time.Time { return fixedNow }

	if err := s.IncrCounter(store.ShardCounterKey("orders", "us-east", store.Default, 0), 105); err != nil {
		t.Fatalf("IncrCounter: %v", err)
	}

	a.ShardCheckRequest("orders", "us-east")

	latest, ok, err := Latest(s, "orders", "us-east", store.Default)
	if err != nil || !ok {
		t.Fatalf("Latest after check: ok=%v err=%v", ok, err)
	}
	if latest.ShardID != 1 {
		t.Fatalf("ShardID = %d, want 1 (allocation should have fired past 0.9x100=90 threshold)", latest.ShardID)
	}
	wantPivot := timeid.FromTime(fixedNow.Add(time.Minute))
	if latest.Pivot.Compare(wantPivot) != 0 {
		t.Fatalf("pivot = %v, want %v", latest.Pivot, wantPivot)
	}
}

func TestAllocatorIncrementsShardsAllocated(t *testing.T) {
	s := openTestStore(t)
	if _, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 1000); err != nil {
		t.Fatalf("EnsureFirstShard: %v", err)
	}

	m := metrics.New()
	a := New(s, Config{MaxShardSize: 100, AdvanceWindow: time.Minute}, nil, m)
	fixedNow := time.UnixMilli(10_000)
	a.now = func() time.Time { return fixedNow }

	if err := s.IncrCounter(store.ShardCounterKey("orders", "us-east", store.Default, 0), 105); err != nil {
		t.Fatalf("IncrCounter: %v", err)
	}

	a.ShardCheckRequest("orders", "us-east")

	if got := testutil.ToFloat64(m.ShardsAllocated.WithLabelValues("orders", "us-east", store.Default.String())); got != 1 {
		t.Fatalf("ShardsAllocated = %v, want 1", got)
	}
}

func TestActiveShardForIDPicksHighestPivotBelowID(t *testing.T) {
	s := openTestStore(t)
	if _, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 1000); err != nil {
		t.Fatalf("EnsureFirstShard: %v", err)
	}
	pivot1 := timeid.FromTime(time.UnixMilli(5000))
	if err := Create(s, Shard{Queue: "orders", Region: "us-east", Type: store.Default, ShardID: 1, Pivot: pivot1}, 5000); err != nil {
		t.Fatalf("Create shard 1: %v", err)
	}

	before := timeid.FromTime(time.UnixMilli(4000))
	got, err := ActiveShardForID(s, "orders", "us-east", store.Default, before)
	if err != nil {
		t.Fatalf("ActiveShardForID(before pivot1): %v", err)
	}
	if got.ShardID != 0 {
		t.Fatalf("ShardID = %d, want 0 for an id before shard 1's pivot", got.ShardID)
	}

	after := timeid.FromTime(time.UnixMilli(6000))
	got, err = ActiveShardForID(s, "orders", "us-east", store.Default, after)
	if err != nil {
		t.Fatalf("ActiveShardForID(after pivot1): %v", err)
	}
	if got.ShardID != 1 {
		t.Fatalf("ShardID = %d, want 1 for an id after shard 1's pivot", got.ShardID)
	}
}

func TestAllocatorDoesNotAllocateBelowThreshold(t *testing.T) {
	s := openTestStore(t)
	if _, err := EnsureFirstShard(s, "orders", "us-east", store.Default, 1000); err != nil {
		t.Fatalf("EnsureFirstShard: %v", err)
	}

	a := New(s, Config{MaxShardSize: 100, AdvanceWindow: time.Minute}, nil, nil)
	if err := s.IncrCounter(store.ShardCounterKey("orders", "us-east", store.Default, 0), 50); err != nil {
		t.Fatalf("IncrCounter: %v", err)
	}

	a.ShardCheckRequest("orders", "us-east")

	latest, _, err := Latest(s, "orders", "us-east", store.Default)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ShardID != 0 {
		t.Fatalf("ShardID = %d, want 0 (no allocation expected below threshold)", latest.ShardID)
	}
}
