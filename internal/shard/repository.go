package shard

import (
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// Get reads a single shard's metadata row.
func Get(s *store.Store, queue, region string, typ store.ShardType, shardID uint64) (Shard, error) {
	key := store.ShardKey(queue, region, typ, shardID)
	v, ok, err := s.Get(key)
	if err != nil {
		return Shard{}, qerrors.Transient("shard: get %s/%s shard %d: %w", queue, region, shardID, err)
	}
	if !ok {
		return Shard{}, qerrors.NotFound("shard: no shard %d for %s/%s/%s", shardID, queue, region, typ)
	}
	pivot, createdAtMs, err := decodeValue(v)
	if err != nil {
		return Shard{}, qerrors.Fatal("shard: decode %s/%s shard %d: %w", queue, region, shardID, err)
	}
	return Shard{Queue: queue, Region: region, Type: typ, ShardID: shardID, Pivot: pivot, CreatedAtMs: createdAtMs}, nil
}

// Latest returns the highest-shardId shard for (queue, region, type), per
// step 1 of §4.1's allocator contract. ok is false if no shard exists yet.
func Latest(s *store.Store, queue, region string, typ store.ShardType) (Shard, bool, error) {
	prefix := store.ShardRangePrefix(queue, region, typ)
	item, ok, err := s.Last(prefix, store.PrefixUpperBound(prefix))
	if err != nil {
		return Shard{}, false, qerrors.Transient("shard: scan latest %s/%s/%s: %w", queue, region, typ, err)
	}
	if !ok {
		return Shard{}, false, nil
	}
	pivot, createdAtMs, err := decodeValue(item.Value)
	if err != nil {
		return Shard{}, false, qerrors.Fatal("shard: decode latest %s/%s/%s: %w", queue, region, typ, err)
	}
	shardID := decodeShardIDFromKey(item.Key)
	return Shard{Queue: queue, Region: region, Type: typ, ShardID: shardID, Pivot: pivot, CreatedAtMs: createdAtMs}, true, nil
}

// List returns every shard for (queue, region, type) in ascending shardId
// (== ascending pivot, per invariant S1) order.
func List(s *store.Store, queue, region string, typ store.ShardType) ([]Shard, error) {
	prefix := store.ShardRangePrefix(queue, region, typ)
	var out []Shard
	err := s.ScanPrefix(prefix, func(item store.Item) (bool, error) {
		pivot, createdAtMs, err := decodeValue(item.Value)
		if err != nil {
			return false, qerrors.Fatal("shard: decode %s/%s/%s shard: %w", queue, region, typ, err)
		}
		out = append(out, Shard{
			Queue: queue, Region: region, Type: typ,
			ShardID: decodeShardIDFromKey(item.Key), Pivot: pivot, CreatedAtMs: createdAtMs,
		})
		return true, nil
	})
	return out, err
}

// Create persists a new shard row and initializes its counter to 0. It
// does not check for a pre-existing shard at the same shardId; callers
// (the allocator, EnsureFirstShard) are responsible for shardId uniqueness.
func Create(s *store.Store, sh Shard, nowMs int64) error {
	sh.CreatedAtMs = nowMs
	b := s.Batch()
	defer b.Close()
	if err := b.Set(sh.Key(), encodeValue(sh.Pivot, sh.CreatedAtMs), nil); err != nil {
		return qerrors.Transient("shard: stage create %s/%s shard %d: %w", sh.Queue, sh.Region, sh.ShardID, err)
	}
	if err := pebblestore.MergeInBatch(b, sh.CounterKey(), pebblestore.EncodeCounterDelta(0)); err != nil {
		return qerrors.Transient("shard: stage counter init %s/%s shard %d: %w", sh.Queue, sh.Region, sh.ShardID, err)
	}
	if err := s.Commit(b); err != nil {
		return qerrors.Transient("shard: commit create %s/%s shard %d: %w", sh.Queue, sh.Region, sh.ShardID, err)
	}
	return nil
}

// EnsureFirstShard creates shard 0 for (queue, region, type) if no shard
// exists yet, per §4.1's edge case: "shard-0 is created at queue-create
// time." Its pivot is the smallest possible ID so it accepts every message
// from the moment the queue exists.
func EnsureFirstShard(s *store.Store, queue, region string, typ store.ShardType, nowMs int64) (Shard, error) {
	if latest, ok, err := Latest(s, queue, region, typ); err != nil {
		return Shard{}, err
	} else if ok {
		return latest, nil
	}
	sh := Shard{Queue: queue, Region: region, Type: typ, ShardID: 0, Pivot: timeid.Zero}
	if err := Create(s, sh, nowMs); err != nil {
		return Shard{}, err
	}
	sh.CreatedAtMs = nowMs
	return sh, nil
}
