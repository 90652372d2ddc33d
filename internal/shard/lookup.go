package shard

import (
	"github.com/qakkaio/qakka/internal/store"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// ActiveShardForID returns the shard a row with the given id (a
// queueMessageId) belongs to: the highest-shardId shard whose pivot is
// <= id, per §3's routing rule. Shards are walked newest-first so the
// common case (writing "now") stops after one comparison.
func ActiveShardForID(s *store.Store, queue, region string, typ store.ShardType, id timeid.ID) (Shard, error) {
	prefix := store.ShardRangePrefix(queue, region, typ)
	var found Shard
	var ok bool
	err := s.ScanRangeReverse(prefix, store.PrefixUpperBound(prefix), func(item store.Item) (bool, error) {
		pivot, createdAtMs, err := decodeValue(item.Value)
		if err != nil {
			return false, qerrors.Fatal("shard: decode %s/%s/%s shard: %w", queue, region, typ, err)
		}
		if pivot.Compare(id) <= 0 {
			found = Shard{
				Queue: queue, Region: region, Type: typ,
				ShardID: decodeShardIDFromKey(item.Key), Pivot: pivot, CreatedAtMs: createdAtMs,
			}
			ok = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return Shard{}, err
	}
	if !ok {
		return Shard{}, qerrors.NotFound("shard: no active %s/%s/%s shard for id %s", queue, region, typ, id)
	}
	return found, nil
}
