package shard

import (
	"github.com/qakkaio/qakka/internal/store"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// Shard is a single persisted partition of a queue's message stream.
// See spec.md §3 and invariants S1/S2.
type Shard struct {
	Queue       string
	Region      string
	Type        store.ShardType
	ShardID     uint64
	Pivot       timeid.ID
	CreatedAtMs int64
}

// Key returns the storage key identifying this shard's metadata row.
func (s Shard) Key() []byte {
	return store.ShardKey(s.Queue, s.Region, s.Type, s.ShardID)
}

// CounterKey returns the storage key for this shard's row counter.
func (s Shard) CounterKey() []byte {
	return store.ShardCounterKey(s.Queue, s.Region, s.Type, s.ShardID)
}
