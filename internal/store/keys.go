package store

import (
	"encoding/binary"
)

// ShardType distinguishes the two row tables a shard can partition.
type ShardType byte

const (
	// Default holds messages available for delivery.
	Default ShardType = 0
	// Inflight holds messages delivered and awaiting ack.
	Inflight ShardType = 1
)

func (t ShardType) String() string {
	if t == Inflight {
		return "INFLIGHT"
	}
	return "DEFAULT"
}

const (
	prefixShard       = "shard/"
	prefixShardCtr    = "shardctr/"
	prefixMsgAvail    = "msgavail/"
	prefixMsgInflight = "msginflight/"
	prefixBody        = "body/"
)

// queueRegionPrefix builds the common "queue/region/" segment shared by the
// shard and shard-counter tables.
func queueRegionPrefix(base, queue, region string) []byte {
	k := make([]byte, 0, len(base)+len(queue)+len(region)+2)
	k = append(k, base...)
	k = append(k, queue...)
	k = append(k, '/')
	k = append(k, region...)
	k = append(k, '/')
	return k
}

// ShardKey builds the key for a single shard's metadata row.
// Format: shard/{queue}/{region}/{type:1B}{shardId:8BE}
func ShardKey(queue, region string, typ ShardType, shardID uint64) []byte {
	prefix := queueRegionPrefix(prefixShard, queue, region)
	key := make([]byte, len(prefix)+1+8)
	n := copy(key, prefix)
	key[n] = byte(typ)
	binary.BigEndian.PutUint64(key[n+1:], shardID)
	return key
}

// ShardRangePrefix builds the prefix for scanning all shards of a given
// (queue, region, type) in ascending shardId (== ascending pivot, per S1)
// order.
func ShardRangePrefix(queue, region string, typ ShardType) []byte {
	prefix := queueRegionPrefix(prefixShard, queue, region)
	key := make([]byte, len(prefix)+1)
	n := copy(key, prefix)
	key[n] = byte(typ)
	return key
}

// ShardCounterKey builds the key for a shard's atomic row counter.
// Format: shardctr/{queue}/{region}/{type:1B}{shardId:8BE}
func ShardCounterKey(queue, region string, typ ShardType, shardID uint64) []byte {
	prefix := queueRegionPrefix(prefixShardCtr, queue, region)
	key := make([]byte, len(prefix)+1+8)
	n := copy(key, prefix)
	key[n] = byte(typ)
	binary.BigEndian.PutUint64(key[n+1:], shardID)
	return key
}

// messageRowBase selects the available/inflight table by ShardType.
func messageRowBase(typ ShardType) string {
	if typ == Inflight {
		return prefixMsgInflight
	}
	return prefixMsgAvail
}

// MessageRowKey builds the key for a message row in the available or
// inflight table, ordered ascending by queueMessageId within a shard.
// Format: {table}/{queue}/{region}/{shardId:8BE}{queueMessageId:16B}
func MessageRowKey(typ ShardType, queue, region string, shardID uint64, queueMessageID [16]byte) []byte {
	base := messageRowBase(typ)
	prefix := queueRegionPrefix(base, queue, region)
	key := make([]byte, len(prefix)+8+16)
	n := copy(key, prefix)
	binary.BigEndian.PutUint64(key[n:], shardID)
	copy(key[n+8:], queueMessageID[:])
	return key
}

// MessageRowShardPrefix builds the prefix for scanning every row in a
// single shard of the available or inflight table, ordered ascending by
// queueMessageId.
func MessageRowShardPrefix(typ ShardType, queue, region string, shardID uint64) []byte {
	base := messageRowBase(typ)
	prefix := queueRegionPrefix(base, queue, region)
	key := make([]byte, len(prefix)+8)
	n := copy(key, prefix)
	binary.BigEndian.PutUint64(key[n:], shardID)
	return key
}

// MessageRowQueueRegionPrefix builds the prefix for scanning every row
// across all shards of a (queue, region) in the available or inflight
// table — used by the sweeper, which scans inflight rows queue-wide.
func MessageRowQueueRegionPrefix(typ ShardType, queue, region string) []byte {
	base := messageRowBase(typ)
	return queueRegionPrefix(base, queue, region)
}

// ParseMessageRowKey extracts the shardId and queueMessageId embedded in a
// message row key previously built by MessageRowKey, given the (type,
// queue, region) it was scanned under. Used by the sweeper, which scans
// inflight rows queue-wide and needs each row's owning shard back out of
// its key.
func ParseMessageRowKey(typ ShardType, queue, region string, key []byte) (shardID uint64, queueMessageID [16]byte) {
	prefixLen := len(queueRegionPrefix(messageRowBase(typ), queue, region))
	shardID = binary.BigEndian.Uint64(key[prefixLen : prefixLen+8])
	copy(queueMessageID[:], key[prefixLen+8:prefixLen+24])
	return shardID, queueMessageID
}

// BodyKey builds the key for a message's payload body.
// Format: body/{messageId:16B}
func BodyKey(messageID [16]byte) []byte {
	key := make([]byte, len(prefixBody)+16)
	n := copy(key, prefixBody)
	copy(key[n:], messageID[:])
	return key
}

// BodyPrefix returns the prefix covering every body key, for the body GC
// job's full-table scan.
func BodyPrefix() []byte {
	return []byte(prefixBody)
}

// ParseBodyKey extracts the messageId embedded in a key previously built
// by BodyKey.
func ParseBodyKey(key []byte) (messageID [16]byte) {
	copy(messageID[:], key[len(prefixBody):])
	return messageID
}

// PrefixUpperBound returns an exclusive upper bound for iterating all keys
// with the given prefix: the prefix with its last non-0xFF byte incremented
// and the rest dropped, or nil (no bound) if every byte is 0xFF.
func PrefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
