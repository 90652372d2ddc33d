package shard

import (
	"encoding/binary"
	"fmt"

	"github.com/qakkaio/qakka/pkg/timeid"
)

// valueSize is the fixed width of an encoded shard row: pivot(16) + createdAtMs(8).
const valueSize = 16 + 8

// encodeValue serializes everything about a Shard not already carried in
// its key (queue/region/type/shardId).
func encodeValue(pivot timeid.ID, createdAtMs int64) []byte {
	buf := make([]byte, valueSize)
	copy(buf[0:16], pivot[:])
	binary.BigEndian.PutUint64(buf[16:24], uint64(createdAtMs))
	return buf
}

func decodeValue(b []byte) (timeid.ID, int64, error) {
	if len(b) != valueSize {
		return timeid.ID{}, 0, fmt.Errorf("shard: record must be %d bytes, got %d", valueSize, len(b))
	}
	var pivot timeid.ID
	copy(pivot[:], b[0:16])
	createdAtMs := int64(binary.BigEndian.Uint64(b[16:24]))
	return pivot, createdAtMs, nil
}

// decodeShardIDFromKey extracts the trailing 8-byte big-endian shardId from
// a shard table key (see store.ShardKey).
func decodeShardIDFromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
