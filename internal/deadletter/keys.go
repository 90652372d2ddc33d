package deadletter

import "encoding/binary"

// Keyspace for dead-letter entries, one append-only log per (queue, region)
// pair, keyed directly by those two strings instead of through a generic
// namespace/topic/partition scheme:
//
//	dl/{queue}/{region}/m          - last-assigned sequence number
//	dl/{queue}/{region}/e/{seq_be8} - one entry

var (
	sep        = byte('/')
	logPrefix  = []byte("dl/")
	entrySeg   = []byte("/e/")
	metaSuffix = []byte("/m")
)

func metaKey(queue, region string) []byte {
	k := make([]byte, 0, len(logPrefix)+len(queue)+len(region)+8)
	k = append(k, logPrefix...)
	k = append(k, queue...)
	k = append(k, sep)
	k = append(k, region...)
	return append(k, metaSuffix...)
}

func entryKey(queue, region string, seq uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+len(queue)+len(region)+16)
	k = append(k, logPrefix...)
	k = append(k, queue...)
	k = append(k, sep)
	k = append(k, region...)
	k = append(k, entrySeg...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

// entryBounds returns the [low, high) range covering every entry key for
// (queue, region), for a ScanPrefix-style iteration.
func entryBounds(queue, region string) (low, high []byte) {
	low = entryKey(queue, region, 0)
	high = append(entryKey(queue, region, ^uint64(0)), 0x00)
	return low, high
}
