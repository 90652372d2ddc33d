// Package timeid provides Qakka's time-UUID: a 128-bit, lexicographically
// sortable identifier whose high 48 bits are a millisecond timestamp and
// whose low 80 bits are monotonic entropy.
//
// # Format
//
// Identifiers are backed by github.com/oklog/ulid/v2.ULID: byte-wise
// comparison preserves chronological order, and two IDs minted within the
// same millisecond by the same Generator remain strictly increasing.
//
// # Role in Qakka
//
// Shard pivots and queueMessageId both use this type: a shard's pivot is
// the smallest possible ID at its allocation boundary (FromTime, zero
// entropy), and a message falls into the highest-shardId shard whose pivot
// is <= the message's queueMessageId, compared with ID.Compare.
//
// Usage
//
//	g := timeid.NewGenerator()
//	qmid := g.Next()
//	pivot := timeid.FromTime(time.Now().Add(advanceWindow))
//	if pivot.Compare(qmid) <= 0 { ... }
package timeid
