// Package store encodes Qakka's logical storage schema (§6) onto Pebble's
// flat byte-ordered keyspace, the way internal/namespace and the legacy
// workqueue package key their own tables: ASCII prefixes segment tables,
// and fixed-width big-endian integers keep numeric suffixes sorted
// lexicographically in numeric order.
//
// Tables
//
//	shards(queue, region, type, shardId)      -> pivot + createdAtMs
//	shard_counters(queue, region, type, shardId) -> atomic counter (pebble merge)
//	messages_available(queue, region, shardId, queueMessageId) -> messageId, queuedAt, nReturned
//	messages_inflight(queue, region, shardId, queueMessageId)  -> messageId, inflightAt, nReturned
//	message_bodies(messageId) -> contentType, blob
//
// Every function here is a pure key/value codec; the transactional
// semantics described in §3-4 of spec.md live in internal/shard,
// internal/message, internal/actor, and internal/sweeper, which compose
// these codecs with pebble.Batch to move rows between tables atomically.
package store
