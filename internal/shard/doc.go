// Package shard implements §3's Shard model and §4.1's allocator: a
// queue's message stream partitioned over time-ordered shards, with a
// per-shard atomic counter driving when the next shard gets allocated.
//
// A shard is identified by (queue, region, type, shardId) and carries a
// pivot time-UUID: a message falls into the highest-shardId shard whose
// pivot is <= the message's queueMessageId. Shards are never mutated once
// written, only allocated (by Allocator) and deleted (on queue delete).
package shard
