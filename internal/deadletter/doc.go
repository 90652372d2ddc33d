// Package deadletter persists §9's supplemented dead-letter durability
// feature: a permanently-failed delivery gets an append-only record
// instead of just a counter bump, with ListDeadLetters/RequeueDeadLetter
// as the operator recovery path (the latter composed in internal/facade,
// since redriving a message needs the shard/message primitives this
// package intentionally does not depend on).
package deadletter
