// Package actor implements §4.2's queue actor: the single-writer,
// single-threaded-cooperative owner of one (queue, region) pair's
// in-memory buffer and its DEFAULT->INFLIGHT transitions.
//
// An Actor processes exactly one mailbox message at a time — modeled
// here as the teacher's goroutine-plus-channel shape
// (internal/workqueue/autoclaim.go's AutoClaimScanner), generalized from
// a self-ticking scanner into a true mailbox so Refresh, GetNext, Ack,
// Nack, and ShardCheckRequest all serialize through the same run loop
// instead of racing each other.
//
// GetNext also accepts an optional consumerID, a light adaptation of the
// teacher's ConsumerRegistry heartbeat tracking: it is recorded for
// ActiveConsumers/observability only and never changes which descriptors
// are returned.
package actor
