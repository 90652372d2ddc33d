// Package qerrors classifies Qakka's internal errors into a small set of
// kinds — NotFound, Conflict, Transient, Fatal — so callers can branch on
// what an error means instead of matching its message.
//
// Storage errors are classified this way: a Transient error is a storage
// I/O hiccup, a Fatal error is corrupt on-disk state. The shard allocator,
// the sweeper, and the actor's refresh and shard-check handlers log errors
// and carry on to their next tick; the actor's ack, nack, send and load
// paths return the classified error to the facade caller.
//
// Usage
//
//	if _, err := store.Get(key); err != nil {
//		return qerrors.NotFound("queue %q: %w", name, err)
//	}
//	...
//	if qerrors.Is(err, qerrors.KindNotFound) {
//		// create-on-demand path
//	}
package qerrors
