// Package buffer implements §4.3's in-memory queue buffer: a bounded FIFO
// of inflight descriptors, owned exclusively by one queue actor, that
// amortizes storage reads across many small GetNext calls.
//
// The buffer is never shared across goroutines (per §5's "in-memory
// buffer is NOT shared" rule), so it carries no internal locking — its
// owning actor is already single-threaded by construction.
//
// Refresh backpressure is a token-bucket rate limiter rather than the
// teacher's blocking time.Sleep retry loop (workqueue/queue.go's
// Enqueue throttle): an actor's message handler must never block, since
// that would stall every other message addressed to it, so AllowRefresh
// simply reports no and the actor skips the refresh for this tick instead
// of sleeping through it. The limiter paces every refresh attempt, not
// just ones past target, so a burst of ShardCheckRequest/tick messages
// can't drive repeated storage scans faster than RefreshRate even while
// the buffer has room to grow.
package buffer
