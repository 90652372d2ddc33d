package buffer

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/qakkaio/qakka/internal/message"
)

// Buffer is a per (queue, region) bounded FIFO of inflight descriptors.
// See §4.3. Not safe for concurrent use — exactly one queue actor touches
// a given Buffer.
type Buffer struct {
	items   []message.Descriptor
	target  int
	limiter *rate.Limiter
}

// Options configures a Buffer's high-water mark and refresh pacing.
type Options struct {
	// Target is the buffer's high-water mark (bufferTarget, §6).
	Target int
	// RefreshRate caps how many refresh attempts per second this buffer
	// will allow; a zero value disables the limiter (always allow).
	RefreshRate rate.Limit
	// RefreshBurst is the limiter's burst size.
	RefreshBurst int
}

// New creates an empty Buffer.
func New(opts Options) *Buffer {
	if opts.Target <= 0 {
		opts.Target = 1
	}
	var limiter *rate.Limiter
	if opts.RefreshRate > 0 {
		burst := opts.RefreshBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RefreshRate, burst)
	}
	return &Buffer{target: opts.Target, limiter: limiter}
}

// Size returns the number of descriptors currently held.
func (b *Buffer) Size() int { return len(b.items) }

// Target returns the buffer's configured high-water mark.
func (b *Buffer) Target() int { return b.target }

// Remaining returns how many descriptors may still be appended before the
// buffer reaches its target.
func (b *Buffer) Remaining() int {
	r := b.target - len(b.items)
	if r < 0 {
		return 0
	}
	return r
}

// LowWatermark returns the threshold below which Refresh should pull more
// rows, per §4.2: the buffer's target minus a requested batch size.
func (b *Buffer) LowWatermark(requestedBatch int) int {
	lw := b.target - requestedBatch
	if lw < 0 {
		return 0
	}
	return lw
}

// NeedsRefresh reports whether the buffer has fewer than lowWatermark
// entries, per §4.2's Refresh contract.
func (b *Buffer) NeedsRefresh(lowWatermark int) bool {
	return len(b.items) < lowWatermark
}

// Append adds descriptors to the tail of the buffer, in the order given.
func (b *Buffer) Append(descriptors ...message.Descriptor) {
	b.items = append(b.items, descriptors...)
}

// PollUpTo removes and returns up to n descriptors from the head of the
// buffer. Never blocks; returns fewer than n (or none) if the buffer is
// short, per §4.2's GetNext contract.
func (b *Buffer) PollUpTo(n int) []message.Descriptor {
	if n <= 0 || len(b.items) == 0 {
		return nil
	}
	if n > len(b.items) {
		n = len(b.items)
	}
	out := append([]message.Descriptor(nil), b.items[:n]...)
	remaining := len(b.items) - n
	copy(b.items, b.items[n:])
	b.items = b.items[:remaining]
	return out
}

// AllowRefresh reports whether a refresh attempt is permitted right now.
// Every call consults the token-bucket limiter when one is configured, so
// a run of ShardCheckRequest/tick messages arriving faster than
// RefreshRate can't hammer storage even while the buffer is well below
// target. Always true when no RefreshRate was configured.
func (b *Buffer) AllowRefresh() bool {
	if b.limiter == nil {
		return true
	}
	return b.limiter.Allow()
}

// ReservationAt reports how long until the limiter would next allow a
// refresh, for diagnostics/metrics only.
func (b *Buffer) ReservationAt() time.Duration {
	if b.limiter == nil {
		return 0
	}
	r := b.limiter.Reserve()
	defer r.Cancel()
	return r.Delay()
}
