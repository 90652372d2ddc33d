package timeid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is Qakka's time-UUID. See package doc for format and ordering.
type ID = ulid.ULID

// Zero is the smallest possible ID, useful as a sentinel "before any shard".
var Zero ID

// Now is overridable for tests that need deterministic timestamps.
var Now = func() time.Time { return time.Now() }

// Generator mints monotonically increasing IDs per process, even for calls
// that land in the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator creates a Generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ID for the current instant (per Now).
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(Now())
	for {
		id, err := ulid.New(ms, g.entropy)
		if err == nil {
			return id
		}
		// Monotonic entropy overflowed within this millisecond; advance and retry.
		ms++
	}
}

// FromTime returns the smallest possible ID whose embedded timestamp equals
// t, truncated to millisecond resolution and zero entropy. Used to build
// shard pivots: any ID minted at or after t by a Generator compares greater
// than or equal to FromTime(t).
func FromTime(t time.Time) ID {
	var id ID
	// SetTime never fails for a valid millisecond timestamp.
	_ = id.SetTime(ulid.Timestamp(t))
	return id
}

// ToTime returns the millisecond instant embedded in id.
func ToTime(id ID) time.Time {
	return ulid.Time(id.Time())
}
