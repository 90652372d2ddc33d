// Package deadletter gives permanently-failed deliveries a durable home,
// per §9's supplemented feature 2: the original keeps a dead-letter
// record rather than silently bumping a counter. It is directly adapted
// from the teacher's internal/eventlog package, but reworked around the
// dead-letter domain instead of wrapping a generic namespace/topic/
// partition append log: a dead-lettered message becomes one fixed-header,
// CRC32C-framed record in a log keyed directly by (queue, region), with
// recordedAtMs/nReturned/reason as first-class record fields rather than
// an opaque header/payload blob.
package deadletter

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/pkg/qerrors"
)

// Entry is a single dead-lettered delivery, operator-visible via
// ListDeadLetters and replayable via RequeueDeadLetter.
type Entry struct {
	Seq          uint64    `json:"seq"`
	Queue        string    `json:"queue"`
	Region       string    `json:"region"`
	MessageID    uuid.UUID `json:"messageId"`
	NReturned    uint32    `json:"nReturned"`
	Reason       string    `json:"reason"`
	RecordedAtMs int64     `json:"recordedAtMs"`
}

// Log is the dead-letter log for one (queue, region) pair.
type Log struct {
	db     *pebblestore.DB
	queue  string
	region string
	now    func() time.Time

	mu      sync.Mutex
	lastSeq uint64
}

// Open opens (creating if absent) the dead-letter log for (queue, region),
// loading its last-assigned sequence number from metadata if present.
func Open(db *pebblestore.DB, queue, region string) (*Log, error) {
	l := &Log{db: db, queue: queue, region: region, now: time.Now}
	meta, err := db.Get(metaKey(queue, region))
	if err == nil && len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return l, nil
}

// Record appends a dead-letter entry. It implements actor.DeadLetterSink,
// so an *Actor can be handed a *Log directly without this package
// depending on internal/actor.
func (l *Log) Record(queue, region string, messageID [16]byte, nReturned uint32, reason string) error {
	e := Entry{
		Queue:        queue,
		Region:       region,
		MessageID:    uuid.UUID(messageID),
		NReturned:    nReturned,
		Reason:       reason,
		RecordedAtMs: l.now().UnixMilli(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.lastSeq + 1
	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(entryKey(l.queue, l.region, seq), encodeEntry(e), nil); err != nil {
		return qerrors.Fatal("deadletter: stage entry: %w", err)
	}
	var metaVal [8]byte
	binary.BigEndian.PutUint64(metaVal[:], seq)
	if err := b.Set(metaKey(l.queue, l.region), metaVal[:], nil); err != nil {
		return qerrors.Fatal("deadletter: stage meta: %w", err)
	}
	if err := l.db.CommitBatch(context.Background(), b); err != nil {
		return qerrors.Transient("deadletter: commit entry: %w", err)
	}
	l.lastSeq = seq
	return nil
}

// List returns up to limit dead-letter entries starting from start
// (inclusive), oldest first, for operator inspection. The returned token
// is the seq to pass as start for the next page (0 once exhausted).
func (l *Log) List(start uint64, limit int) ([]Entry, uint64, error) {
	low, high := entryBounds(l.queue, l.region)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, 0, qerrors.Transient("deadletter: list %s/%s: %w", l.queue, l.region, err)
	}
	defer iter.Close()

	startKey := entryKey(l.queue, l.region, start)
	var ok bool
	if start == 0 {
		ok = iter.First()
	} else {
		ok = iter.SeekGE(startKey)
	}

	out := make([]Entry, 0, limit)
	var next uint64
	for ok && (limit == 0 || len(out) < limit) {
		seq := binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
		e, decErr := decodeEntry(iter.Value())
		if decErr == nil {
			e.Seq = seq
			e.Queue = l.queue
			e.Region = l.region
			out = append(out, e)
		}
		ok = iter.Next()
	}
	if ok {
		next = binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
	}
	return out, next, nil
}
