package deadletter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/store"
)

// BodyGC implements §9's supplemented feature 1: a first-class scheduled
// job that reclaims message_bodies rows whose messageId has gone unreferenced
// by either the DEFAULT or INFLIGHT table for longer than grace. Modeled on
// the teacher's eventlog.TrimOlderThan, but a body carries no write
// timestamp of its own (§3's DatabaseQueueMessageBody is just blob +
// content-type), so "older than grace" is tracked here as "first observed
// orphaned at least grace ago" rather than read off the record itself.
type BodyGC struct {
	store *store.Store
	grace time.Duration
	now   func() time.Time

	mu         sync.Mutex
	candidates map[uuid.UUID]int64
}

// NewBodyGC builds a BodyGC that reclaims bodies unreferenced for at least
// grace (spec.md §6's bodyGCGraceMs, default 10 minutes).
func NewBodyGC(s *store.Store, grace time.Duration) *BodyGC {
	return &BodyGC{
		store:      s,
		grace:      grace,
		now:        time.Now,
		candidates: make(map[uuid.UUID]int64),
	}
}

// Hosted names a locally-hosted (queue, region) pair whose DEFAULT/INFLIGHT
// rows should be treated as live references during a sweep.
type Hosted struct {
	Queue  string
	Region string
}

// Sweep scans every body key once, deleting any whose messageId is absent
// from the DEFAULT and INFLIGHT tables of every queue in hosted and that
// has been observed orphaned on a prior Sweep at least grace ago. It
// returns the number of bodies reclaimed. Call on a ticker from the
// runtime, the same role TrimOlderThan plays on the teacher's retention
// ticker in streams.Service.
func (g *BodyGC) Sweep(hosted []Hosted) (int, error) {
	referenced := make(map[uuid.UUID]struct{})
	for _, h := range hosted {
		for _, typ := range []store.ShardType{store.Default, store.Inflight} {
			prefix := store.MessageRowQueueRegionPrefix(typ, h.Queue, h.Region)
			err := g.store.ScanPrefix(prefix, func(item store.Item) (bool, error) {
				row, err := message.DecodeRow(item.Value)
				if err != nil {
					return true, nil
				}
				referenced[row.MessageID] = struct{}{}
				return true, nil
			})
			if err != nil {
				return 0, err
			}
		}
	}

	nowMs := g.now().UnixMilli()
	graceMs := g.grace.Milliseconds()

	g.mu.Lock()
	defer g.mu.Unlock()

	reclaimed := 0
	seenOrphans := make(map[uuid.UUID]struct{})

	err := g.store.ScanPrefix(store.BodyPrefix(), func(item store.Item) (bool, error) {
		id := uuid.UUID(store.ParseBodyKey(item.Key))
		if _, live := referenced[id]; live {
			delete(g.candidates, id)
			return true, nil
		}

		seenOrphans[id] = struct{}{}
		firstSeen, tracked := g.candidates[id]
		if !tracked {
			g.candidates[id] = nowMs
			return true, nil
		}
		if nowMs-firstSeen < graceMs {
			return true, nil
		}
		if err := g.store.Delete(item.Key); err != nil {
			return false, err
		}
		delete(g.candidates, id)
		reclaimed++
		return true, nil
	})
	if err != nil {
		return reclaimed, err
	}

	for id := range g.candidates {
		if _, stillOrphan := seenOrphans[id]; !stillOrphan {
			delete(g.candidates, id)
		}
	}

	return reclaimed, nil
}
