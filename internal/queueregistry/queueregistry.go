// Package queueregistry persists §3's Queue config: the immutable
// (except for deletion) record of a queue's name, local and origin region,
// region set, and tuning knobs (delay, lease, max redeliveries), the way
// internal/namespace persisted
// namespace metadata in the teacher.
package queueregistry

import (
	"encoding/json"
	"sort"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/pkg/qerrors"
)

// Queue is the persisted, admin-created config for a named queue. See
// spec.md §3: "Created once; immutable config except for deletion."
type Queue struct {
	Name            string   `json:"name"`
	LocalRegion     string   `json:"localRegion"`
	OriginRegion    string   `json:"originRegion"`
	Regions         []string `json:"regions"`
	DelayMs         int64    `json:"delayMs"`
	LeaseSeconds    int      `json:"leaseSeconds"`
	MaxRedeliveries int      `json:"maxRedeliveries"`
	CreatedAtMs     int64    `json:"createdAtMs"`
}

var registryPrefix = []byte("queuereg/")

func registryKey(name string) []byte {
	k := make([]byte, 0, len(registryPrefix)+len(name))
	k = append(k, registryPrefix...)
	k = append(k, name...)
	return k
}

// Create persists a new Queue record. It is an error (Conflict) to create
// a queue that already exists, per §3's "Created once" lifecycle note.
func Create(db *pebblestore.DB, q Queue, nowMs int64) (Queue, error) {
	key := registryKey(q.Name)
	if existing, err := db.Get(key); err == nil && len(existing) > 0 {
		return Queue{}, qerrors.Conflict("queueregistry: queue %q already exists", q.Name)
	}
	q.CreatedAtMs = nowMs
	q.Regions = normalizeRegions(q.Regions, q.LocalRegion, q.OriginRegion)
	if q.LeaseSeconds <= 0 {
		q.LeaseSeconds = 30
	}
	if q.MaxRedeliveries <= 0 {
		q.MaxRedeliveries = 5
	}
	b, err := json.Marshal(q)
	if err != nil {
		return Queue{}, qerrors.Fatal("queueregistry: encode %q: %w", q.Name, err)
	}
	if err := db.Set(key, b); err != nil {
		return Queue{}, qerrors.Transient("queueregistry: persist %q: %w", q.Name, err)
	}
	return q, nil
}

// Get loads a Queue record by name.
func Get(db *pebblestore.DB, name string) (Queue, error) {
	v, err := db.Get(registryKey(name))
	if err != nil {
		return Queue{}, qerrors.NotFound("queueregistry: no queue %q", name)
	}
	var q Queue
	if err := json.Unmarshal(v, &q); err != nil {
		return Queue{}, qerrors.Fatal("queueregistry: decode %q: %w", name, err)
	}
	return q, nil
}

// Delete removes a Queue record. Callers (internal/facade) are
// responsible for the cascade described in §3: stopping the queue's
// actors, and deleting its shards and rows.
func Delete(db *pebblestore.DB, name string) error {
	if err := db.Delete(registryKey(name)); err != nil {
		return qerrors.Transient("queueregistry: delete %q: %w", name, err)
	}
	return nil
}

// List returns every registered queue, sorted by name.
func List(db *pebblestore.DB) ([]Queue, error) {
	hi := append(append([]byte(nil), registryPrefix...), 0xFF)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: registryPrefix, UpperBound: hi})
	if err != nil {
		return nil, qerrors.Transient("queueregistry: list: %w", err)
	}
	defer iter.Close()

	var out []Queue
	for ok := iter.First(); ok; ok = iter.Next() {
		var q Queue
		if err := json.Unmarshal(iter.Value(), &q); err != nil {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, iter.Error()
}

func normalizeRegions(regions []string, localRegion, originRegion string) []string {
	set := make(map[string]struct{}, len(regions)+2)
	for _, r := range regions {
		set[r] = struct{}{}
	}
	if localRegion != "" {
		set[localRegion] = struct{}{}
	}
	if originRegion != "" {
		set[originRegion] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
