package store

import (
	"context"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
)

// Store is a thin typed façade over the Pebble driver, giving the shard,
// message, actor, and sweeper packages range-scan and counter primitives
// without reaching into pebble.Options directly.
type Store struct {
	db *pebblestore.DB
}

// New wraps an already-open Pebble database.
func New(db *pebblestore.DB) *Store { return &Store{db: db} }

// DB returns the underlying Pebble driver, for callers (like queueregistry)
// that keep using it directly for non-shard-partitioned tables.
func (s *Store) DB() *pebblestore.DB { return s.db }

// Get returns the value for key, or (nil, false, nil) if it is absent.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Put writes key to value.
func (s *Store) Put(key, value []byte) error { return s.db.Set(key, value) }

// Delete removes key, treating an absent key as success.
func (s *Store) Delete(key []byte) error { return s.db.Delete(key) }

// Batch starts a new atomic write batch.
func (s *Store) Batch() *pebble.Batch { return s.db.NewBatch() }

// Commit commits b with the store's configured fsync policy.
func (s *Store) Commit(b *pebble.Batch) error { return s.db.CommitBatch(context.Background(), b) }

// IncrCounter applies a signed delta to a counter key via Pebble's merge
// operator — no read-modify-write round trip, safe for concurrent writers.
func (s *Store) IncrCounter(key []byte, delta int64) error {
	return s.db.Merge(key, pebblestore.EncodeCounterDelta(delta))
}

// IncrCounterInBatch stages a counter delta inside an existing batch, so it
// commits atomically with the row writes that justify it.
func IncrCounterInBatch(b *pebble.Batch, key []byte, delta int64) error {
	return pebblestore.MergeInBatch(b, key, pebblestore.EncodeCounterDelta(delta))
}

// ReadCounter returns the counter at key, treating an absent key as 0.
func (s *Store) ReadCounter(key []byte) (int64, error) {
	v, ok, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return pebblestore.DecodeCounterValue(v), nil
}

// Item is a single key/value pair returned by a scan.
type Item struct {
	Key   []byte
	Value []byte
}

// ScanRange visits every key in [lowerBound, upperBound) in ascending order,
// stopping early if visit returns false or an error.
func (s *Store) ScanRange(lowerBound, upperBound []byte, visit func(Item) (bool, error)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lowerBound, UpperBound: upperBound})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		cont, err := visit(Item{
			Key:   append([]byte(nil), iter.Key()...),
			Value: append([]byte(nil), iter.Value()...),
		})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// ScanRangeReverse visits every key in [lowerBound, upperBound) in
// descending order, stopping early if visit returns false or an error.
// Used to find the active shard for a given time-UUID by walking
// shardId/pivot order from the newest shard backward.
func (s *Store) ScanRangeReverse(lowerBound, upperBound []byte, visit func(Item) (bool, error)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lowerBound, UpperBound: upperBound})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.Last(); valid; valid = iter.Prev() {
		cont, err := visit(Item{
			Key:   append([]byte(nil), iter.Key()...),
			Value: append([]byte(nil), iter.Value()...),
		})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// ScanPrefix is ScanRange restricted to a single key prefix.
func (s *Store) ScanPrefix(prefix []byte, visit func(Item) (bool, error)) error {
	return s.ScanRange(prefix, PrefixUpperBound(prefix), visit)
}

// Last returns the last key/value pair within [lowerBound, upperBound), or
// ok=false if the range is empty. Used to find the latest shard without
// scanning the whole range.
func (s *Store) Last(lowerBound, upperBound []byte) (Item, bool, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lowerBound, UpperBound: upperBound})
	if err != nil {
		return Item{}, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return Item{}, false, iter.Error()
	}
	item := Item{
		Key:   append([]byte(nil), iter.Key()...),
		Value: append([]byte(nil), iter.Value()...),
	}
	return item, true, iter.Error()
}

// CountPrefix counts keys under prefix, for operator diagnostics. Not used
// on any hot path.
func (s *Store) CountPrefix(prefix []byte) (int, error) {
	n := 0
	err := s.ScanPrefix(prefix, func(Item) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}
