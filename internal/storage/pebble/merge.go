package pebblestore

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/pebble"
)

// counterMergerName identifies the merge operator so Pebble can validate it
// is the same one used when the database was created.
const counterMergerName = "qakka.counter.v1"

// counterMerger implements an atomic int64 accumulator on top of Pebble's
// merge operator: every operand is an 8-byte big-endian delta (positive or
// negative), and Finish sums them into the stored counter value. This backs
// shard_counters, where the allocator, the actor, and the sweeper each
// increment or decrement concurrently without a read-modify-write race.
var counterMerger = &pebble.Merger{
	Name: counterMergerName,
	Merge: func(key, value []byte) (pebble.ValueMerger, error) {
		m := &counterValueMerger{}
		if err := m.MergeNewer(value); err != nil {
			return nil, err
		}
		return m, nil
	},
}

type counterValueMerger struct {
	sum int64
}

func (m *counterValueMerger) add(operand []byte) error {
	if len(operand) == 0 {
		return nil
	}
	if len(operand) != 8 {
		return errInvalidCounterOperand
	}
	m.sum += int64(binary.BigEndian.Uint64(operand))
	return nil
}

// MergeNewer is called for operands applied after the current accumulator
// state, in chronological order.
func (m *counterValueMerger) MergeNewer(value []byte) error { return m.add(value) }

// MergeOlder is called for operands applied before the current accumulator
// state (Pebble may replay in either direction during compaction).
func (m *counterValueMerger) MergeOlder(value []byte) error { return m.add(value) }

// Finish encodes the accumulated sum as an 8-byte big-endian counter value.
func (m *counterValueMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(m.sum))
	return buf, nil, nil
}

var errInvalidCounterOperand = &counterError{"pebble: counter merge operand must be 8 bytes"}

type counterError struct{ msg string }

func (e *counterError) Error() string { return e.msg }

// EncodeCounterDelta encodes a signed delta for use as a merge operand.
func EncodeCounterDelta(delta int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(delta))
	return buf
}

// DecodeCounterValue decodes a stored counter value. A missing key (caller
// should treat pebble.ErrNotFound as a zero counter) is not handled here.
func DecodeCounterValue(value []byte) int64 {
	if len(value) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(value))
}
