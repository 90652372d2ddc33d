package message

import (
	"github.com/google/uuid"

	"github.com/qakkaio/qakka/pkg/timeid"
)

// Row is a message_available or message_inflight row, keyed externally by
// (queue, region, shardId, queueMessageId) — see internal/store.MessageRowKey.
type Row struct {
	MessageID uuid.UUID
	// TimestampMs is queuedAt for an available row, inflightAt for an
	// inflight row.
	TimestampMs int64
	NReturned   uint32
}

// Descriptor is what the actor hands a consumer: enough to ack/nack a
// delivery without another storage round trip.
type Descriptor struct {
	QueueMessageID timeid.ID
	MessageID      uuid.UUID
	ShardID        uint64
	QueuedAt       int64
	InflightAt     int64
	NReturned      uint32
}
