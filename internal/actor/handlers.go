package actor

import (
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	"github.com/qakkaio/qakka/pkg/log"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// handleRefresh implements §4.2's Refresh algorithm: top up the buffer
// from the active DEFAULT shards, oldest first, atomically moving each
// row fetched to INFLIGHT before it is appended to the buffer
// (invariant A2).
func (a *Actor) handleRefresh() {
	lowWatermark := a.buf.LowWatermark(a.cfg.RefreshBatch)
	if !a.buf.NeedsRefresh(lowWatermark) {
		return
	}
	if !a.buf.AllowRefresh() {
		return
	}

	shards, err := shard.List(a.store, a.queue, a.region, store.Default)
	if err != nil {
		a.logger.Error("refresh: list shards failed", log.Err(err))
		return
	}

	nowID := timeid.FromTime(a.now())
	budget := a.cfg.RefreshBatch
	for _, sh := range shards {
		if budget <= 0 {
			break
		}
		// Only shards whose pivot has arrived are active for draining;
		// a shard allocated with a future pivot is not yet readable.
		if sh.Pivot.Compare(nowID) > 0 {
			continue
		}
		fetched, err := a.drainShard(sh, budget)
		if err != nil {
			a.logger.Error("refresh: drain shard failed", log.F("shardId", sh.ShardID), log.Err(err))
			continue
		}
		budget -= fetched
	}
	a.recordBufferOccupancy()
}

func (a *Actor) drainShard(sh shard.Shard, budget int) (int, error) {
	prefix := store.MessageRowShardPrefix(store.Default, a.queue, a.region, sh.ShardID)
	var rows []store.Item
	err := a.store.ScanPrefix(prefix, func(item store.Item) (bool, error) {
		rows = append(rows, item)
		return len(rows) < budget, nil
	})
	if err != nil {
		return 0, qerrors.Transient("actor: scan shard %d: %w", sh.ShardID, err)
	}

	moved := 0
	for _, item := range rows {
		row, err := message.DecodeRow(item.Value)
		if err != nil {
			a.logger.Error("refresh: corrupt default row, skipping", log.F("shardId", sh.ShardID), log.Err(err))
			continue
		}

		newQMID := a.gen.Next()
		inflightShard, err := shard.ActiveShardForID(a.store, a.queue, a.region, store.Inflight, newQMID)
		if err != nil {
			a.logger.Error("refresh: no active inflight shard", log.Err(err))
			continue
		}

		inflightAtMs := a.now().UnixMilli()
		newRow := message.Row{MessageID: row.MessageID, TimestampMs: inflightAtMs, NReturned: row.NReturned}
		newKey := store.MessageRowKey(store.Inflight, a.queue, a.region, inflightShard.ShardID, newQMID)

		b := a.store.Batch()
		if err := b.Delete(item.Key, nil); err != nil {
			b.Close()
			return moved, qerrors.Transient("actor: stage delete default row: %w", err)
		}
		if err := b.Set(newKey, message.EncodeRow(newRow), nil); err != nil {
			b.Close()
			return moved, qerrors.Transient("actor: stage set inflight row: %w", err)
		}
		if err := store.IncrCounterInBatch(b, sh.CounterKey(), -1); err != nil {
			b.Close()
			return moved, qerrors.Transient("actor: stage default counter decrement: %w", err)
		}
		if err := store.IncrCounterInBatch(b, inflightShard.CounterKey(), 1); err != nil {
			b.Close()
			return moved, qerrors.Transient("actor: stage inflight counter increment: %w", err)
		}
		if err := a.store.Commit(b); err != nil {
			b.Close()
			return moved, qerrors.Transient("actor: commit default->inflight transition: %w", err)
		}
		b.Close()

		a.buf.Append(message.Descriptor{
			QueueMessageID: newQMID,
			MessageID:      row.MessageID,
			ShardID:        inflightShard.ShardID,
			QueuedAt:       row.TimestampMs,
			InflightAt:     inflightAtMs,
			NReturned:      row.NReturned,
		})
		moved++
	}
	return moved, nil
}

// handleGetNext serves up to n descriptors from the buffer without
// touching storage, per §4.2.
func (a *Actor) handleGetNext(n int) []message.Descriptor {
	out := a.buf.PollUpTo(n)
	a.recordBufferOccupancy()
	return out
}

// handleAck deletes the INFLIGHT row for queueMessageID and its body.
// Acking an unknown id is a no-op (§7): by invariant M1, an unacked
// messageId has exactly one live row, so deleting the INFLIGHT row found
// here is always safe to pair with a body delete.
func (a *Actor) handleAck(qmid timeid.ID) error {
	sh, err := shard.ActiveShardForID(a.store, a.queue, a.region, store.Inflight, qmid)
	if qerrors.Is(err, qerrors.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	key := store.MessageRowKey(store.Inflight, a.queue, a.region, sh.ShardID, qmid)
	val, ok, err := a.store.Get(key)
	if err != nil {
		return qerrors.Transient("actor: ack get inflight row: %w", err)
	}
	if !ok {
		return nil
	}
	row, err := message.DecodeRow(val)
	if err != nil {
		return qerrors.Fatal("actor: ack decode inflight row: %w", err)
	}

	b := a.store.Batch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return qerrors.Transient("actor: stage ack delete inflight row: %w", err)
	}
	if err := b.Delete(store.BodyKey(row.MessageID), nil); err != nil {
		return qerrors.Transient("actor: stage ack delete body: %w", err)
	}
	if err := store.IncrCounterInBatch(b, sh.CounterKey(), -1); err != nil {
		return qerrors.Transient("actor: stage ack counter decrement: %w", err)
	}
	if err := a.store.Commit(b); err != nil {
		return qerrors.Transient("actor: commit ack: %w", err)
	}
	return nil
}

// handleNack transitions INFLIGHT->DEFAULT with a fresh queueMessageId and
// an incremented nReturned, or dead-letters the message once
// MaxRedeliveries is exceeded, per §4.2 and §4.6.
func (a *Actor) handleNack(qmid timeid.ID) error {
	inflightShard, err := shard.ActiveShardForID(a.store, a.queue, a.region, store.Inflight, qmid)
	if qerrors.Is(err, qerrors.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	key := store.MessageRowKey(store.Inflight, a.queue, a.region, inflightShard.ShardID, qmid)
	val, ok, err := a.store.Get(key)
	if err != nil {
		return qerrors.Transient("actor: nack get inflight row: %w", err)
	}
	if !ok {
		return nil
	}
	row, err := message.DecodeRow(val)
	if err != nil {
		return qerrors.Fatal("actor: nack decode inflight row: %w", err)
	}

	nReturned := row.NReturned + 1
	if int(nReturned) > a.cfg.MaxRedeliveries {
		return a.deadLetter(inflightShard, key, row, nReturned)
	}
	return a.requeue(inflightShard, key, row, nReturned)
}

func (a *Actor) deadLetter(inflightShard shard.Shard, inflightKey []byte, row message.Row, nReturned uint32) error {
	b := a.store.Batch()
	defer b.Close()
	if err := b.Delete(inflightKey, nil); err != nil {
		return qerrors.Transient("actor: stage dead-letter delete inflight row: %w", err)
	}
	if err := b.Delete(store.BodyKey(row.MessageID), nil); err != nil {
		return qerrors.Transient("actor: stage dead-letter delete body: %w", err)
	}
	if err := store.IncrCounterInBatch(b, inflightShard.CounterKey(), -1); err != nil {
		return qerrors.Transient("actor: stage dead-letter counter decrement: %w", err)
	}
	if err := a.store.Commit(b); err != nil {
		return qerrors.Transient("actor: commit dead-letter transition: %w", err)
	}
	if a.deadLetters != nil {
		if err := a.deadLetters.Record(a.queue, a.region, row.MessageID, nReturned, "max_redeliveries_exceeded"); err != nil {
			a.logger.Error("dead-letter record failed", log.Err(err))
		}
	}
	if a.metrics != nil {
		a.metrics.MessagesDeadLettered.WithLabelValues(a.queue, a.region).Inc()
	}
	a.logger.Info("message dead-lettered", log.F("nReturned", nReturned))
	return nil
}

func (a *Actor) requeue(inflightShard shard.Shard, inflightKey []byte, row message.Row, nReturned uint32) error {
	newQMID := a.gen.Next()
	defaultShard, err := shard.ActiveShardForID(a.store, a.queue, a.region, store.Default, newQMID)
	if err != nil {
		return qerrors.Transient("actor: no active default shard for requeue: %w", err)
	}

	newRow := message.Row{MessageID: row.MessageID, TimestampMs: a.now().UnixMilli(), NReturned: nReturned}
	newKey := store.MessageRowKey(store.Default, a.queue, a.region, defaultShard.ShardID, newQMID)

	b := a.store.Batch()
	defer b.Close()
	if err := b.Delete(inflightKey, nil); err != nil {
		return qerrors.Transient("actor: stage requeue delete inflight row: %w", err)
	}
	if err := b.Set(newKey, message.EncodeRow(newRow), nil); err != nil {
		return qerrors.Transient("actor: stage requeue set default row: %w", err)
	}
	if err := store.IncrCounterInBatch(b, inflightShard.CounterKey(), -1); err != nil {
		return qerrors.Transient("actor: stage requeue inflight counter decrement: %w", err)
	}
	if err := store.IncrCounterInBatch(b, defaultShard.CounterKey(), 1); err != nil {
		return qerrors.Transient("actor: stage requeue default counter increment: %w", err)
	}
	if err := a.store.Commit(b); err != nil {
		return qerrors.Transient("actor: commit requeue: %w", err)
	}
	return nil
}

// handleSweep scans INFLIGHT rows across every shard of this actor's
// (queue, region) for leases older than leaseMs, requeuing or
// dead-lettering each one via the same branch handleNack uses, per §4.4.
// Runs on the actor's own mailbox loop, so it never races a concurrent Ack
// or Nack of the same row.
func (a *Actor) handleSweep(leaseMs int64) (int, error) {
	type expiredRow struct {
		key     []byte
		shardID uint64
		row     message.Row
	}

	budget := a.cfg.RefreshBatch
	nowMs := a.now().UnixMilli()
	prefix := store.MessageRowQueueRegionPrefix(store.Inflight, a.queue, a.region)

	var due []expiredRow
	err := a.store.ScanPrefix(prefix, func(item store.Item) (bool, error) {
		row, err := message.DecodeRow(item.Value)
		if err != nil {
			a.logger.Error("sweep: corrupt inflight row, skipping", log.Err(err))
			return true, nil
		}
		if nowMs-row.TimestampMs >= leaseMs {
			shardID, _ := store.ParseMessageRowKey(store.Inflight, a.queue, a.region, item.Key)
			due = append(due, expiredRow{key: item.Key, shardID: shardID, row: row})
		}
		return len(due) < budget, nil
	})
	if err != nil {
		return 0, qerrors.Transient("actor: sweep scan: %w", err)
	}

	swept := 0
	for _, e := range due {
		inflightShard, err := shard.Get(a.store, a.queue, a.region, store.Inflight, e.shardID)
		if err != nil {
			a.logger.Error("sweep: inflight shard lookup failed", log.F("shardId", e.shardID), log.Err(err))
			continue
		}

		nReturned := e.row.NReturned + 1
		if int(nReturned) > a.cfg.MaxRedeliveries {
			err = a.deadLetter(inflightShard, e.key, e.row, nReturned)
		} else {
			err = a.requeue(inflightShard, e.key, e.row, nReturned)
			if err == nil && a.metrics != nil {
				a.metrics.MessagesRedelivered.WithLabelValues(a.queue, a.region).Inc()
			}
		}
		if err != nil {
			a.logger.Error("sweep: transition failed", log.F("shardId", e.shardID), log.Err(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		a.logger.Info("swept expired leases", log.F("count", swept))
	}
	// Compaction hint after a large sweep, mirroring the teacher's
	// ReclaimExpired threshold.
	if swept >= 4096 {
		if err := a.store.DB().CompactRange(prefix, store.PrefixUpperBound(prefix)); err != nil {
			a.logger.Error("sweep: compaction hint failed", log.Err(err))
		}
	}
	return swept, nil
}

// handleShardCheck forwards to the shard allocator, per §4.2's routing of
// ShardCheckRequest.
func (a *Actor) handleShardCheck() {
	if a.allocator != nil {
		a.allocator.ShardCheckRequest(a.queue, a.region)
	}
}
