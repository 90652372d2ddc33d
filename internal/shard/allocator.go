package shard

import (
	"context"
	"sync"
	"time"

	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/store"
	"github.com/qakkaio/qakka/pkg/log"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// Config tunes the allocator's threshold and its new shards' pivots.
type Config struct {
	// MaxShardSize is the row-count threshold; allocation fires at 0.9x it.
	MaxShardSize uint64
	// AdvanceWindow is added to now when minting a new shard's pivot.
	AdvanceWindow time.Duration
	// Interval is how often the background loop fires ShardCheckRequest
	// for every registered (queue, region) pair.
	Interval time.Duration
}

const allocationThresholdFraction = 0.9

func (c Config) threshold() uint64 {
	return uint64(float64(c.MaxShardSize) * allocationThresholdFraction)
}

// Allocator implements §4.1: watching each (queue, region) pair's latest
// shard counter and allocating a new shard with a future pivot once it
// nears capacity.
type Allocator struct {
	store   *store.Store
	cfg     Config
	logger  log.Logger
	now     func() time.Time
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	queues map[queueRegion]struct{}
}

type queueRegion struct {
	queue, region string
}

// New creates an Allocator. Call RegisterQueue for each (queue, region)
// pair it should watch, then Start to begin the background tick loop. m
// may be nil, in which case shard allocation counts are not recorded.
func New(s *store.Store, cfg Config, logger log.Logger, m *metrics.Metrics) *Allocator {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Allocator{
		store:   s,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		queues:  make(map[queueRegion]struct{}),
	}
}

// RegisterQueue adds (queue, region) to the set the background loop scans.
func (a *Allocator) RegisterQueue(queue, region string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queues[queueRegion{queue, region}] = struct{}{}
}

// UnregisterQueue removes (queue, region) from the scanned set, on queue delete.
func (a *Allocator) UnregisterQueue(queue, region string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.queues, queueRegion{queue, region})
}

// SetMaxShardSize updates the allocation threshold applied on the next
// tick. Safe to call while the background loop is running.
func (a *Allocator) SetMaxShardSize(size uint64) {
	if size == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.MaxShardSize = size
}

// Start begins the background tick loop.
func (a *Allocator) Start() {
	a.wg.Add(1)
	go a.run()
}

// Stop halts the background loop and waits for it to exit.
func (a *Allocator) Stop() {
	a.cancel()
	a.wg.Wait()
}

func (a *Allocator) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.logger.Info("shard allocator started", log.F("interval", a.cfg.Interval.String()))

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("shard allocator stopped")
			return
		case <-ticker.C:
			a.scanAll()
		}
	}
}

func (a *Allocator) scanAll() {
	a.mu.RLock()
	pairs := make([]queueRegion, 0, len(a.queues))
	for qr := range a.queues {
		pairs = append(pairs, qr)
	}
	a.mu.RUnlock()

	for _, qr := range pairs {
		a.ShardCheckRequest(qr.queue, qr.region)
	}
}

// ShardCheckRequest implements §4.1's contract for a single (queue, region)
// pair: for each type, locate the latest shard, read its counter, and
// allocate the next shard if the counter has crossed the threshold.
//
// Per §4.1's failure semantics, every error is caught, logged, and
// swallowed — the next tick retries.
func (a *Allocator) ShardCheckRequest(queue, region string) {
	for _, typ := range []store.ShardType{store.Default, store.Inflight} {
		if err := a.checkType(queue, region, typ); err != nil {
			a.logger.Error("shard allocator tick failed",
				log.Str("queue", queue), log.Str("region", region),
				log.Str("type", typ.String()), log.Err(err))
		}
	}
}

func (a *Allocator) checkType(queue, region string, typ store.ShardType) error {
	latest, ok, err := Latest(a.store, queue, region, typ)
	if err != nil {
		return err
	}
	if !ok {
		// Edge case per §4.1: no shards exist yet. Shard 0 is created at
		// queue-create time, so this should not normally happen; log and
		// return rather than allocate here.
		a.logger.Debug("shard allocator: no shards yet", log.Str("queue", queue), log.Str("region", region), log.Str("type", typ.String()))
		return nil
	}

	counter, err := a.store.ReadCounter(latest.CounterKey())
	if err != nil {
		return qerrors.Transient("shard: read counter for %s/%s/%s shard %d: %w", queue, region, typ, latest.ShardID, err)
	}

	a.mu.RLock()
	threshold := a.cfg.threshold()
	advance := a.cfg.AdvanceWindow
	a.mu.RUnlock()
	if counter <= int64(threshold) {
		return nil
	}

	next := Shard{
		Queue:   queue,
		Region:  region,
		Type:    typ,
		ShardID: latest.ShardID + 1,
		Pivot:   timeid.FromTime(a.now().Add(advance)),
	}
	if err := Create(a.store, next, a.now().UnixMilli()); err != nil {
		return err
	}
	if a.metrics != nil {
		a.metrics.ShardsAllocated.WithLabelValues(queue, region, typ.String()).Inc()
	}
	a.logger.Info("allocated new shard",
		log.Str("queue", queue), log.Str("region", region), log.Str("type", typ.String()),
		log.F("shardId", next.ShardID), log.Int64("counter", counter))
	return nil
}
