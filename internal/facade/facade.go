// Package facade implements §4.5's Distributed Queue Facade: the single
// entry point createQueue/deleteQueue/sendMessageToRegion/getNextMessages/
// loadMessageData/ackMessage/refresh go through, fanning out to the
// per-(queue, region) actor registry, the shard allocator, and the
// sweeper. Grounded on the teacher's internal/services/workqueues.Service,
// which plays the same "thin coordinator over a runtime" role for its own
// gRPC surface.
package facade

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/qakkaio/qakka/internal/actor"
	"github.com/qakkaio/qakka/internal/buffer"
	"github.com/qakkaio/qakka/internal/deadletter"
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/queueregistry"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/internal/sweeper"
	"github.com/qakkaio/qakka/pkg/log"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// Forwarder sends a message to a peer process hosting destRegion. The
// transport/http package implements this over HTTP; tests can stub it.
type Forwarder interface {
	Forward(destRegion string, queue string, messageID uuid.UUID, body message.Body, delayMs int64) error
}

// Config tunes the facade and every actor it creates.
type Config struct {
	LocalRegion     string
	RefreshBatch    int
	BufferTarget    int
	LeaseSeconds    int
	MaxRedeliveries int
	MailboxSize     int
	// BufferRefreshRate/BufferRefreshBurst tune the token-bucket limiter
	// each actor's buffer uses to pace Refresh attempts; zero rate disables
	// the limiter (always allow).
	BufferRefreshRate  rate.Limit
	BufferRefreshBurst int
}

type actorEntry struct {
	actor *actor.Actor
	buf   *buffer.Buffer
}

type pendingSend struct {
	availableAtMs int64
	queue         string
	region        string
	messageID     uuid.UUID
	body          message.Body
}

// Facade is the wiring root described by §4.5 and §9's "no process-wide
// registry beyond a startup wiring function" note.
type Facade struct {
	db         *pebblestore.DB
	store      *store.Store
	allocator  *shard.Allocator
	sweeper    *sweeper.Sweeper
	deadLetter func(queue, region string) (*deadletter.Log, error)
	forwarder  Forwarder
	metrics    *metrics.Metrics
	cfg        Config
	logger     log.Logger
	now        func() time.Time

	mu     sync.RWMutex
	actors map[string]*actorEntry

	pendingMu sync.Mutex
	pending   []pendingSend
	stopDelay chan struct{}
	delayWg   sync.WaitGroup
}

// New wires a Facade over an already-open store, allocator, and sweeper.
// It sets the Facade's internal dead-letter hook to deadletter.Open, through
// which each (queue, region) pair's dead-letter log is opened on demand and
// handed to that pair's actor as its DeadLetterSink.
func New(db *pebblestore.DB, s *store.Store, allocator *shard.Allocator, sw *sweeper.Sweeper, forwarder Forwarder, m *metrics.Metrics, cfg Config, logger log.Logger) *Facade {
	if cfg.RefreshBatch <= 0 {
		cfg.RefreshBatch = 100
	}
	if cfg.BufferTarget <= 0 {
		cfg.BufferTarget = 500
	}
	if cfg.LeaseSeconds <= 0 {
		cfg.LeaseSeconds = 30
	}
	if cfg.MaxRedeliveries <= 0 {
		cfg.MaxRedeliveries = 5
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Facade{
		db:         db,
		store:      s,
		allocator:  allocator,
		sweeper:    sw,
		deadLetter: func(queue, region string) (*deadletter.Log, error) { return deadletter.Open(db, queue, region) },
		forwarder:  forwarder,
		metrics:    m,
		cfg:        cfg,
		logger:     logger.WithComponent("facade"),
		now:        time.Now,
		actors:     make(map[string]*actorEntry),
		stopDelay:  make(chan struct{}),
	}
}

func actorKey(queue, region string) string { return queue + "/" + region }

// Start launches the facade's own background loop (the delayed-send
// promoter, §4.5 / §9 supplemented delay support) alongside the
// allocator and sweeper it was constructed with.
func (f *Facade) Start() {
	f.allocator.Start()
	f.sweeper.Start()
	f.delayWg.Add(1)
	go f.runDelayPromoter()
}

// Stop halts the facade's background loop and every registered actor.
func (f *Facade) Stop() {
	close(f.stopDelay)
	f.delayWg.Wait()
	f.sweeper.Stop()
	f.allocator.Stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.actors {
		e.actor.Stop()
	}
}

// CreateQueue persists q's config and brings up shard-0 and a queue actor
// for (q.Name, q.LocalRegion), per §3's "shard-0 created at queue-create
// time" and §4.5's actor placement.
func (f *Facade) CreateQueue(q queueregistry.Queue) error {
	nowMs := f.now().UnixMilli()
	saved, err := queueregistry.Create(f.db, q, nowMs)
	if err != nil {
		return err
	}

	if _, err := shard.EnsureFirstShard(f.store, saved.Name, saved.LocalRegion, store.Default, nowMs); err != nil {
		return err
	}
	if _, err := shard.EnsureFirstShard(f.store, saved.Name, saved.LocalRegion, store.Inflight, nowMs); err != nil {
		return err
	}

	f.ensureActor(saved)
	f.logger.Info("queue created", log.Str("queue", saved.Name), log.Str("region", saved.LocalRegion))
	return nil
}

// DeleteQueue stops the queue's local actor and removes its registry
// entry, shards, and rows, per §3's deletion cascade. Other regions'
// copies of the queue (hosted by other processes) are unaffected.
func (f *Facade) DeleteQueue(name string) error {
	q, err := queueregistry.Get(f.db, name)
	if err != nil {
		return err
	}

	key := actorKey(name, q.LocalRegion)
	f.mu.Lock()
	if e, ok := f.actors[key]; ok {
		e.actor.Stop()
		delete(f.actors, key)
	}
	f.mu.Unlock()

	f.allocator.UnregisterQueue(name, q.LocalRegion)
	f.sweeper.Unregister(key)

	for _, typ := range []store.ShardType{store.Default, store.Inflight} {
		shards, err := shard.List(f.store, name, q.LocalRegion, typ)
		if err != nil {
			return err
		}
		for _, sh := range shards {
			prefix := store.MessageRowShardPrefix(typ, name, q.LocalRegion, sh.ShardID)
			b := f.store.Batch()
			err := f.store.ScanPrefix(prefix, func(item store.Item) (bool, error) {
				return true, b.Delete(item.Key, nil)
			})
			if err != nil {
				b.Close()
				return qerrors.Transient("facade: scan rows for delete %s: %w", name, err)
			}
			if err := b.Delete(sh.Key(), nil); err != nil {
				b.Close()
				return qerrors.Transient("facade: stage delete shard meta: %w", err)
			}
			if err := b.Delete(sh.CounterKey(), nil); err != nil {
				b.Close()
				return qerrors.Transient("facade: stage delete shard counter: %w", err)
			}
			if err := f.store.Commit(b); err != nil {
				b.Close()
				return qerrors.Transient("facade: commit delete shard %d: %w", sh.ShardID, err)
			}
			b.Close()
		}
	}

	if err := queueregistry.Delete(f.db, name); err != nil {
		return err
	}
	f.logger.Info("queue deleted", log.Str("queue", name))
	return nil
}

// ensureActor returns the actor for (q.Name, q.LocalRegion), creating,
// starting, and registering it with the allocator/sweeper on first use,
// per §5's "actors acquired on first use" resource lifecycle note.
func (f *Facade) ensureActor(q queueregistry.Queue) *actorEntry {
	key := actorKey(q.Name, q.LocalRegion)

	f.mu.RLock()
	e, ok := f.actors[key]
	f.mu.RUnlock()
	if ok {
		return e
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.actors[key]; ok {
		return e
	}

	buf := buffer.New(buffer.Options{
		Target:       f.cfg.BufferTarget,
		RefreshRate:  f.cfg.BufferRefreshRate,
		RefreshBurst: f.cfg.BufferRefreshBurst,
	})
	var dl actor.DeadLetterSink
	if dlLog, err := f.deadLetter(q.Name, q.LocalRegion); err == nil {
		dl = dlLog
	} else {
		f.logger.Error("dead-letter log open failed, dead-letters will not be recorded", log.Err(err))
	}

	leaseSeconds := q.LeaseSeconds
	if leaseSeconds <= 0 {
		leaseSeconds = f.cfg.LeaseSeconds
	}
	maxRedeliveries := q.MaxRedeliveries
	if maxRedeliveries <= 0 {
		maxRedeliveries = f.cfg.MaxRedeliveries
	}

	a := actor.New(q.Name, q.LocalRegion, f.store, buf, f.allocator, dl, actor.Config{
		RefreshBatch:    f.cfg.RefreshBatch,
		LeaseSeconds:    leaseSeconds,
		MaxRedeliveries: maxRedeliveries,
		MailboxSize:     f.cfg.MailboxSize,
	}, f.logger, f.metrics)
	a.Start()

	f.allocator.RegisterQueue(q.Name, q.LocalRegion)
	f.sweeper.Register(key, a, leaseSeconds)

	e = &actorEntry{actor: a, buf: buf}
	f.actors[key] = e
	return e
}

func (f *Facade) lookupActor(queue, region string) (*actorEntry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.actors[actorKey(queue, region)]
	return e, ok
}

// SendMessageToRegion implements §4.5's send routing: a local write if
// destRegion is this process's region, otherwise a forward through the
// transport to the peer hosting destRegion.
func (f *Facade) SendMessageToRegion(queue, srcRegion, destRegion string, body message.Body, delayMs int64) (uuid.UUID, error) {
	messageID := uuid.New()

	if destRegion != f.cfg.LocalRegion {
		if f.forwarder == nil {
			return uuid.Nil, qerrors.Fatal("facade: no forwarder configured to reach region %q", destRegion)
		}
		if err := f.forwarder.Forward(destRegion, queue, messageID, body, delayMs); err != nil {
			return uuid.Nil, err
		}
		return messageID, nil
	}

	if err := f.writeLocal(queue, destRegion, messageID, body, delayMs); err != nil {
		return uuid.Nil, err
	}
	if f.metrics != nil {
		f.metrics.MessagesSent.WithLabelValues(queue, destRegion).Inc()
	}
	return messageID, nil
}

// writeLocal persists body then a DEFAULT row, per §4.5's send routing
// and §7's note that a crash between the two leaks a body the GC job
// reclaims. delayMs > 0 defers the row write via the pending-send queue
// instead of writing DEFAULT immediately.
func (f *Facade) writeLocal(queue, region string, messageID uuid.UUID, body message.Body, delayMs int64) error {
	if err := f.store.Put(store.BodyKey(messageID), message.EncodeBody(body)); err != nil {
		return qerrors.Transient("facade: persist body: %w", err)
	}

	if delayMs > 0 {
		f.pendingMu.Lock()
		f.pending = append(f.pending, pendingSend{
			availableAtMs: f.now().UnixMilli() + delayMs,
			queue:         queue, region: region,
			messageID: messageID, body: body,
		})
		f.pendingMu.Unlock()
		return nil
	}

	return f.writeDefaultRow(queue, region, messageID)
}

func (f *Facade) writeDefaultRow(queue, region string, messageID uuid.UUID) error {
	gen := timeid.NewGenerator()
	qmid := gen.Next()

	sh, err := shard.ActiveShardForID(f.store, queue, region, store.Default, qmid)
	if err != nil {
		return err
	}

	row := message.Row{MessageID: messageID, TimestampMs: f.now().UnixMilli(), NReturned: 0}
	key := store.MessageRowKey(store.Default, queue, region, sh.ShardID, qmid)

	b := f.store.Batch()
	defer b.Close()
	if err := b.Set(key, message.EncodeRow(row), nil); err != nil {
		return qerrors.Transient("facade: stage default row: %w", err)
	}
	if err := store.IncrCounterInBatch(b, sh.CounterKey(), 1); err != nil {
		return qerrors.Transient("facade: stage default counter: %w", err)
	}
	if err := f.store.Commit(b); err != nil {
		return qerrors.Transient("facade: commit send: %w", err)
	}

	if e, ok := f.lookupActor(queue, region); ok {
		e.actor.ShardCheckRequest()
	}
	return nil
}

// runDelayPromoter periodically moves due pending sends into DEFAULT
// rows. Grounded on the teacher's delay_idx scan in
// internal/services/workqueues.Service, adapted into a facade-owned
// ticker instead of a per-request scan.
func (f *Facade) runDelayPromoter() {
	defer f.delayWg.Done()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-f.stopDelay:
			return
		case <-ticker.C:
			f.promoteDue()
		}
	}
}

func (f *Facade) promoteDue() {
	nowMs := f.now().UnixMilli()

	f.pendingMu.Lock()
	var due []pendingSend
	remaining := f.pending[:0]
	for _, p := range f.pending {
		if p.availableAtMs <= nowMs {
			due = append(due, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	f.pending = remaining
	f.pendingMu.Unlock()

	for _, p := range due {
		if err := f.writeDefaultRow(p.queue, p.region, p.messageID); err != nil {
			f.logger.Error("delayed send promotion failed", log.Str("queue", p.queue), log.Err(err))
		}
	}
}

// GetNextMessages implements §4.5's get routing: always the actor for
// (queue, localRegion). consumerID is optional (§9 supplemented feature 3)
// and only recorded for observability; pass "" if the caller has none.
func (f *Facade) GetNextMessages(queue string, n int, consumerID string) []message.Descriptor {
	e, ok := f.lookupActor(queue, f.cfg.LocalRegion)
	if !ok {
		return nil
	}
	out := e.actor.GetNext(n, consumerID)
	if f.metrics != nil {
		if len(out) > 0 {
			f.metrics.MessagesDelivered.WithLabelValues(queue, f.cfg.LocalRegion).Add(float64(len(out)))
		}
		if consumerID != "" {
			const heartbeatWindowMs = 5 * 60 * 1000
			f.metrics.ActiveConsumers.WithLabelValues(queue, f.cfg.LocalRegion).Set(float64(e.actor.ActiveConsumers(heartbeatWindowMs)))
		}
	}
	return out
}

// LoadMessageData returns the body for messageID, or NotFound if absent
// (e.g. already acked).
func (f *Facade) LoadMessageData(messageID uuid.UUID) (message.Body, error) {
	v, ok, err := f.store.Get(store.BodyKey(messageID))
	if err != nil {
		return message.Body{}, qerrors.Transient("facade: get body: %w", err)
	}
	if !ok {
		return message.Body{}, qerrors.NotFound("facade: no body for message %s", messageID)
	}
	return message.DecodeBody(v)
}

// AckMessage implements §4.5's ackMessage, routed to the local actor for
// (queue, localRegion). Acking an unknown id is a no-op, per §7.
func (f *Facade) AckMessage(queue string, queueMessageID timeid.ID) error {
	e, ok := f.lookupActor(queue, f.cfg.LocalRegion)
	if !ok {
		return nil
	}
	if err := e.actor.Ack(queueMessageID); err != nil {
		return err
	}
	if f.metrics != nil {
		f.metrics.MessagesAcked.WithLabelValues(queue, f.cfg.LocalRegion).Inc()
	}
	return nil
}

// NackMessage exposes the actor's Nack for consumers that explicitly
// reject a delivery rather than letting its lease expire.
func (f *Facade) NackMessage(queue string, queueMessageID timeid.ID) error {
	e, ok := f.lookupActor(queue, f.cfg.LocalRegion)
	if !ok {
		return nil
	}
	if err := e.actor.Nack(queueMessageID); err != nil {
		return err
	}
	if f.metrics != nil {
		f.metrics.MessagesNacked.WithLabelValues(queue, f.cfg.LocalRegion).Inc()
	}
	return nil
}

// ShardCheck is the operator hook behind cmd/qakka's shard-check command:
// it forces an immediate ShardCheckRequest for (queue, localRegion)
// instead of waiting for the allocator's own interval (§4.1).
func (f *Facade) ShardCheck(queue string) {
	if e, ok := f.lookupActor(queue, f.cfg.LocalRegion); ok {
		e.actor.ShardCheckRequest()
	}
}

// UpdateTunables applies a reloaded RefreshBatch/BufferTarget/LeaseSeconds/
// MaxRedeliveries/BufferRefreshRate/BufferRefreshBurst to the facade's own
// Config for queues created from this point on. It does not reach into
// already-running actors: those keep the settings they were created with
// until the queue is next restored, matching the hot-reload scope
// cmd/qakka's serve command documents for config.Watch.
func (f *Facade) UpdateTunables(refreshBatch, bufferTarget, leaseSeconds, maxRedeliveries int, refreshRate rate.Limit, refreshBurst int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if refreshBatch > 0 {
		f.cfg.RefreshBatch = refreshBatch
	}
	if bufferTarget > 0 {
		f.cfg.BufferTarget = bufferTarget
	}
	if leaseSeconds > 0 {
		f.cfg.LeaseSeconds = leaseSeconds
	}
	if maxRedeliveries > 0 {
		f.cfg.MaxRedeliveries = maxRedeliveries
	}
	f.cfg.BufferRefreshRate = refreshRate
	if refreshBurst > 0 {
		f.cfg.BufferRefreshBurst = refreshBurst
	}
}

// Refresh is the operator/test hook from §6: forces every locally hosted
// actor to top up its buffer immediately rather than waiting on its own
// schedule.
func (f *Facade) Refresh() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.actors {
		e.actor.Refresh()
	}
}

// GetQueueDepth resolves §9's open question in favor of implementing it:
// counter(DEFAULT) + counter(INFLIGHT) summed across every shard of
// (queue, localRegion).
func (f *Facade) GetQueueDepth(queue string) (int64, error) {
	var total int64
	for _, typ := range []store.ShardType{store.Default, store.Inflight} {
		shards, err := shard.List(f.store, queue, f.cfg.LocalRegion, typ)
		if err != nil {
			return 0, err
		}
		for _, sh := range shards {
			c, err := f.store.ReadCounter(sh.CounterKey())
			if err != nil {
				return 0, err
			}
			total += c
		}
	}
	if f.metrics != nil {
		f.metrics.QueueDepth.WithLabelValues(queue, f.cfg.LocalRegion).Set(float64(total))
	}
	return total, nil
}

// ListQueues returns every registered queue, sorted by name.
func (f *Facade) ListQueues() ([]queueregistry.Queue, error) {
	return queueregistry.List(f.db)
}

// ListDeadLetters implements §9's supplemented operator recovery surface:
// inspect permanently failed deliveries for a (queue, region) pair.
func (f *Facade) ListDeadLetters(queue, region string, start uint64, limit int) ([]deadletter.Entry, uint64, error) {
	dlLog, err := f.deadLetter(queue, region)
	if err != nil {
		return nil, 0, err
	}
	return dlLog.List(start, limit)
}

// RequeueDeadLetter re-admits a dead-lettered delivery as a fresh DEFAULT
// row with nReturned reset to 0, giving an operator a manual redrive path
// after fixing whatever caused repeated nacks. It composes
// internal/deadletter's record with internal/shard's write path directly,
// which is why this lives in facade rather than deadletter itself.
func (f *Facade) RequeueDeadLetter(queue, region string, messageID uuid.UUID, body message.Body) error {
	if err := f.store.Put(store.BodyKey(messageID), message.EncodeBody(body)); err != nil {
		return qerrors.Transient("facade: requeue persist body: %w", err)
	}
	return f.writeDefaultRow(queue, region, messageID)
}

// RestoreQueues re-attaches actors for every queue this process hosts
// (LocalRegion == f.cfg.LocalRegion), called once at startup after the
// registry and storage have been opened but before the facade serves
// traffic.
func (f *Facade) RestoreQueues() error {
	queues, err := queueregistry.List(f.db)
	if err != nil {
		return err
	}
	for _, q := range queues {
		if q.LocalRegion != f.cfg.LocalRegion {
			continue
		}
		f.ensureActor(q)
	}
	return nil
}
