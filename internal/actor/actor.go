package actor

import (
	"context"
	"sync"
	"time"

	"github.com/qakkaio/qakka/internal/buffer"
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	"github.com/qakkaio/qakka/pkg/log"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// Config tunes a single actor's batching and lease behavior.
type Config struct {
	// RefreshBatch caps rows moved DEFAULT->INFLIGHT per refresh.
	RefreshBatch int
	// LeaseSeconds is carried for informational/metrics purposes; lease
	// expiry itself is enforced by internal/sweeper, not the actor.
	LeaseSeconds int
	// MaxRedeliveries caps nReturned before a message is dead-lettered.
	MaxRedeliveries int
	// MailboxSize bounds how many pending requests may queue before a
	// sender blocks.
	MailboxSize int
}

// DeadLetterSink receives messages that have exceeded MaxRedeliveries.
// internal/deadletter implements this; kept as an interface here so actor
// does not import deadletter directly.
type DeadLetterSink interface {
	Record(queue, region string, messageID [16]byte, nReturned uint32, reason string) error
}

// Actor is the single-writer owner of one (queue, region) pair's buffer
// and DEFAULT<->INFLIGHT transitions, per §4.2 and §5.
type Actor struct {
	queue, region string
	store         *store.Store
	buf           *buffer.Buffer
	allocator     *shard.Allocator
	deadLetters   DeadLetterSink
	gen           *timeid.Generator
	cfg           Config
	logger        log.Logger
	now           func() time.Time
	metrics       *metrics.Metrics

	mailbox chan interface{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumerMu sync.Mutex
	consumers  map[string]int64
}

// New constructs an Actor. Call Start before sending it any requests. m may
// be nil, in which case this actor's transitions are not recorded.
func New(queue, region string, s *store.Store, buf *buffer.Buffer, allocator *shard.Allocator, deadLetters DeadLetterSink, cfg Config, logger log.Logger, m *metrics.Metrics) *Actor {
	if cfg.RefreshBatch <= 0 {
		cfg.RefreshBatch = 100
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 256
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Actor{
		queue: queue, region: region,
		store: s, buf: buf, allocator: allocator, deadLetters: deadLetters,
		gen: timeid.NewGenerator(), cfg: cfg, logger: logger.WithComponent("actor").With(log.Str("queue", queue), log.Str("region", region)),
		now:     time.Now,
		metrics: m,
		mailbox:   make(chan interface{}, cfg.MailboxSize),
		ctx:       ctx, cancel: cancel,
		consumers: make(map[string]int64),
	}
}

// Start begins the actor's single-threaded mailbox loop.
func (a *Actor) Start() {
	a.wg.Add(1)
	go a.run()
}

// Stop drains and halts the actor's mailbox loop.
func (a *Actor) Stop() {
	a.cancel()
	a.wg.Wait()
}

func (a *Actor) run() {
	defer a.wg.Done()
	a.logger.Info("queue actor started")
	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("queue actor stopped")
			return
		case msg := <-a.mailbox:
			a.dispatch(msg)
		}
	}
}

func (a *Actor) dispatch(msg interface{}) {
	switch m := msg.(type) {
	case refreshMsg:
		a.handleRefresh()
	case getNextMsg:
		if m.consumerID != "" {
			a.recordHeartbeat(m.consumerID)
		}
		m.reply <- a.handleGetNext(m.n)
	case ackMsg:
		m.reply <- a.handleAck(m.queueMessageID)
	case nackMsg:
		m.reply <- a.handleNack(m.queueMessageID)
	case shardCheckMsg:
		a.handleShardCheck()
	case sweepMsg:
		swept, err := a.handleSweep(m.leaseMs)
		m.reply <- sweepResult{swept: swept, err: err}
	}
}

// send delivers msg to the mailbox, respecting ctx cancellation so callers
// never block forever against a stopped actor.
func (a *Actor) send(msg interface{}) {
	select {
	case a.mailbox <- msg:
	case <-a.ctx.Done():
	}
}

// Refresh requests that the actor top up its buffer from storage if it is
// below its low watermark. Fire-and-forget, per §4.2.
func (a *Actor) Refresh() { a.send(refreshMsg{}) }

// ShardCheckRequest forwards to the shard allocator for this actor's
// (queue, region), per §4.2's routing of ShardCheckRequest.
func (a *Actor) ShardCheckRequest() { a.send(shardCheckMsg{}) }

// GetNext returns up to n descriptors from the head of the in-memory
// buffer. Never hits storage synchronously; it returns fewer than n if the
// buffer is short, per §4.2. consumerID is optional metadata (§9
// supplemented feature 3, adapted from the teacher's ConsumerRegistry): if
// non-empty its last-seen time is recorded, for observability only — it
// never affects which descriptors are returned.
func (a *Actor) GetNext(n int, consumerID string) []message.Descriptor {
	reply := make(chan []message.Descriptor, 1)
	select {
	case a.mailbox <- getNextMsg{n: n, consumerID: consumerID, reply: reply}:
	case <-a.ctx.Done():
		return nil
	}
	select {
	case out := <-reply:
		return out
	case <-a.ctx.Done():
		return nil
	}
}

// recordBufferOccupancy publishes the buffer's current size, called after
// every operation that can change it (refresh, getNext).
func (a *Actor) recordBufferOccupancy() {
	if a.metrics != nil {
		a.metrics.BufferOccupancy.WithLabelValues(a.queue, a.region).Set(float64(a.buf.Size()))
	}
}

func (a *Actor) recordHeartbeat(consumerID string) {
	a.consumerMu.Lock()
	a.consumers[consumerID] = a.now().UnixMilli()
	a.consumerMu.Unlock()
}

// ActiveConsumers counts distinct consumerIDs seen via GetNext within the
// last windowMs, the minimal adaptation of the teacher's heartbeat-based
// liveness check (workqueue/consumer.go) that §9 calls out as useful for
// observability but "explicitly not required for correctness."
func (a *Actor) ActiveConsumers(windowMs int64) int {
	cutoff := a.now().UnixMilli() - windowMs
	a.consumerMu.Lock()
	defer a.consumerMu.Unlock()
	count := 0
	for id, lastSeen := range a.consumers {
		if lastSeen >= cutoff {
			count++
		} else {
			delete(a.consumers, id)
		}
	}
	return count
}

// Ack deletes the INFLIGHT row for queueMessageID and, if it was the last
// outstanding delivery for its messageId, deletes the body.
func (a *Actor) Ack(queueMessageID timeid.ID) error {
	reply := make(chan error, 1)
	select {
	case a.mailbox <- ackMsg{queueMessageID: queueMessageID, reply: reply}:
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
}

// SweepExpired requeues or dead-letters every INFLIGHT row of this actor's
// (queue, region) whose lease has been held longer than leaseMs, per
// §4.4. It is the mailbox-routed counterpart to Nack, invoked by
// internal/sweeper instead of a consumer, so expiry handling serializes
// through the same single-writer loop as every other transition.
func (a *Actor) SweepExpired(leaseMs int64) (int, error) {
	reply := make(chan sweepResult, 1)
	select {
	case a.mailbox <- sweepMsg{leaseMs: leaseMs, reply: reply}:
	case <-a.ctx.Done():
		return 0, a.ctx.Err()
	}
	select {
	case res := <-reply:
		return res.swept, res.err
	case <-a.ctx.Done():
		return 0, a.ctx.Err()
	}
}

// Nack transitions INFLIGHT->DEFAULT with a new queueMessageId and
// incremented nReturned, or dead-letters the message if it has exceeded
// MaxRedeliveries.
func (a *Actor) Nack(queueMessageID timeid.ID) error {
	reply := make(chan error, 1)
	select {
	case a.mailbox <- nackMsg{queueMessageID: queueMessageID, reply: reply}:
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
}
