package actor

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/qakkaio/qakka/internal/buffer"
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/pkg/timeid"
)

type fakeDeadLetters struct {
	records []uuid.UUID
}

func (f *fakeDeadLetters) Record(queue, region string, messageID [16]byte, nReturned uint32, reason string) error {
	f.records = append(f.records, messageID)
	return nil
}

func newTestActor(t *testing.T, cfg Config) (*Actor, *store.Store, *fakeDeadLetters) {
	t.Helper()
	a, s, dl, _ := newTestActorWithMetrics(t, cfg, nil)
	return a, s, dl
}

func newTestActorWithMetrics(t *testing.T, cfg Config, m *metrics.Metrics) (*Actor, *store.Store, *fakeDeadLetters, *buffer.Buffer) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("pebblestore.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := store.New(db)

	for _, typ := range []store.ShardType{store.Default, store.Inflight} {
		if _, err := shard.EnsureFirstShard(s, "orders", "us-east", typ, 0); err != nil {
			t.Fatalf("EnsureFirstShard(%s): %v", typ, err)
		}
	}

	dl := &fakeDeadLetters{}
	buf := buffer.New(buffer.Options{Target: 1000})
	a := New("orders", "us-east", s, buf, nil, dl, cfg, nil, m)
	a.Start()
	t.Cleanup(a.Stop)
	return a, s, dl, buf
}

// sendIDs mints queueMessageIds for send, as the facade's generator does.
var sendIDs = timeid.NewGenerator()

// send writes a DEFAULT row directly, simulating what the facade's send
// path would persist.
func send(t *testing.T, s *store.Store, messageID uuid.UUID, at time.Time) timeid.ID {
	t.Helper()
	qmid := sendIDs.Next()
	sh, err := shard.ActiveShardForID(s, "orders", "us-east", store.Default, qmid)
	if err != nil {
		t.Fatalf("ActiveShardForID: %v", err)
	}
	key := store.MessageRowKey(store.Default, "orders", "us-east", sh.ShardID, qmid)
	row := message.Row{MessageID: messageID, TimestampMs: at.UnixMilli()}
	b := s.Batch()
	defer b.Close()
	if err := b.Set(key, message.EncodeRow(row), nil); err != nil {
		t.Fatalf("stage send: %v", err)
	}
	if err := store.IncrCounterInBatch(b, sh.CounterKey(), 1); err != nil {
		t.Fatalf("stage send counter: %v", err)
	}
	if err := s.Commit(b); err != nil {
		t.Fatalf("commit send: %v", err)
	}
	return qmid
}

func TestRefreshThenGetNextReturnsSentMessage(t *testing.T) {
	a, s, _ := newTestActor(t, Config{RefreshBatch: 10})
	mid := uuid.New()
	send(t, s, mid, time.Now())

	a.Refresh()
	// Refresh is fire-and-forget; GetNext's round trip through the
	// mailbox guarantees it is processed after Refresh since the mailbox
	// is FIFO.
	got := a.GetNext(1, "")
	if len(got) != 1 {
		t.Fatalf("GetNext(1) returned %d descriptors, want 1", len(got))
	}
	if got[0].MessageID != mid {
		t.Fatalf("MessageID = %v, want %v", got[0].MessageID, mid)
	}
}

func TestBatchDraining(t *testing.T) {
	a, s, _ := newTestActor(t, Config{RefreshBatch: 100})
	for i := 0; i < 100; i++ {
		send(t, s, uuid.New(), time.Now())
	}
	a.Refresh()

	for _, want := range []int{25, 25, 25, 25} {
		got := a.GetNext(25, "")
		if len(got) != want {
			t.Fatalf("GetNext(25) = %d, want %d", len(got), want)
		}
	}
}

func TestAckRemovesMessage(t *testing.T) {
	a, s, _ := newTestActor(t, Config{RefreshBatch: 10})
	mid := uuid.New()
	send(t, s, mid, time.Now())
	a.Refresh()

	got := a.GetNext(1, "")
	if len(got) != 1 {
		t.Fatalf("GetNext(1) = %d, want 1", len(got))
	}

	if err := a.Ack(got[0].QueueMessageID); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	bodyKey := store.BodyKey(mid)
	if _, ok, err := s.Get(bodyKey); err != nil || ok {
		t.Fatalf("expected body gone after ack: ok=%v err=%v", ok, err)
	}
}

func TestNackRequeuesWithIncrementedNReturned(t *testing.T) {
	a, s, _ := newTestActor(t, Config{RefreshBatch: 10, MaxRedeliveries: 3})
	mid := uuid.New()
	send(t, s, mid, time.Now())
	a.Refresh()

	first := a.GetNext(1, "")
	if len(first) != 1 {
		t.Fatalf("GetNext(1) = %d, want 1", len(first))
	}
	if err := a.Nack(first[0].QueueMessageID); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	a.Refresh()
	second := a.GetNext(1, "")
	if len(second) != 1 {
		t.Fatalf("GetNext(1) after nack = %d, want 1", len(second))
	}
	if second[0].MessageID != mid {
		t.Fatalf("MessageID = %v, want %v", second[0].MessageID, mid)
	}
	if second[0].NReturned != 1 {
		t.Fatalf("NReturned = %d, want 1", second[0].NReturned)
	}
	if second[0].QueueMessageID.Compare(first[0].QueueMessageID) == 0 {
		t.Fatalf("expected a new queueMessageId on redelivery")
	}
	_ = s
}

func TestNackExceedingMaxRedeliveriesDeadLetters(t *testing.T) {
	a, s, dl := newTestActor(t, Config{RefreshBatch: 10, MaxRedeliveries: 0})
	mid := uuid.New()
	send(t, s, mid, time.Now())
	a.Refresh()

	got := a.GetNext(1, "")
	if len(got) != 1 {
		t.Fatalf("GetNext(1) = %d, want 1", len(got))
	}
	if err := a.Nack(got[0].QueueMessageID); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	a.Refresh()
	if empty := a.GetNext(1, ""); len(empty) != 0 {
		t.Fatalf("expected no redelivery once MaxRedeliveries=0 is exceeded, got %d", len(empty))
	}
	if len(dl.records) != 1 || dl.records[0] != mid {
		t.Fatalf("expected one dead-letter record for %v, got %v", mid, dl.records)
	}
}

func TestActiveConsumersTracksRecentHeartbeatsOnly(t *testing.T) {
	a, s, _ := newTestActor(t, Config{RefreshBatch: 10})
	send(t, s, uuid.New(), time.Now())
	a.Refresh()

	clock := time.Now()
	a.now = func() time.Time { return clock }

	a.GetNext(1, "worker-a")
	a.GetNext(0, "worker-b")

	if n := a.ActiveConsumers(time.Minute.Milliseconds()); n != 2 {
		t.Fatalf("ActiveConsumers = %d, want 2", n)
	}

	clock = clock.Add(2 * time.Minute)
	if n := a.ActiveConsumers(time.Minute.Milliseconds()); n != 0 {
		t.Fatalf("ActiveConsumers after the window elapsed = %d, want 0", n)
	}
}
