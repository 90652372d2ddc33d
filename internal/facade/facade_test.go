package facade

import (
	"testing"
	"time"

	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/queueregistry"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/internal/sweeper"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("pebblestore.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	allocator := shard.New(s, shard.Config{MaxShardSize: 1000, AdvanceWindow: time.Minute, Interval: time.Hour}, nil, nil)
	sw := sweeper.New(sweeper.Config{Interval: time.Hour, DefaultLeaseSeconds: 1}, nil)

	f := New(db, s, allocator, sw, nil, nil, Config{
		LocalRegion:  "us-east",
		RefreshBatch: 10,
		BufferTarget: 100,
		LeaseSeconds: 1,
	}, nil)
	f.Start()
	t.Cleanup(f.Stop)
	return f
}

func TestSendGetAckRoundTrip(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateQueue(queueregistry.Queue{Name: "orders", LocalRegion: "us-east"}); err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}

	body := message.Body{Blob: []byte("my test data"), ContentType: "text/plain"}
	messageID, err := f.SendMessageToRegion("orders", "us-east", "us-east", body, 0)
	if err != nil {
		t.Fatalf("SendMessageToRegion: %v", err)
	}

	f.Refresh()

	var got []message.Descriptor
	waitForCondition(t, func() bool {
		got = f.GetNextMessages("orders", 1, "")
		return len(got) == 1
	})
	if got[0].MessageID != messageID {
		t.Fatalf("messageId = %s, want %s", got[0].MessageID, messageID)
	}

	loaded, err := f.LoadMessageData(messageID)
	if err != nil {
		t.Fatalf("LoadMessageData: %v", err)
	}
	if string(loaded.Blob) != "my test data" {
		t.Fatalf("blob = %q", loaded.Blob)
	}

	if err := f.AckMessage("orders", got[0].QueueMessageID); err != nil {
		t.Fatalf("AckMessage: %v", err)
	}

	f.Refresh()
	if got := f.GetNextMessages("orders", 1, ""); len(got) != 0 {
		t.Fatalf("expected no more messages after ack, got %d", len(got))
	}
	if _, err := f.LoadMessageData(messageID); err == nil {
		t.Fatalf("expected body gone after ack")
	}
}

func TestQueueDepth(t *testing.T) {
	f := newTestFacade(t)
	if err := f.CreateQueue(queueregistry.Queue{Name: "orders", LocalRegion: "us-east"}); err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	body := message.Body{Blob: []byte("x"), ContentType: "text/plain"}
	if _, err := f.SendMessageToRegion("orders", "us-east", "us-east", body, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitForCondition(t, func() bool {
		depth, err := f.GetQueueDepth("orders")
		return err == nil && depth == 1
	})
}

func TestDeleteQueueRemovesShards(t *testing.T) {
	f := newTestFacade(t)
	if err := f.CreateQueue(queueregistry.Queue{Name: "orders", LocalRegion: "us-east"}); err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	if err := f.DeleteQueue("orders"); err != nil {
		t.Fatalf("DeleteQueue: %v", err)
	}
	if _, err := queueregistry.Get(f.db, "orders"); err == nil {
		t.Fatalf("expected queue gone")
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
