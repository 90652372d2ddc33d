package deadletter

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("pebblestore.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}

func TestBodyGCReclaimsOnlyAfterGraceAndReReference(t *testing.T) {
	s := newTestStore(t)
	gc := NewBodyGC(s, time.Minute)
	fakeNow := time.Unix(1_700_000_000, 0)
	gc.now = func() time.Time { return fakeNow }

	referencedID := uuid.New()
	orphanID := uuid.New()

	if err := s.Put(store.BodyKey(referencedID), message.EncodeBody(message.Body{Blob: []byte("live")})); err != nil {
		t.Fatalf("put referenced body: %v", err)
	}
	if err := s.Put(store.BodyKey(orphanID), message.EncodeBody(message.Body{Blob: []byte("orphan")})); err != nil {
		t.Fatalf("put orphan body: %v", err)
	}

	row := message.EncodeRow(message.Row{MessageID: referencedID, TimestampMs: fakeNow.UnixMilli()})
	qmid := [16]byte{1}
	if err := s.Put(store.MessageRowKey(store.Default, "orders", "us-east", 0, qmid), row); err != nil {
		t.Fatalf("put row: %v", err)
	}

	hosted := []Hosted{{Queue: "orders", Region: "us-east"}}

	reclaimed, err := gc.Sweep(hosted)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("first sweep should only mark the orphan candidate, reclaimed %d", reclaimed)
	}
	if _, _, err := s.Get(store.BodyKey(orphanID)); err != nil {
		t.Fatalf("orphan body should still exist before grace elapses: %v", err)
	}

	fakeNow = fakeNow.Add(2 * time.Minute)
	reclaimed, err = gc.Sweep(hosted)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	if _, ok, err := s.Get(store.BodyKey(orphanID)); err != nil || ok {
		t.Fatalf("orphan body should be gone: ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.Get(store.BodyKey(referencedID)); err != nil || !ok {
		t.Fatalf("referenced body should remain: ok=%v err=%v", ok, err)
	}
}

func TestBodyGCForgetsCandidateOnceReReferenced(t *testing.T) {
	s := newTestStore(t)
	gc := NewBodyGC(s, time.Minute)
	fakeNow := time.Unix(1_700_000_000, 0)
	gc.now = func() time.Time { return fakeNow }

	id := uuid.New()
	if err := s.Put(store.BodyKey(id), message.EncodeBody(message.Body{Blob: []byte("x")})); err != nil {
		t.Fatalf("put body: %v", err)
	}
	hosted := []Hosted{{Queue: "orders", Region: "us-east"}}

	if _, err := gc.Sweep(hosted); err != nil {
		t.Fatalf("sweep 1: %v", err)
	}

	row := message.EncodeRow(message.Row{MessageID: id, TimestampMs: fakeNow.UnixMilli()})
	if err := s.Put(store.MessageRowKey(store.Default, "orders", "us-east", 0, [16]byte{2}), row); err != nil {
		t.Fatalf("put row: %v", err)
	}

	fakeNow = fakeNow.Add(2 * time.Minute)
	reclaimed, err := gc.Sweep(hosted)
	if err != nil {
		t.Fatalf("sweep 2: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("body became referenced again, should not be reclaimed")
	}
	if _, ok, err := s.Get(store.BodyKey(id)); err != nil || !ok {
		t.Fatalf("body should still exist: ok=%v err=%v", ok, err)
	}
}
