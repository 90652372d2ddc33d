package deadletter

import (
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeEntryRoundTrip(t *testing.T) {
	e := Entry{
		MessageID:    uuid.New(),
		NReturned:    7,
		Reason:       "max_redeliveries_exceeded",
		RecordedAtMs: 1732000000000,
	}
	got, err := decodeEntry(encodeEntry(e))
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if got.MessageID != e.MessageID || got.NReturned != e.NReturned ||
		got.Reason != e.Reason || got.RecordedAtMs != e.RecordedAtMs {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDecodeEntryRejectsCorruptRecord(t *testing.T) {
	raw := encodeEntry(Entry{MessageID: uuid.New(), Reason: "r", RecordedAtMs: 1})
	raw[0] ^= 0xFF
	if _, err := decodeEntry(raw); err == nil {
		t.Fatalf("expected checksum mismatch on corrupted record")
	}
}

func TestListPagesAcrossMultipleEntries(t *testing.T) {
	db := openTestDB(t)
	log, err := Open(db, "orders", "us-east")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := log.Record("orders", "us-east", uuid.New(), uint32(i), "r"); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	first, next, err := log.List(0, 2)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("page 1 = %d entries, want 2", len(first))
	}
	if next == 0 {
		t.Fatalf("expected a non-zero continuation token")
	}

	second, next2, err := log.List(next, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("page 2 = %d entries, want 1", len(second))
	}
	if next2 != 0 {
		t.Fatalf("expected exhausted token 0, got %d", next2)
	}
}
